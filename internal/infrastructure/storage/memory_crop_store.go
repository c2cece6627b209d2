package storage

import (
	"context"
	"fmt"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// MemoryCropStore in-memory хранилище кропов для запуска этапов подряд без записи PNG.
// Этапы конвейера выполняются последовательно, хранилище не потокобезопасно.
type MemoryCropStore struct {
	crops []*entity.Crop
}

// NewMemoryCropStore создаёт новое in-memory хранилище
func NewMemoryCropStore() *MemoryCropStore {
	return &MemoryCropStore{}
}

// Put сохраняет кроп
func (s *MemoryCropStore) Put(ctx context.Context, crop *entity.Crop) error {
	if crop == nil || crop.Image == nil {
		return fmt.Errorf("empty crop")
	}

	s.crops = append(s.crops, crop)
	return nil
}

// Crops возвращает сначала отрицательные, затем положительные кропы в порядке добавления.
// Кропы другого размера или с другим числом каналов не приводятся, а отклоняются.
func (s *MemoryCropStore) Crops(ctx context.Context, size, channels int) ([]*entity.Crop, error) {
	out := make([]*entity.Crop, 0, len(s.crops))
	for _, label := range []entity.Label{entity.LabelNegative, entity.LabelPositive} {
		for _, c := range s.crops {
			if c.Label != label {
				continue
			}
			img := c.Image
			if img.Width != size || img.Height != size || img.Channels != channels {
				return nil, &entity.ShapeMismatchError{
					Detail: fmt.Sprintf("crop %s is %dx%dx%d, want %dx%dx%d",
						c.Name, img.Height, img.Width, img.Channels, size, size, channels),
				}
			}
			out = append(out, c)
		}
	}

	return out, nil
}

// Len возвращает число сохранённых кропов
func (s *MemoryCropStore) Len() int {
	return len(s.crops)
}

// Проверка реализации интерфейсов
var (
	_ port.CropStore  = (*MemoryCropStore)(nil)
	_ port.CropSource = (*MemoryCropStore)(nil)
)
