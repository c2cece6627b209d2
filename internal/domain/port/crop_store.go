package port

import (
	"context"

	"tinyml-pipeline/internal/domain/entity"
)

// CropStore принимает кропы, полученные на этапе нарезки
type CropStore interface {
	// Put сохраняет кроп
	Put(ctx context.Context, crop *entity.Crop) error
}

// CropSource отдаёт размеченные кропы в порядке генерации
type CropSource interface {
	// Crops возвращает все кропы; каналы и размер приводятся к заданным
	Crops(ctx context.Context, size, channels int) ([]*entity.Crop, error)
}

// DatasetStore сохраняет и читает собранный набор (X, y)
type DatasetStore interface {
	// Save записывает оба массива; при несовпадении длин ничего не пишет
	Save(ctx context.Context, ds *entity.Dataset) error

	// Load читает набор, сохранённый Save
	Load(ctx context.Context) (*entity.Dataset, error)
}
