package app

import (
	"fmt"
	"math/rand/v2"

	"tinyml-pipeline/internal/domain/entity"
)

// DatasetAssembler копит кропы в двух параллельных последовательностях.
// Индекс i в images и labels всегда относится к одному кропу.
type DatasetAssembler struct {
	size     int
	channels int
	images   []*entity.Image
	labels   []entity.Label
}

// NewDatasetAssembler создаёт сборщик для кропов size x size x channels
func NewDatasetAssembler(size, channels int) *DatasetAssembler {
	return &DatasetAssembler{size: size, channels: channels}
}

// Add добавляет кроп; кроп другой формы отклоняется.
func (a *DatasetAssembler) Add(crop *entity.Crop) error {
	img := crop.Image
	if img == nil || img.Width != a.size || img.Height != a.size || img.Channels != a.channels {
		got := "nil"
		if img != nil {
			got = fmt.Sprintf("%dx%dx%d", img.Width, img.Height, img.Channels)
		}
		return &entity.ShapeMismatchError{
			Detail: fmt.Sprintf("crop %q is %s, want %dx%dx%d", crop.Name, got, a.size, a.size, a.channels),
		}
	}
	a.images = append(a.images, img)
	a.labels = append(a.labels, crop.Label)
	return nil
}

// AddAll добавляет кропы по порядку
func (a *DatasetAssembler) AddAll(crops []*entity.Crop) error {
	for _, c := range crops {
		if err := a.Add(c); err != nil {
			return err
		}
	}
	return nil
}

// Len возвращает число накопленных пар
func (a *DatasetAssembler) Len() int {
	return len(a.labels)
}

// Shuffle применяет одну перестановку к обеим последовательностям.
func (a *DatasetAssembler) Shuffle(rng *rand.Rand) {
	perm := rng.Perm(len(a.labels))
	images := make([]*entity.Image, len(perm))
	labels := make([]entity.Label, len(perm))
	for dst, src := range perm {
		images[dst] = a.images[src]
		labels[dst] = a.labels[src]
	}
	a.images, a.labels = images, labels
}

// Build нормирует пиксели в [0, 1] делением на 255 и возвращает набор
// формы (N, size, size, channels).
func (a *DatasetAssembler) Build() (*entity.Dataset, error) {
	if len(a.images) != len(a.labels) {
		return nil, &entity.ShapeMismatchError{Samples: len(a.images), Labels: len(a.labels)}
	}

	sampleSize := a.size * a.size * a.channels
	samples := make([]float32, 0, len(a.images)*sampleSize)
	for _, img := range a.images {
		for _, v := range img.Pix {
			samples = append(samples, float32(v)/entity.MaxPixelValue)
		}
	}

	labels := make([]entity.Label, len(a.labels))
	copy(labels, a.labels)

	ds := &entity.Dataset{
		Samples:  samples,
		Labels:   labels,
		Height:   a.size,
		Width:    a.size,
		Channels: a.channels,
	}
	return ds, ds.Validate()
}
