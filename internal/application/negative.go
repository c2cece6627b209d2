package app

import (
	"image"
	"math/rand/v2"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

const (
	NegativeAttempts    = 30  // бюджет попыток на один отрицательный кроп
	NegativeMarginRatio = 0.2 // поле вокруг рамки, доля ширины рамки
	MaxOverlapRatio     = 0.1 // допустимая доля пересечения с расширенной рамкой
)

// NegativeCropSampler ищет квадрат фона, не пересекающийся с объектами.
type NegativeCropSampler struct {
	processor  port.ImageProcessor
	rng        *rand.Rand
	TargetSize int
	Attempts   int
}

// NewNegativeCropSampler создаёт сэмплер с бюджетом NegativeAttempts
func NewNegativeCropSampler(processor port.ImageProcessor, rng *rand.Rand, targetSize int) *NegativeCropSampler {
	return &NegativeCropSampler{
		processor:  processor,
		rng:        rng,
		TargetSize: targetSize,
		Attempts:   NegativeAttempts,
	}
}

// OverlapRatio считает площадь пересечения кандидата с рамкой, расширенной
// на int(0.2*ширина) с каждой стороны, делённую на площадь кандидата.
func OverlapRatio(candidate image.Rectangle, box entity.BoundingBox) float64 {
	area := candidate.Dx() * candidate.Dy()
	if area <= 0 {
		return 0
	}
	margin := int(float64(box.Width()) * NegativeMarginRatio)
	expanded := image.Rect(box.XMin-margin, box.YMin-margin, box.XMax+margin, box.YMax+margin)

	inter := candidate.Intersect(expanded)
	if inter.Empty() {
		return 0
	}
	return float64(inter.Dx()*inter.Dy()) / float64(area)
}

// FindRegion выполняет поиск с отказами. Возвращает квадрат, число
// использованных попыток и признак успеха.
func (s *NegativeCropSampler) FindRegion(width, height int, boxes []entity.BoundingBox) (image.Rectangle, int, bool) {
	minSide := min(width, height)
	if minSide < s.TargetSize {
		return image.Rectangle{}, 0, false
	}
	maxSide := max(s.TargetSize, minSide/2)

	for attempt := 1; attempt <= s.Attempts; attempt++ {
		side := s.TargetSize + s.rng.IntN(maxSide-s.TargetSize+1)
		x := s.rng.IntN(width - side + 1)
		y := s.rng.IntN(height - side + 1)
		candidate := image.Rect(x, y, x+side, y+side)

		if !overlapsAny(candidate, boxes) {
			return candidate, attempt, true
		}
	}

	return image.Rectangle{}, s.Attempts, false
}

// Sample возвращает отрицательный кроп или ok == false, если фон не найден.
func (s *NegativeCropSampler) Sample(img *entity.Image, boxes []entity.BoundingBox) (*entity.Crop, bool, error) {
	region, _, ok := s.FindRegion(img.Width, img.Height, boxes)
	if !ok {
		return nil, false, nil
	}

	resized, err := s.processor.CropResize(img, region, s.TargetSize)
	if err != nil {
		return nil, false, err
	}

	return &entity.Crop{Image: resized, Label: entity.LabelNegative}, true, nil
}

func overlapsAny(candidate image.Rectangle, boxes []entity.BoundingBox) bool {
	for _, box := range boxes {
		if OverlapRatio(candidate, box) > MaxOverlapRatio {
			return true
		}
	}
	return false
}
