package app

import (
	"image"
	"math"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// MinCropSide минимальная сторона области после отступов и обрезки по границам
const MinCropSide = 32

// PositiveCropExtractor вырезает объект с контекстным отступом.
type PositiveCropExtractor struct {
	processor    port.ImageProcessor
	TargetSize   int
	PaddingRatio float64
}

// NewPositiveCropExtractor создаёт экстрактор положительных кропов
func NewPositiveCropExtractor(processor port.ImageProcessor, targetSize int, paddingRatio float64) *PositiveCropExtractor {
	return &PositiveCropExtractor{
		processor:    processor,
		TargetSize:   targetSize,
		PaddingRatio: paddingRatio,
	}
}

// PaddedRegion расширяет рамку на round(сторона*ratio) с каждой стороны и
// обрезает по границам изображения. Возвращает false, если после обрезки
// ширина или высота меньше MinCropSide.
func PaddedRegion(box entity.BoundingBox, width, height int, ratio float64) (image.Rectangle, bool) {
	padX := int(math.Round(float64(box.Width()) * ratio))
	padY := int(math.Round(float64(box.Height()) * ratio))

	region := image.Rect(box.XMin-padX, box.YMin-padY, box.XMax+padX, box.YMax+padY).
		Intersect(image.Rect(0, 0, width, height))

	if region.Dx() < MinCropSide || region.Dy() < MinCropSide {
		return region, false
	}
	return region, true
}

// Extract возвращает положительный кроп target x target.
// ok == false для слишком маленьких рамок - это не ошибка.
func (e *PositiveCropExtractor) Extract(img *entity.Image, box entity.BoundingBox) (*entity.Crop, bool, error) {
	region, ok := PaddedRegion(box, img.Width, img.Height, e.PaddingRatio)
	if !ok {
		return nil, false, nil
	}

	resized, err := e.processor.CropResize(img, region, e.TargetSize)
	if err != nil {
		return nil, false, err
	}

	return &entity.Crop{Image: resized, Label: entity.LabelPositive}, true, nil
}
