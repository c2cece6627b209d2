package app

import (
	"fmt"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// AugmentOptions фиксированные параметры аугментации
type AugmentOptions struct {
	BrightnessFactors []float64 // один множитель < 1 и один > 1
	RotationAngles    []float64 // градусы, противоположных знаков
}

// DefaultAugmentOptions даёт 6 вариантов: оригинал, зеркало, 2 яркости, 2 поворота.
func DefaultAugmentOptions() AugmentOptions {
	return AugmentOptions{
		BrightnessFactors: []float64{0.85, 1.15},
		RotationAngles:    []float64{-8, 8},
	}
}

// AugmentationPipeline детерминированно размножает кроп.
type AugmentationPipeline struct {
	processor port.ImageProcessor
	opts      AugmentOptions
}

// NewAugmentationPipeline создаёт пайплайн аугментации
func NewAugmentationPipeline(processor port.ImageProcessor, opts AugmentOptions) *AugmentationPipeline {
	return &AugmentationPipeline{processor: processor, opts: opts}
}

// Variants возвращает число вариантов на один кроп
func (a *AugmentationPipeline) Variants() int {
	return 2 + len(a.opts.BrightnessFactors) + len(a.opts.RotationAngles)
}

// Augment возвращает варианты в фиксированном порядке: оригинал, зеркало,
// яркости, повороты. Все варианты наследуют метку исходного кропа.
func (a *AugmentationPipeline) Augment(crop *entity.Crop) ([]*entity.Crop, error) {
	out := make([]*entity.Crop, 0, a.Variants())
	add := func(img *entity.Image, suffix string) {
		out = append(out, &entity.Crop{Image: img, Label: crop.Label, Name: variantName(crop.Name, suffix)})
	}

	add(crop.Image.Clone(), "")

	flipped, err := a.processor.FlipHorizontal(crop.Image)
	if err != nil {
		return nil, fmt.Errorf("flip: %w", err)
	}
	add(flipped, "flip")

	for _, alpha := range a.opts.BrightnessFactors {
		img, err := a.processor.ScaleBrightness(crop.Image, alpha)
		if err != nil {
			return nil, fmt.Errorf("brightness %.2f: %w", alpha, err)
		}
		add(img, fmt.Sprintf("b%.2f", alpha))
	}

	for _, angle := range a.opts.RotationAngles {
		img, err := a.processor.Rotate(crop.Image, angle)
		if err != nil {
			return nil, fmt.Errorf("rotate %.0f: %w", angle, err)
		}
		add(img, fmt.Sprintf("r%+.0f", angle))
	}

	return out, nil
}

func variantName(base, suffix string) string {
	if base == "" || suffix == "" {
		return base
	}
	return base + "_" + suffix
}
