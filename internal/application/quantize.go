package app

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"tinyml-pipeline/internal/domain/entity"
)

// ParamsFromRange отображает [min, max] на int8: scale = (max-min)/255,
// zero_point выбирается так, чтобы 0.0 попадал в [-128, 127].
// Диапазон предварительно расширяется до нуля.
func ParamsFromRange(lo, hi float64) entity.QuantizationParams {
	lo = math.Min(lo, 0)
	hi = math.Max(hi, 0)

	scale := (hi - lo) / 255
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return entity.QuantizationParams{Scale: 1.0 / 255, ZeroPoint: entity.Int8Min}
	}

	zp := math.Round(entity.Int8Min - lo/scale)
	zp = math.Max(entity.Int8Min, math.Min(entity.Int8Max, zp))

	return entity.QuantizationParams{Scale: scale, ZeroPoint: int(zp)}
}

// ObserveRange возвращает минимум и максимум по всем образцам.
// Для пустого набора возвращает (0, 0).
func ObserveRange(samples [][]float32) (lo, hi float64) {
	first := true
	buf := make([]float64, 0)
	for _, s := range samples {
		if len(s) == 0 {
			continue
		}
		buf = buf[:0]
		for _, v := range s {
			buf = append(buf, float64(v))
		}
		sMin, sMax := floats.Min(buf), floats.Max(buf)
		if first {
			lo, hi = sMin, sMax
			first = false
			continue
		}
		lo = math.Min(lo, sMin)
		hi = math.Max(hi, sMax)
	}
	return lo, hi
}
