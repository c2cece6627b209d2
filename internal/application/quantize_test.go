package app

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"tinyml-pipeline/internal/domain/entity"
)

func TestParamsFromRange(t *testing.T) {
	p := ParamsFromRange(0, 1)
	require.InDelta(t, 1.0/255, p.Scale, 1e-12)
	require.Equal(t, -128, p.ZeroPoint)

	p = ParamsFromRange(-1, 1)
	require.InDelta(t, 2.0/255, p.Scale, 1e-12)
	require.Equal(t, -1, p.ZeroPoint)

	// диапазон без нуля расширяется до нуля
	p = ParamsFromRange(0.5, 1)
	require.InDelta(t, 1.0/255, p.Scale, 1e-12)
	require.Equal(t, -128, p.ZeroPoint)

	p = ParamsFromRange(0, 0)
	require.Equal(t, entity.QuantizationParams{Scale: 1.0 / 255, ZeroPoint: -128}, p)
}

func TestQuantizationRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 20))
	for _, r := range [][2]float64{{0, 1}, {-1, 1}, {-0.3, 4.2}} {
		p := ParamsFromRange(r[0], r[1])
		for i := 0; i < 1000; i++ {
			v := float32(r[0] + rng.Float64()*(r[1]-r[0]))
			back := p.Dequantize(p.Quantize(v))
			require.LessOrEqual(t, math.Abs(float64(back-v)), p.Scale, "range %v value %v", r, v)
		}
	}
}

func TestObserveRange(t *testing.T) {
	lo, hi := ObserveRange([][]float32{{0.5, 0.25}, {}, {0.75, 0.1}})
	require.InDelta(t, 0.1, lo, 1e-6)
	require.InDelta(t, 0.75, hi, 1e-6)

	lo, hi = ObserveRange(nil)
	require.Zero(t, lo)
	require.Zero(t, hi)
}
