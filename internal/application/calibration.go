package app

import (
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// DefaultCalibrationSamples сколько образцов отдаётся калибровке
const DefaultCalibrationSamples = 100

// Calibration набор калибровочных входов
type Calibration struct {
	samples   [][]float32
	shape     []int
	synthetic bool
}

// Samples возвращает образцы
func (c *Calibration) Samples() [][]float32 {
	return c.samples
}

// Shape возвращает форму одного образца (H, W, C)
func (c *Calibration) Shape() []int {
	return c.shape
}

// Synthetic сообщает, что образцы сгенерированы
func (c *Calibration) Synthetic() bool {
	return c.synthetic
}

// NewDatasetCalibration берёт min(limit, N) различных образцов без возвращения.
// Метки не используются.
func NewDatasetCalibration(ds *entity.Dataset, limit int, rng *rand.Rand) *Calibration {
	n := ds.Len()
	k := min(limit, n)
	idx := rng.Perm(n)[:k]

	samples := make([][]float32, 0, k)
	for _, i := range idx {
		s := make([]float32, ds.SampleSize())
		copy(s, ds.Sample(i))
		samples = append(samples, s)
	}

	return &Calibration{
		samples: samples,
		shape:   []int{ds.Height, ds.Width, ds.Channels},
	}
}

// NewSyntheticCalibration генерирует count равномерных образцов в [0, 1).
func NewSyntheticCalibration(shape []int, count int, rng *rand.Rand) *Calibration {
	size := 1
	for _, d := range shape {
		size *= d
	}

	samples := make([][]float32, count)
	for i := range samples {
		s := make([]float32, size)
		for j := range s {
			s[j] = rng.Float32()
		}
		samples[i] = s
	}

	return &Calibration{
		samples:   samples,
		shape:     append([]int(nil), shape...),
		synthetic: true,
	}
}

// CalibrationFor выбирает источник калибровки. Пустой или отсутствующий набор
// заменяется синтетическими данными с предупреждением, без ошибки.
func CalibrationFor(ds *entity.Dataset, shape []int, limit int, rng *rand.Rand, logger logrus.FieldLogger) port.CalibrationProvider {
	if ds != nil && ds.Len() > 0 {
		calib := NewDatasetCalibration(ds, limit, rng)
		logger.WithFields(logrus.Fields{
			"samples": len(calib.samples),
			"pool":    ds.Len(),
		}).Info("calibration samples drawn from dataset")
		return calib
	}

	logger.WithFields(logrus.Fields{
		"samples": limit,
		"shape":   shape,
		"error":   entity.ErrDegradedFallback.Error(),
	}).Warn("calibration pool is empty, using synthetic uniform samples")
	return NewSyntheticCalibration(shape, limit, rng)
}
