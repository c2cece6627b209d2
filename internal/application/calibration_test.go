package app

import (
	"math/rand/v2"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tinyml-pipeline/internal/domain/entity"
)

func indexedDataset(n int) *entity.Dataset {
	ds := &entity.Dataset{Height: 2, Width: 2, Channels: 1}
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			ds.Samples = append(ds.Samples, float32(i))
		}
		ds.Labels = append(ds.Labels, entity.Label(i%2))
	}
	return ds
}

func TestNewDatasetCalibration_Distinct(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, tc := range []struct{ n, want int }{{150, 100}, {30, 30}, {100, 100}} {
		calib := NewDatasetCalibration(indexedDataset(tc.n), DefaultCalibrationSamples, rng)
		require.False(t, calib.Synthetic())
		require.Equal(t, []int{2, 2, 1}, calib.Shape())
		require.Len(t, calib.Samples(), tc.want)

		seen := make(map[float32]bool)
		for _, s := range calib.Samples() {
			require.Len(t, s, 4)
			require.False(t, seen[s[0]], "sample %v drawn twice", s[0])
			seen[s[0]] = true
		}
	}
}

func TestCalibrationFor_SyntheticFallback(t *testing.T) {
	logger, hook := test.NewNullLogger()
	rng := rand.New(rand.NewPCG(3, 4))

	calib := CalibrationFor(nil, []int{96, 96, 1}, 100, rng, logger)
	require.True(t, calib.Synthetic())
	require.Len(t, calib.Samples(), 100)
	require.Equal(t, []int{96, 96, 1}, calib.Shape())
	for _, v := range calib.Samples()[0] {
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(1))
	}

	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Equal(t, entity.ErrDegradedFallback.Error(), hook.LastEntry().Data["error"])

	hook.Reset()
	calib = CalibrationFor(&entity.Dataset{Height: 96, Width: 96, Channels: 1}, []int{96, 96, 1}, 10, rng, logger)
	require.True(t, calib.Synthetic())
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	hook.Reset()
	calib = CalibrationFor(indexedDataset(5), []int{2, 2, 1}, 10, rng, logger)
	require.False(t, calib.Synthetic())
	require.Len(t, calib.Samples(), 5)
	require.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
