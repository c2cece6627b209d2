//go:build !tflite

package verify

import (
	"context"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// stubVerifier используется, если бинарник собран без тега tflite
type stubVerifier struct{}

// NewTFLiteVerifier возвращает заглушку, которая всегда сообщает о недоступности
func NewTFLiteVerifier(logger logrus.FieldLogger) (port.Verifier, error) {
	return stubVerifier{}, nil
}

func (stubVerifier) Verify(ctx context.Context, artifact *entity.QuantizedArtifact, sample []float32, params entity.TensorParams) (*port.VerifyReport, error) {
	return nil, port.ErrVerifierUnavailable
}
