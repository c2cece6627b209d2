package port

import (
	"context"
	"errors"

	"tinyml-pipeline/internal/domain/entity"
)

// ModelArtifact обученная модель, непрозрачная для конвейера
type ModelArtifact struct {
	Path string
}

// CalibrationProvider источник калибровочных входов (метки отброшены)
type CalibrationProvider interface {
	// Samples возвращает образцы формы Shape(), каждый длиной H*W*C
	Samples() [][]float32

	// Shape возвращает форму одного образца (H, W, C)
	Shape() []int

	// Synthetic сообщает, что образцы сгенерированы, а не взяты из набора
	Synthetic() bool
}

// QuantizingCompiler переводит обученную модель в int8-артефакт
type QuantizingCompiler interface {
	// Compile калибрует модель и возвращает артефакт и параметры входа/выхода
	Compile(ctx context.Context, model ModelArtifact, calib CalibrationProvider) (*entity.QuantizedArtifact, entity.TensorParams, error)
}

// ErrVerifierUnavailable возвращает Verifier, собранный без интерпретатора.
var ErrVerifierUnavailable = errors.New("artifact verifier is not available in this build")

// Verifier прогоняет один образец через квантованный артефакт
type Verifier interface {
	// Verify квантует образец, запускает модель и деквантует выход
	Verify(ctx context.Context, artifact *entity.QuantizedArtifact, sample []float32, params entity.TensorParams) (*VerifyReport, error)
}

// VerifyReport результат проверочного прогона
type VerifyReport struct {
	InputShape  []int
	InputType   string
	OutputShape []int
	OutputType  string
	RawOutput   []int8
	Dequantized []float32
	EmbeddedIn  entity.QuantizationParams // параметры, записанные в самом артефакте
	EmbeddedOut entity.QuantizationParams
}
