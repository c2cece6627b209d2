//go:build tflite

package verify

import (
	"context"
	"fmt"

	"github.com/mattn/go-tflite"
	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// TFLiteVerifier запускает квантованный артефакт интерпретатором TensorFlow Lite
type TFLiteVerifier struct {
	threads int
	logger  logrus.FieldLogger
}

// NewTFLiteVerifier создаёт проверяющий интерпретатор
func NewTFLiteVerifier(logger logrus.FieldLogger) (port.Verifier, error) {
	return &TFLiteVerifier{threads: 1, logger: logger}, nil
}

// Verify квантует образец параметрами входа, выполняет модель и деквантует выход
func (v *TFLiteVerifier) Verify(ctx context.Context, artifact *entity.QuantizedArtifact, sample []float32, params entity.TensorParams) (*port.VerifyReport, error) {
	model := tflite.NewModel(artifact.Data)
	if model == nil {
		return nil, &entity.VerificationError{Reason: "artifact is not a valid TFLite model"}
	}
	defer model.Delete()

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	options.SetNumThread(v.threads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		v.logger.WithField("component", "tflite").Warn(msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, &entity.VerificationError{Reason: "cannot create interpreter"}
	}
	defer interpreter.Delete()

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, &entity.VerificationError{Reason: "allocate tensors failed"}
	}

	input := interpreter.GetInputTensor(0)
	if input.Type() != tflite.Int8 {
		return nil, &entity.VerificationError{Reason: fmt.Sprintf("input type is %v, want int8", input.Type())}
	}
	inShape := dims(input)
	if n := volume(inShape); n != len(sample) {
		return nil, &entity.VerificationError{Reason: fmt.Sprintf("input shape %v holds %d values, sample has %d", inShape, n, len(sample))}
	}

	embeddedIn := embedded(input.QuantizationParams())
	if embeddedIn.Scale > 0 {
		params.Input = embeddedIn
	}

	q := make([]int8, len(sample))
	for i, s := range sample {
		q[i] = params.Input.Quantize(s)
	}
	if status := input.CopyFromBuffer(q); status != tflite.OK {
		return nil, &entity.VerificationError{Reason: "copy input failed"}
	}

	if status := interpreter.Invoke(); status != tflite.OK {
		return nil, &entity.VerificationError{Reason: "invoke failed"}
	}

	output := interpreter.GetOutputTensor(0)
	if output.Type() != tflite.Int8 {
		return nil, &entity.VerificationError{Reason: fmt.Sprintf("output type is %v, want int8", output.Type())}
	}
	outShape := dims(output)
	if volume(outShape) == 0 {
		return nil, &entity.VerificationError{Reason: fmt.Sprintf("output shape %v is empty", outShape)}
	}
	raw := make([]int8, volume(outShape))
	if status := output.CopyToBuffer(&raw[0]); status != tflite.OK {
		return nil, &entity.VerificationError{Reason: "copy output failed"}
	}

	embeddedOut := embedded(output.QuantizationParams())
	if embeddedOut.Scale > 0 {
		params.Output = embeddedOut
	}

	deq := make([]float32, len(raw))
	for i, r := range raw {
		deq[i] = params.Output.Dequantize(r)
	}

	return &port.VerifyReport{
		InputShape:  inShape,
		InputType:   "int8",
		OutputShape: outShape,
		OutputType:  "int8",
		RawOutput:   raw,
		Dequantized: deq,
		EmbeddedIn:  embeddedIn,
		EmbeddedOut: embeddedOut,
	}, nil
}

func dims(t *tflite.Tensor) []int {
	shape := make([]int, t.NumDims())
	for i := range shape {
		shape[i] = t.Dim(i)
	}
	return shape
}

func embedded(q tflite.QuantizationParams) entity.QuantizationParams {
	return entity.QuantizationParams{Scale: q.Scale, ZeroPoint: q.ZeroPoint}
}
