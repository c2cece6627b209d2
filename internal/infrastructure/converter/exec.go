package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	app "tinyml-pipeline/internal/application"
	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
	"tinyml-pipeline/internal/infrastructure/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoOutputRange отчёт конвертера не описывает квантование выхода
var ErrNoOutputRange = errors.New("converter report has no output quantization range")

// ExecCompiler квантует модель внешним конвертером.
//
// Конвертер вызывается как
//
//	<cmd> --model M --calibration C.npy --output O.tflite --report R.json
//
// и должен записать артефакт в O и диапазоны тензоров в R:
//
//	{"input": {"min": 0, "max": 1}, "output": {"min": 0, "max": 1, "scale": 0.0039, "zero_point": -128}}
//
// Если scale задан, параметры берутся как есть, иначе выводятся из диапазона.
// Для входа без диапазона берётся наблюдаемый по калибровке; выход обязан
// иметь scale или min/max, иначе Compile возвращает ErrNoOutputRange.
type ExecCompiler struct {
	command []string
	logger  logrus.FieldLogger
}

type tensorReport struct {
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	Scale     float64  `json:"scale"`
	ZeroPoint int      `json:"zero_point"`
}

type converterReport struct {
	Input  tensorReport `json:"input"`
	Output tensorReport `json:"output"`
}

// NewExecCompiler разбирает командную строку конвертера
func NewExecCompiler(cmdline string, logger logrus.FieldLogger) (*ExecCompiler, error) {
	command := strings.Fields(cmdline)
	if len(command) == 0 {
		return nil, errors.New("converter command is empty")
	}
	return &ExecCompiler{command: command, logger: logger}, nil
}

// Compile запускает конвертер и собирает артефакт и параметры квантования
func (c *ExecCompiler) Compile(ctx context.Context, model port.ModelArtifact, calib port.CalibrationProvider) (*entity.QuantizedArtifact, entity.TensorParams, error) {
	var params entity.TensorParams

	workDir, err := os.MkdirTemp("", "tinyml-convert-")
	if err != nil {
		return nil, params, err
	}
	defer os.RemoveAll(workDir)

	calibPath := filepath.Join(workDir, "calibration.npy")
	outputPath := filepath.Join(workDir, "model.tflite")
	reportPath := filepath.Join(workDir, "report.json")

	samples := calib.Samples()
	shape := append([]int{len(samples)}, calib.Shape()...)
	flat := make([]float32, 0, len(samples)*sampleLen(calib.Shape()))
	for _, s := range samples {
		flat = append(flat, s...)
	}
	if err := storage.WriteFloat32Npy(calibPath, shape, flat); err != nil {
		return nil, params, fmt.Errorf("write calibration: %w", err)
	}

	args := append(c.command[1:len(c.command):len(c.command)],
		"--model", model.Path,
		"--calibration", calibPath,
		"--output", outputPath,
		"--report", reportPath,
	)

	cmd := exec.CommandContext(ctx, c.command[0], args...)
	stdout := c.logger.WithField("converter", "stdout").WriterLevel(logrus.InfoLevel)
	stderr := c.logger.WithField("converter", "stderr").WriterLevel(logrus.WarnLevel)
	defer stdout.Close()
	defer stderr.Close()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	c.logger.WithFields(logrus.Fields{
		"cmd":         c.command[0],
		"calibration": len(samples),
	}).Info("running converter")

	if err := cmd.Run(); err != nil {
		return nil, params, fmt.Errorf("converter %s: %w", c.command[0], err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, params, fmt.Errorf("converter produced no artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, params, errors.New("converter produced an empty artifact")
	}

	var report converterReport
	raw, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, params, fmt.Errorf("converter produced no report: %w", err)
	}
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, params, fmt.Errorf("parse converter report: %w", err)
	}

	if !report.Output.complete() {
		return nil, params, ErrNoOutputRange
	}

	lo, hi := app.ObserveRange(samples)
	params.Input = resolve(report.Input, lo, hi)
	params.Output = resolve(report.Output, 0, 0)

	return &entity.QuantizedArtifact{Data: data}, params, nil
}

func (t tensorReport) complete() bool {
	return t.Scale > 0 || (t.Min != nil && t.Max != nil)
}

// resolve берёт параметры из отчёта, недостающий диапазон заменяется запасным
func resolve(t tensorReport, lo, hi float64) entity.QuantizationParams {
	if t.Scale > 0 {
		return entity.QuantizationParams{Scale: t.Scale, ZeroPoint: t.ZeroPoint}
	}
	if t.Min != nil {
		lo = *t.Min
	}
	if t.Max != nil {
		hi = *t.Max
	}
	return app.ParamsFromRange(lo, hi)
}

func sampleLen(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

var _ port.QuantizingCompiler = (*ExecCompiler)(nil)
