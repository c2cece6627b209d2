package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// ConvertConfig параметры этапа конвертации
type ConvertConfig struct {
	ModelPath          string
	OutputDir          string
	OutputName         string
	CalibrationSamples int
	TargetSize         int
	Channels           int
}

// ConvertReport итог конвертации
type ConvertReport struct {
	Export            *ExportResult       `json:"export"`
	Params            entity.TensorParams `json:"params"`
	CalibrationSize   int                 `json:"calibration_size"`
	SyntheticCalib    bool                `json:"synthetic_calibration"`
	Verified          bool                `json:"verified"`
	VerifiedOutput    []float32           `json:"verified_output,omitempty"`
	PublishedLocation []string            `json:"published,omitempty"`
	Warnings          []string            `json:"warnings,omitempty"`
}

// ConvertService калибрует и квантует модель, затем экспортирует артефакт.
type ConvertService struct {
	cfg       ConvertConfig
	datasets  port.DatasetStore
	compiler  port.QuantizingCompiler
	exporter  *ArtifactExporter
	verifier  port.Verifier
	publisher port.ArtifactPublisher
	rng       *rand.Rand
	logger    logrus.FieldLogger
}

// NewConvertService создаёт сервис конвертации. verifier и publisher могут быть nil.
func NewConvertService(cfg ConvertConfig, datasets port.DatasetStore, compiler port.QuantizingCompiler, exporter *ArtifactExporter, verifier port.Verifier, publisher port.ArtifactPublisher, rng *rand.Rand, logger logrus.FieldLogger) *ConvertService {
	return &ConvertService{
		cfg:       cfg,
		datasets:  datasets,
		compiler:  compiler,
		exporter:  exporter,
		verifier:  verifier,
		publisher: publisher,
		rng:       rng,
		logger:    logger.WithField("stage", entity.StageConvert),
	}
}

// Run выполняет конвертацию. Ошибка проверки артефакта только предупреждение.
func (s *ConvertService) Run(ctx context.Context) (*ConvertReport, error) {
	if _, err := os.Stat(s.cfg.ModelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &entity.MissingInputError{Path: s.cfg.ModelPath, Stage: entity.StageTrain}
		}
		return nil, err
	}
	if s.compiler == nil {
		return nil, errors.New("quantizing compiler is not configured (set CONVERTER_CMD)")
	}

	report := &ConvertReport{}

	ds, err := s.datasets.Load(ctx)
	if err != nil {
		var missing *entity.MissingInputError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("load calibration dataset: %w", err)
		}
		s.warn(report, fmt.Sprintf("%s not found, calibration will use random data", missing.Path))
	}

	shape := []int{s.cfg.TargetSize, s.cfg.TargetSize, s.cfg.Channels}
	if ds != nil && ds.SampleSize() > 0 {
		shape = []int{ds.Height, ds.Width, ds.Channels}
	}
	calib := CalibrationFor(ds, shape, s.cfg.CalibrationSamples, s.rng, s.logger)
	report.CalibrationSize = len(calib.Samples())
	report.SyntheticCalib = calib.Synthetic()
	if calib.Synthetic() {
		report.Warnings = append(report.Warnings, "calibration used synthetic samples")
	}

	s.logger.WithField("model", s.cfg.ModelPath).Info("converting with INT8 quantization")
	artifact, params, err := s.compiler.Compile(ctx, port.ModelArtifact{Path: s.cfg.ModelPath}, calib)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	report.Params = params

	s.logger.WithFields(logrus.Fields{
		"input_scale":       params.Input.Scale,
		"input_zero_point":  params.Input.ZeroPoint,
		"output_scale":      params.Output.Scale,
		"output_zero_point": params.Output.ZeroPoint,
	}).Info("quantization params")

	res, err := s.exporter.Export(s.cfg.OutputDir, s.cfg.OutputName, artifact, params, ExportOptions{
		InputDescription: describeInput(shape),
	})
	if err != nil {
		return nil, err
	}
	report.Export = res

	s.verify(ctx, report, artifact, calib, params)
	s.publish(ctx, report, res)

	if err := WriteJSON(filepath.Join(s.cfg.OutputDir, s.cfg.OutputName+"_report.json"), report); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	return report, nil
}

// verify прогоняет первый калибровочный образец; любые расхождения только логируются.
func (s *ConvertService) verify(ctx context.Context, report *ConvertReport, artifact *entity.QuantizedArtifact, calib port.CalibrationProvider, params entity.TensorParams) {
	if s.verifier == nil || len(calib.Samples()) == 0 {
		return
	}

	vr, err := s.verifier.Verify(ctx, artifact, calib.Samples()[0], params)
	switch {
	case errors.Is(err, port.ErrVerifierUnavailable):
		s.logger.Info("skipping verification: " + err.Error())
		return
	case err != nil:
		var verr *entity.VerificationError
		if !errors.As(err, &verr) {
			err = &entity.VerificationError{Reason: err.Error()}
		}
		s.warn(report, err.Error())
		return
	}

	report.Verified = true
	report.VerifiedOutput = vr.Dequantized
	s.logger.WithFields(logrus.Fields{
		"input":       fmt.Sprintf("%v %s", vr.InputShape, vr.InputType),
		"output":      fmt.Sprintf("%v %s", vr.OutputShape, vr.OutputType),
		"raw":         vr.RawOutput,
		"dequantized": vr.Dequantized,
	}).Info("test inference OK")
}

func (s *ConvertService) publish(ctx context.Context, report *ConvertReport, res *ExportResult) {
	if s.publisher == nil {
		return
	}
	for _, path := range []string{res.BinaryPath, res.HeaderPath, res.ParamsPath} {
		location, err := s.publisher.Publish(ctx, path)
		if err != nil {
			s.warn(report, fmt.Sprintf("publish %s: %v", filepath.Base(path), err))
			continue
		}
		report.PublishedLocation = append(report.PublishedLocation, location)
	}
}

func (s *ConvertService) warn(report *ConvertReport, msg string) {
	report.Warnings = append(report.Warnings, msg)
	s.logger.Warn(msg)
}

func describeInput(shape []int) string {
	kind := "grayscale"
	if len(shape) == 3 && shape[2] == 3 {
		kind = "RGB"
	}
	return fmt.Sprintf("%dx%d %s, INT8 quantized", shape[1], shape[0], kind)
}
