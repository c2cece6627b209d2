package container

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/config"
	telegram "tinyml-pipeline/internal/api"
	app "tinyml-pipeline/internal/application"
	"tinyml-pipeline/internal/domain/port"
	"tinyml-pipeline/internal/infrastructure/converter"
	"tinyml-pipeline/internal/infrastructure/publish"
	"tinyml-pipeline/internal/infrastructure/storage"
	"tinyml-pipeline/internal/infrastructure/verify"
	"tinyml-pipeline/internal/infrastructure/vision"
)

// seedStream второй поток PCG, чтобы одно значение SEED задавало весь генератор
const seedStream = 0x9e3779b97f4a7c15

// Options режимы сборки, не входящие в конфигурацию
type Options struct {
	// InMemory передаёт кропы на этап сборки набора без записи PNG
	InMemory bool
}

type Container struct {
	Pipeline *app.Pipeline
	RunID    string
	Seed     uint64
}

// New собирает сервисы конвейера по конфигурации
func New(cfg *config.Config, logger logrus.FieldLogger, opts Options) (*Container, error) {
	runID, err := app.NewRunID(time.Now())
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger = logger.WithField("run_id", runID)

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	logger.WithField("seed", seed).Info("random seed")
	rng := rand.New(rand.NewPCG(seed, seed^seedStream))

	processor, err := newProcessor(cfg.VisionBackend)
	if err != nil {
		return nil, err
	}

	// Хранилище кропов
	var (
		cropStore  port.CropStore
		cropSource port.CropSource
	)
	if opts.InMemory {
		mem := storage.NewMemoryCropStore()
		cropStore, cropSource = mem, mem
	} else {
		dir := storage.NewDirCropStore(cfg.CropsDir, cfg.PositiveClass, cfg.NegativeClass, processor, logger)
		cropStore, cropSource = dir, dir
	}
	datasets := storage.NewNpyDatasetStore(cfg.PreparedDir)

	crops := app.NewCropService(app.CropConfig{
		SourceDir:         cfg.SourceDir,
		Splits:            cfg.Splits,
		MaxImagesPerSplit: cfg.MaxImagesPerSplit,
		NegativesPerImage: cfg.NegativesPerImage,
		Channels:          cfg.Channels(),
		PositiveClass:     cfg.PositiveClass,
		ReportPath:        filepath.Join(cfg.CropsDir, "crops_report.json"),
	},
		processor,
		app.NewPositiveCropExtractor(processor, cfg.TargetSize, cfg.PaddingRatio),
		app.NewNegativeCropSampler(processor, rng, cfg.TargetSize),
		cropStore,
		logger,
	)

	dataset := app.NewDatasetService(
		cropSource,
		app.NewAugmentationPipeline(processor, app.DefaultAugmentOptions()),
		datasets,
		rng,
		cfg.TargetSize,
		cfg.Channels(),
		filepath.Join(cfg.PreparedDir, "dataset_report.json"),
		logger,
	)

	convert, err := newConvertService(cfg, datasets, rng, runID, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Pipeline: app.NewPipeline(crops, dataset, convert, newNotifier(cfg, logger), runID, logger),
		RunID:    runID,
		Seed:     seed,
	}, nil
}

func newProcessor(backend string) (port.ImageProcessor, error) {
	switch backend {
	case "gocv":
		p, err := vision.NewGoCVProcessor()
		if err != nil {
			return nil, fmt.Errorf("vision backend gocv: %w", err)
		}
		return p, nil
	default:
		return vision.NewNativeProcessor(), nil
	}
}

func newConvertService(cfg *config.Config, datasets port.DatasetStore, rng *rand.Rand, runID string, logger logrus.FieldLogger) (*app.ConvertService, error) {
	var compiler port.QuantizingCompiler
	if cfg.ConverterCmd != "" {
		c, err := converter.NewExecCompiler(cfg.ConverterCmd, logger)
		if err != nil {
			return nil, err
		}
		compiler = c
	}

	verifier, err := verify.NewTFLiteVerifier(logger)
	if err != nil {
		return nil, err
	}

	var publisher port.ArtifactPublisher
	if cfg.AWSBucketName != "" {
		p, err := publish.NewS3Publisher(cfg.AWSRegion, cfg.AWSBucketName, runID)
		if err != nil {
			return nil, fmt.Errorf("s3 publisher: %w", err)
		}
		publisher = p
	}

	return app.NewConvertService(app.ConvertConfig{
		ModelPath:          filepath.Join(cfg.ModelsDir, cfg.ModelName),
		OutputDir:          cfg.ModelsDir,
		OutputName:         cfg.OutputName,
		CalibrationSamples: cfg.CalibrationSamples,
		TargetSize:         cfg.TargetSize,
		Channels:           cfg.Channels(),
	},
		datasets,
		compiler,
		app.NewArtifactExporter(logger),
		verifier,
		publisher,
		rng,
		logger,
	), nil
}

// newNotifier возвращает nil, если Telegram не настроен или недоступен
func newNotifier(cfg *config.Config, logger logrus.FieldLogger) port.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		return nil
	}

	n, err := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.WithError(err).Warn("telegram notifications disabled")
		return nil
	}
	return n
}
