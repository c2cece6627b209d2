package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
	"tinyml-pipeline/internal/infrastructure/storage"
	"tinyml-pipeline/internal/infrastructure/vision"
)

// writeSplit создаёт каталог сплита с изображениями 400x300 и манифестом
func writeSplit(t *testing.T, root, split string, files ...string) {
	t.Helper()
	dir := filepath.Join(root, split)
	require.NoError(t, os.MkdirAll(dir, 0755))

	p := vision.NewNativeProcessor()
	manifest := manifestHeader
	for _, name := range files {
		require.NoError(t, p.Save(filepath.Join(dir, name), gradientImage(400, 300, 1)))
		manifest += fmt.Sprintf("%s,400,300,bird,50,50,100,100\n", name)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_annotations.csv"), []byte(manifest), 0644))
}

func newCropService(t *testing.T, sourceDir string, store port.CropStore, splits ...string) (*CropService, *test.Hook) {
	t.Helper()
	return newSeededCropService(t, sourceDir, store, 1, splits...)
}

func newSeededCropService(t *testing.T, sourceDir string, store port.CropStore, seed uint64, splits ...string) (*CropService, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	p := vision.NewNativeProcessor()
	rng := rand.New(rand.NewPCG(seed, seed+1))

	return NewCropService(CropConfig{
		SourceDir:         sourceDir,
		Splits:            splits,
		MaxImagesPerSplit: 200,
		NegativesPerImage: 2,
		Channels:          1,
		PositiveClass:     "bird",
		ReportPath:        filepath.Join(t.TempDir(), "crops_report.json"),
	}, p, NewPositiveCropExtractor(p, 96, 0.3), NewNegativeCropSampler(p, rng, 96), store, logger), hook
}

func TestCropService_Run(t *testing.T) {
	source := t.TempDir()
	writeSplit(t, source, "train", "a.png", "b.png")
	store := storage.NewMemoryCropStore()

	svc, hook := newCropService(t, source, store, "train", "valid")
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Splits, 1)
	sr := report.Splits[0]
	require.Equal(t, "train", sr.Name)
	require.Equal(t, 2, sr.Images)
	require.Equal(t, 2, sr.Positives)
	require.Equal(t, 4, sr.Negatives+sr.NoBackground)
	require.Equal(t, report.Positives+report.Negatives, store.Len())
	require.FileExists(t, svc.cfg.ReportPath)

	require.Len(t, report.Warnings, 1)
	require.Contains(t, report.Warnings[0], "valid")

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	require.True(t, warned)

	crops, err := store.Crops(context.Background(), 96, 1)
	require.NoError(t, err)
	names := make(map[string]entity.Label)
	for _, c := range crops {
		names[c.Name] = c.Label
	}
	require.Equal(t, entity.LabelPositive, names["train_0_bird_0"])
	require.Equal(t, entity.LabelPositive, names["train_1_bird_0"])
}

func TestCropService_SkipsUnreadableImage(t *testing.T) {
	source := t.TempDir()
	writeSplit(t, source, "train", "a.png")
	manifest := filepath.Join(source, "train", "_annotations.csv")
	f, err := os.OpenFile(manifest, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("ghost.png,400,300,bird,50,50,100,100\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	svc, _ := newCropService(t, source, storage.NewMemoryCropStore(), "train")
	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Splits[0].Skipped)
	require.Equal(t, 1, report.Positives)
}

func TestCropService_NoSplits(t *testing.T) {
	svc, _ := newCropService(t, t.TempDir(), storage.NewMemoryCropStore(), "train", "valid")

	_, err := svc.Run(context.Background())
	var missing *entity.MissingInputError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, entity.StageSource, missing.Stage)
}

func newDatasetService(t *testing.T, source port.CropSource, dir string) (*DatasetService, *test.Hook) {
	t.Helper()
	return newSeededDatasetService(t, source, dir, 8)
}

func newSeededDatasetService(t *testing.T, source port.CropSource, dir string, seed uint64) (*DatasetService, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	return NewDatasetService(
		source,
		NewAugmentationPipeline(vision.NewNativeProcessor(), DefaultAugmentOptions()),
		storage.NewNpyDatasetStore(dir),
		rand.New(rand.NewPCG(seed, seed+1)),
		96, 1,
		filepath.Join(dir, "dataset_report.json"),
		logger,
	), hook
}

func TestDatasetService_Run(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryCropStore()
	require.NoError(t, mem.Put(ctx, &entity.Crop{Image: gradientImage(96, 96, 1), Label: entity.LabelPositive, Name: "p"}))
	require.NoError(t, mem.Put(ctx, &entity.Crop{Image: entity.NewImage(96, 96, 1), Label: entity.LabelNegative, Name: "n"}))

	dir := t.TempDir()
	svc, _ := newDatasetService(t, mem, dir)
	report, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Crops)
	require.Equal(t, 12, report.Samples)
	require.Equal(t, 6, report.Positives)
	require.Equal(t, 6, report.Negatives)
	require.Equal(t, []int{12, 96, 96, 1}, report.Shape)
	require.Empty(t, report.Warnings)

	ds, err := storage.NewNpyDatasetStore(dir).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, ds.Len())
	require.Equal(t, 6, ds.CountLabel(entity.LabelPositive))
	require.FileExists(t, filepath.Join(dir, "dataset_report.json"))
}

func TestDatasetService_EmptyCrops(t *testing.T) {
	dir := t.TempDir()
	svc, hook := newDatasetService(t, storage.NewMemoryCropStore(), dir)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Samples)
	require.Len(t, report.Warnings, 1)
	var degraded bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["error"] == entity.ErrDegradedFallback.Error() {
			degraded = true
		}
	}
	require.True(t, degraded)
	require.FileExists(t, filepath.Join(dir, storage.SamplesFile))
	require.FileExists(t, filepath.Join(dir, storage.LabelsFile))
}

type fakeCompiler struct {
	calib port.CalibrationProvider
}

func (f *fakeCompiler) Compile(ctx context.Context, model port.ModelArtifact, calib port.CalibrationProvider) (*entity.QuantizedArtifact, entity.TensorParams, error) {
	f.calib = calib
	lo, hi := ObserveRange(calib.Samples())
	return &entity.QuantizedArtifact{Data: sequence(30)}, entity.TensorParams{
		Input:  ParamsFromRange(lo, hi),
		Output: entity.QuantizationParams{Scale: 1.0 / 256, ZeroPoint: -128},
	}, nil
}

type fakeVerifier struct {
	err error
}

func (f *fakeVerifier) Verify(ctx context.Context, artifact *entity.QuantizedArtifact, sample []float32, params entity.TensorParams) (*port.VerifyReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &port.VerifyReport{
		InputShape:  []int{1, 96, 96, 1},
		InputType:   "int8",
		OutputShape: []int{1, 1},
		OutputType:  "int8",
		RawOutput:   []int8{64},
		Dequantized: []float32{params.Output.Dequantize(64)},
	}, nil
}

type fakePublisher struct {
	paths []string
}

func (f *fakePublisher) Publish(ctx context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	return "s3://bucket/" + filepath.Base(path), nil
}

func convertFixture(t *testing.T) (ConvertConfig, string) {
	t.Helper()
	models := t.TempDir()
	model := filepath.Join(models, "bird_model_96_final.h5")
	require.NoError(t, os.WriteFile(model, []byte("weights"), 0644))
	return ConvertConfig{
		ModelPath:          model,
		OutputDir:          models,
		OutputName:         "bird_model_96",
		CalibrationSamples: 100,
		TargetSize:         96,
		Channels:           1,
	}, models
}

func TestConvertService_SyntheticCalibration(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg, models := convertFixture(t)
	compiler := &fakeCompiler{}
	publisher := &fakePublisher{}

	svc := NewConvertService(cfg, storage.NewNpyDatasetStore(t.TempDir()), compiler, NewArtifactExporter(logger),
		&fakeVerifier{}, publisher, rand.New(rand.NewPCG(1, 1)), logger)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.SyntheticCalib)
	require.Equal(t, 100, report.CalibrationSize)
	require.True(t, compiler.calib.Synthetic())
	require.Equal(t, []int{96, 96, 1}, compiler.calib.Shape())
	require.NotEmpty(t, report.Warnings)

	require.True(t, report.Verified)
	require.InDelta(t, 0.75, report.VerifiedOutput[0], 1e-6)

	require.Len(t, publisher.paths, 3)
	require.Len(t, report.PublishedLocation, 3)

	require.FileExists(t, filepath.Join(models, "bird_model_96.tflite"))
	require.FileExists(t, filepath.Join(models, "bird_model_96.h"))
	require.FileExists(t, filepath.Join(models, "bird_model_96_quant.json"))
	require.FileExists(t, filepath.Join(models, "bird_model_96_report.json"))
}

func TestConvertService_DatasetCalibration(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	cfg, _ := convertFixture(t)
	cfg.TargetSize, cfg.CalibrationSamples = 2, 3

	prepared := t.TempDir()
	require.NoError(t, storage.NewNpyDatasetStore(prepared).Save(ctx, indexedDataset(10)))

	compiler := &fakeCompiler{}
	svc := NewConvertService(cfg, storage.NewNpyDatasetStore(prepared), compiler, NewArtifactExporter(logger),
		nil, nil, rand.New(rand.NewPCG(1, 1)), logger)

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	require.False(t, report.SyntheticCalib)
	require.Equal(t, 3, report.CalibrationSize)
	require.Empty(t, report.Warnings)
	require.False(t, report.Verified)
}

func TestConvertService_VerificationIsAdvisory(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg, _ := convertFixture(t)

	run := func(v port.Verifier) *ConvertReport {
		svc := NewConvertService(cfg, storage.NewNpyDatasetStore(t.TempDir()), &fakeCompiler{}, NewArtifactExporter(logger),
			v, nil, rand.New(rand.NewPCG(1, 1)), logger)
		report, err := svc.Run(context.Background())
		require.NoError(t, err)
		return report
	}

	report := run(&fakeVerifier{err: &entity.VerificationError{Reason: "input type is float32, want int8"}})
	require.False(t, report.Verified)
	require.Contains(t, report.Warnings[len(report.Warnings)-1], "input type is float32")

	hook.Reset()
	report = run(&fakeVerifier{err: port.ErrVerifierUnavailable})
	require.False(t, report.Verified)
	for _, w := range report.Warnings {
		require.NotContains(t, w, "verif")
	}
}

func TestConvertService_Preconditions(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg, _ := convertFixture(t)

	svc := NewConvertService(cfg, storage.NewNpyDatasetStore(t.TempDir()), nil, NewArtifactExporter(logger),
		nil, nil, rand.New(rand.NewPCG(1, 1)), logger)
	_, err := svc.Run(context.Background())
	require.ErrorContains(t, err, "CONVERTER_CMD")

	cfg.ModelPath = filepath.Join(t.TempDir(), "absent.h5")
	svc = NewConvertService(cfg, storage.NewNpyDatasetStore(t.TempDir()), &fakeCompiler{}, NewArtifactExporter(logger),
		nil, nil, rand.New(rand.NewPCG(1, 1)), logger)
	_, err = svc.Run(context.Background())
	var missing *entity.MissingInputError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, entity.StageTrain, missing.Stage)
	require.Equal(t, cfg.ModelPath, missing.Path)
}

type fakeNotifier struct {
	results []entity.StageResult
	err     error
}

func (f *fakeNotifier) NotifyStage(ctx context.Context, result entity.StageResult) error {
	f.results = append(f.results, result)
	return f.err
}

func TestPipeline_RunAll(t *testing.T) {
	source := t.TempDir()
	writeSplit(t, source, "train", "a.png")
	mem := storage.NewMemoryCropStore()
	prepared := t.TempDir()

	crops, _ := newCropService(t, source, mem, "train")
	dataset, _ := newDatasetService(t, mem, prepared)
	notifier := &fakeNotifier{err: errors.New("chat unavailable")}
	logger, hook := test.NewNullLogger()

	p := NewPipeline(crops, dataset, nil, notifier, "run-1", logger)
	results, err := p.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, entity.StageCrops, results[0].Stage)
	require.Equal(t, entity.StageDataset, results[1].Stage)
	require.Equal(t, entity.StageTrain, results[1].NextStage())
	require.Equal(t, 6*mem.Len(), results[1].Counts["samples"])

	require.Len(t, notifier.results, 2)
	require.Equal(t, "run-1", notifier.results[0].RunID)

	var nextLogged, notifyWarned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "next stage: train" {
			nextLogged = true
		}
		if e.Level == logrus.WarnLevel && e.Message == "stage notification failed" {
			notifyWarned = true
		}
	}
	require.True(t, nextLogged)
	require.True(t, notifyWarned)

	_, err = p.RunStage(context.Background(), entity.StageConvert)
	require.Error(t, err)
	_, err = p.RunStage(context.Background(), entity.StageTrain)
	require.Error(t, err)
}

// buildWithSeed прогоняет этапы кропов и датасета с одним зерном
func buildWithSeed(t *testing.T, source string, seed uint64) ([]*entity.Crop, *entity.Dataset) {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemoryCropStore()

	crops, _ := newSeededCropService(t, source, mem, seed, "train")
	_, err := crops.Run(ctx)
	require.NoError(t, err)

	dir := t.TempDir()
	ds, _ := newSeededDatasetService(t, mem, dir, seed)
	_, err = ds.Run(ctx)
	require.NoError(t, err)

	list, err := mem.Crops(ctx, 96, 1)
	require.NoError(t, err)
	loaded, err := storage.NewNpyDatasetStore(dir).Load(ctx)
	require.NoError(t, err)
	return list, loaded
}

func TestPipeline_ReproducibleWithFixedSeed(t *testing.T) {
	source := t.TempDir()
	writeSplit(t, source, "train", "a.png", "b.png", "c.png")

	firstCrops, firstDS := buildWithSeed(t, source, 42)
	secondCrops, secondDS := buildWithSeed(t, source, 42)

	require.Len(t, secondCrops, len(firstCrops))
	for i := range firstCrops {
		require.Equal(t, firstCrops[i].Name, secondCrops[i].Name)
		require.Equal(t, firstCrops[i].Label, secondCrops[i].Label)
		require.True(t, firstCrops[i].Image.Equal(secondCrops[i].Image), firstCrops[i].Name)
	}

	require.Equal(t, firstDS.Labels, secondDS.Labels)
	require.Equal(t, firstDS.Samples, secondDS.Samples)

	// другое зерно даёт другие фоновые кропы
	otherCrops, _ := buildWithSeed(t, source, 7)
	differs := false
	for i := range firstCrops {
		if i < len(otherCrops) && firstCrops[i].Label == entity.LabelNegative &&
			!firstCrops[i].Image.Equal(otherCrops[i].Image) {
			differs = true
		}
	}
	require.True(t, differs)
}
