package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// Pipeline запускает этапы по отдельности или подряд и сообщает об их завершении.
type Pipeline struct {
	crops    *CropService
	dataset  *DatasetService
	convert  *ConvertService
	notifier port.Notifier
	runID    string
	logger   logrus.FieldLogger
}

// NewPipeline собирает конвейер. Любой сервис может быть nil, если этап не нужен.
func NewPipeline(crops *CropService, dataset *DatasetService, convert *ConvertService, notifier port.Notifier, runID string, logger logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		crops:    crops,
		dataset:  dataset,
		convert:  convert,
		notifier: notifier,
		runID:    runID,
		logger:   logger.WithField("run_id", runID),
	}
}

// RunID идентификатор текущего запуска
func (p *Pipeline) RunID() string {
	return p.runID
}

// RunStage выполняет один этап
func (p *Pipeline) RunStage(ctx context.Context, stage entity.Stage) (*entity.StageResult, error) {
	start := time.Now()
	result := &entity.StageResult{Stage: stage, RunID: p.runID, Counts: map[string]int{}}

	switch stage {
	case entity.StageCrops:
		if p.crops == nil {
			return nil, fmt.Errorf("stage %s is not configured", stage)
		}
		report, err := p.crops.Run(ctx)
		if err != nil {
			return nil, err
		}
		result.Counts["positives"] = report.Positives
		result.Counts["negatives"] = report.Negatives
		result.Counts["splits"] = len(report.Splits)
		result.Warnings = report.Warnings

	case entity.StageDataset:
		if p.dataset == nil {
			return nil, fmt.Errorf("stage %s is not configured", stage)
		}
		report, err := p.dataset.Run(ctx)
		if err != nil {
			return nil, err
		}
		result.Counts["crops"] = report.Crops
		result.Counts["samples"] = report.Samples
		result.Counts["positives"] = report.Positives
		result.Counts["negatives"] = report.Negatives
		result.Warnings = report.Warnings

	case entity.StageConvert:
		if p.convert == nil {
			return nil, fmt.Errorf("stage %s is not configured", stage)
		}
		report, err := p.convert.Run(ctx)
		if err != nil {
			return nil, err
		}
		result.Counts["bytes"] = report.Export.Size
		result.Counts["calibration"] = report.CalibrationSize
		result.Warnings = report.Warnings

	default:
		return nil, fmt.Errorf("stage %q cannot be run by this tool", stage)
	}

	result.Duration = time.Since(start)
	p.finish(ctx, result)
	return result, nil
}

// RunAll нарезает кропы и сразу собирает из них набор
func (p *Pipeline) RunAll(ctx context.Context) ([]*entity.StageResult, error) {
	results := make([]*entity.StageResult, 0, 2)
	for _, stage := range []entity.Stage{entity.StageCrops, entity.StageDataset} {
		res, err := p.RunStage(ctx, stage)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) finish(ctx context.Context, result *entity.StageResult) {
	fields := logrus.Fields{"stage": result.Stage, "duration": result.Duration.Round(time.Millisecond)}
	for k, v := range result.Counts {
		fields[k] = v
	}
	p.logger.WithFields(fields).Info("stage complete")

	if next := result.NextStage(); next != "" {
		p.logger.Infof("next stage: %s", next)
	}

	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyStage(ctx, *result); err != nil {
		p.logger.WithError(err).Warn("stage notification failed")
	}
}
