package app

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// DatasetReport итог этапа сборки набора
type DatasetReport struct {
	Crops     int      `json:"crops"`
	Samples   int      `json:"samples"`
	Positives int      `json:"positives"`
	Negatives int      `json:"negatives"`
	Shape     []int    `json:"shape"`
	Warnings  []string `json:"warnings,omitempty"`
}

// DatasetService аугментирует кропы, перемешивает и сохраняет (X, y).
type DatasetService struct {
	source     port.CropSource
	augmenter  *AugmentationPipeline
	store      port.DatasetStore
	rng        *rand.Rand
	size       int
	channels   int
	reportPath string
	logger     logrus.FieldLogger
}

// NewDatasetService создаёт сервис этапа сборки
func NewDatasetService(source port.CropSource, augmenter *AugmentationPipeline, store port.DatasetStore, rng *rand.Rand, size, channels int, reportPath string, logger logrus.FieldLogger) *DatasetService {
	return &DatasetService{
		source:     source,
		augmenter:  augmenter,
		store:      store,
		rng:        rng,
		size:       size,
		channels:   channels,
		reportPath: reportPath,
		logger:     logger.WithField("stage", entity.StageDataset),
	}
}

// Run собирает набор. Пустой поток кропов не ошибка: сохраняется пустой набор
// и пишется предупреждение.
func (s *DatasetService) Run(ctx context.Context) (*DatasetReport, error) {
	crops, err := s.source.Crops(ctx, s.size, s.channels)
	if err != nil {
		return nil, err
	}

	report := &DatasetReport{Crops: len(crops)}
	s.logger.WithFields(logrus.Fields{
		"crops":    len(crops),
		"variants": s.augmenter.Variants(),
	}).Info("augmenting crops")

	assembler := NewDatasetAssembler(s.size, s.channels)
	for i, crop := range crops {
		if i%(progressEvery*10) == 0 {
			s.logger.Infof("[%d/%d]", i, len(crops))
		}
		variants, err := s.augmenter.Augment(crop)
		if err != nil {
			return nil, fmt.Errorf("augment %s: %w", crop.Name, err)
		}
		if err := assembler.AddAll(variants); err != nil {
			return nil, err
		}
	}

	if assembler.Len() == 0 {
		msg := "no crops found, writing an empty dataset"
		report.Warnings = append(report.Warnings, msg)
		s.logger.WithField("error", entity.ErrDegradedFallback.Error()).Warn(msg)
	}

	assembler.Shuffle(s.rng)
	ds, err := assembler.Build()
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, ds); err != nil {
		return nil, fmt.Errorf("save dataset: %w", err)
	}

	report.Samples = ds.Len()
	report.Positives = ds.CountLabel(entity.LabelPositive)
	report.Negatives = ds.CountLabel(entity.LabelNegative)
	report.Shape = ds.Shape()

	s.logger.WithFields(logrus.Fields{
		"samples":   report.Samples,
		"positives": report.Positives,
		"negatives": report.Negatives,
		"shape":     report.Shape,
	}).Info("dataset saved")

	if s.reportPath != "" {
		if err := WriteJSON(s.reportPath, report); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}

	return report, nil
}
