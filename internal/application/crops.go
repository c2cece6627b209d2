package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// progressEvery как часто этапы пишут прогресс
const progressEvery = 20

// CropConfig параметры этапа нарезки
type CropConfig struct {
	SourceDir         string
	Splits            []string
	MaxImagesPerSplit int
	NegativesPerImage int
	Channels          int    // каналы, в которых читаются исходные изображения
	PositiveClass     string // используется в именах файлов
	ReportPath        string // пусто - отчёт не пишется
}

// SplitReport счётчики одного сплита
type SplitReport struct {
	Name         string `json:"name"`
	Manifest     string `json:"manifest"`
	Images       int    `json:"images"`
	Boxes        int    `json:"boxes"`
	Skipped      int    `json:"skipped"` // изображения, которые не удалось прочитать
	Positives    int    `json:"positives"`
	TooSmall     int    `json:"too_small"` // рамки меньше MinCropSide после обрезки
	Negatives    int    `json:"negatives"`
	NoBackground int    `json:"no_background"` // отрицательные кропы, для которых фон не найден
}

// CropReport итог этапа нарезки
type CropReport struct {
	Splits    []SplitReport `json:"splits"`
	Positives int           `json:"positives"`
	Negatives int           `json:"negatives"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// CropService нарезает положительные и отрицательные кропы по манифестам сплитов.
type CropService struct {
	cfg       CropConfig
	processor port.ImageProcessor
	positives *PositiveCropExtractor
	negatives *NegativeCropSampler
	store     port.CropStore
	logger    logrus.FieldLogger
}

// NewCropService создаёт сервис этапа нарезки
func NewCropService(cfg CropConfig, processor port.ImageProcessor, positives *PositiveCropExtractor, negatives *NegativeCropSampler, store port.CropStore, logger logrus.FieldLogger) *CropService {
	return &CropService{
		cfg:       cfg,
		processor: processor,
		positives: positives,
		negatives: negatives,
		store:     store,
		logger:    logger.WithField("stage", entity.StageCrops),
	}
}

// Run обрабатывает все сплиты. Отсутствующий сплит пропускается с
// предупреждением; если нет ни одного - возвращается MissingInputError.
func (s *CropService) Run(ctx context.Context) (*CropReport, error) {
	report := &CropReport{Splits: make([]SplitReport, 0, len(s.cfg.Splits))}

	for _, split := range s.cfg.Splits {
		splitDir := filepath.Join(s.cfg.SourceDir, split)
		if _, err := os.Stat(splitDir); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				s.warn(report, fmt.Sprintf("split %s not found at %s, skipping", split, splitDir))
				continue
			}
			return nil, err
		}

		manifest, err := FindManifest(splitDir)
		if err != nil {
			var missing *entity.MissingInputError
			if errors.As(err, &missing) {
				s.warn(report, fmt.Sprintf("split %s has no manifest, skipping", split))
				continue
			}
			return nil, err
		}

		sr, err := s.processSplit(ctx, split, splitDir, manifest)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", split, err)
		}
		report.Splits = append(report.Splits, *sr)
		report.Positives += sr.Positives
		report.Negatives += sr.Negatives

		s.logger.WithFields(logrus.Fields{
			"split":     split,
			"positives": sr.Positives,
			"negatives": sr.Negatives,
		}).Info("split done")
	}

	if len(report.Splits) == 0 {
		return nil, &entity.MissingInputError{
			Path:  filepath.Join(s.cfg.SourceDir, "{"+strings.Join(s.cfg.Splits, ",")+"}"),
			Stage: entity.StageSource,
		}
	}

	if s.cfg.ReportPath != "" {
		if err := WriteJSON(s.cfg.ReportPath, report); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}

	return report, nil
}

func (s *CropService) processSplit(ctx context.Context, split, splitDir, manifest string) (*SplitReport, error) {
	annotations, err := LoadAnnotationsFile(manifest, s.cfg.MaxImagesPerSplit)
	if err != nil {
		return nil, err
	}

	sr := &SplitReport{
		Name:     split,
		Manifest: manifest,
		Images:   annotations.Len(),
		Boxes:    annotations.BoxCount(),
	}
	total := annotations.Len()
	s.logger.WithFields(logrus.Fields{
		"split":  split,
		"images": total,
		"limit":  s.cfg.MaxImagesPerSplit,
	}).Info("processing images")

	for idx, rec := range annotations.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if idx%progressEvery == 0 {
			s.logger.Infof("[%d/%d]", idx+1, total)
		}

		img, err := s.processor.Load(filepath.Join(splitDir, rec.Filename), s.cfg.Channels)
		if err != nil {
			sr.Skipped++
			s.logger.WithFields(logrus.Fields{"file": rec.Filename, "error": err.Error()}).Warn("cannot read image, skipping")
			continue
		}

		for i, box := range rec.Boxes {
			crop, ok, err := s.positives.Extract(img, box)
			if err != nil {
				return nil, fmt.Errorf("extract %s box %d: %w", rec.Filename, i, err)
			}
			if !ok {
				sr.TooSmall++
				continue
			}
			crop.Name = fmt.Sprintf("%s_%d_%s_%d", split, idx, s.cfg.PositiveClass, i)
			if err := s.store.Put(ctx, crop); err != nil {
				return nil, err
			}
			sr.Positives++
		}

		for i := 0; i < s.cfg.NegativesPerImage; i++ {
			crop, ok, err := s.negatives.Sample(img, rec.Boxes)
			if err != nil {
				return nil, fmt.Errorf("sample background %s: %w", rec.Filename, err)
			}
			if !ok {
				sr.NoBackground++
				continue
			}
			crop.Name = fmt.Sprintf("%s_%d_bg_%d", split, idx, i)
			if err := s.store.Put(ctx, crop); err != nil {
				return nil, err
			}
			sr.Negatives++
		}
	}

	return sr, nil
}

func (s *CropService) warn(report *CropReport, msg string) {
	report.Warnings = append(report.Warnings, msg)
	s.logger.Warn(msg)
}
