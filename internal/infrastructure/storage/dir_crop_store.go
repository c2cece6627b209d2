package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// DirCropStore хранит кропы PNG-файлами в каталогах классов: root/<class>/<name>.png
type DirCropStore struct {
	root          string
	positiveClass string
	negativeClass string
	processor     port.ImageProcessor
	logger        logrus.FieldLogger
}

// NewDirCropStore создаёт хранилище кропов в каталоге root
func NewDirCropStore(root, positiveClass, negativeClass string, processor port.ImageProcessor, logger logrus.FieldLogger) *DirCropStore {
	return &DirCropStore{
		root:          root,
		positiveClass: positiveClass,
		negativeClass: negativeClass,
		processor:     processor,
		logger:        logger,
	}
}

// Put записывает кроп без потерь в каталог его класса
func (s *DirCropStore) Put(ctx context.Context, crop *entity.Crop) error {
	if crop.Name == "" {
		return fmt.Errorf("crop has no name")
	}

	dir := filepath.Join(s.root, s.classDir(crop.Label))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return s.processor.Save(filepath.Join(dir, crop.Name+".png"), crop.Image)
}

// Crops читает каталоги классов: сначала отрицательный, затем положительный,
// файлы внутри в лексикографическом порядке. Нечитаемые файлы пропускаются.
func (s *DirCropStore) Crops(ctx context.Context, size, channels int) ([]*entity.Crop, error) {
	classes := []struct {
		dir   string
		label entity.Label
	}{
		{s.negativeClass, entity.LabelNegative},
		{s.positiveClass, entity.LabelPositive},
	}

	var (
		crops   []*entity.Crop
		missing []string
	)
	for _, class := range classes {
		dir := filepath.Join(s.root, class.dir)
		files, err := listImages(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				missing = append(missing, dir)
				s.logger.WithField("dir", dir).Warn("class directory not found")
				continue
			}
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"class": class.dir,
			"files": len(files),
		}).Info("loading crops")

		for _, name := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			crop, err := s.load(filepath.Join(dir, name), class.label, size, channels)
			if err != nil {
				s.logger.WithError(err).WithField("file", name).Warn("skipping unreadable crop")
				continue
			}
			crops = append(crops, crop)
		}
	}

	if len(missing) == len(classes) {
		return nil, &entity.MissingInputError{Path: missing[0], Stage: entity.StageCrops}
	}

	return crops, nil
}

func (s *DirCropStore) load(path string, label entity.Label, size, channels int) (*entity.Crop, error) {
	img, err := s.processor.Load(path, channels)
	if err != nil {
		return nil, err
	}

	if img.Width != size || img.Height != size {
		img, err = s.processor.CropResize(img, img.Bounds(), size)
		if err != nil {
			return nil, err
		}
	}

	return &entity.Crop{
		Image: img,
		Label: label,
		Name:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}, nil
}

func (s *DirCropStore) classDir(label entity.Label) string {
	if label == entity.LabelPositive {
		return s.positiveClass
	}
	return s.negativeClass
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	return names, nil
}

var (
	_ port.CropStore  = (*DirCropStore)(nil)
	_ port.CropSource = (*DirCropStore)(nil)
)
