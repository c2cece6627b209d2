package app

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tinyml-pipeline/internal/domain/entity"
)

// Колонки манифеста
const (
	colFilename = "filename"
	colWidth    = "width"
	colHeight   = "height"
	colXMin     = "xmin"
	colYMin     = "ymin"
	colXMax     = "xmax"
	colYMax     = "ymax"
)

var manifestColumns = []string{colFilename, colWidth, colHeight, colXMin, colYMin, colXMax, colYMax}

// LoadAnnotationsFile читает манифест с диска.
func LoadAnnotationsFile(path string, maxImages int) (*entity.Annotations, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &entity.MissingInputError{Path: path, Stage: entity.StageSource}
		}
		return nil, err
	}
	defer f.Close()

	return LoadAnnotations(f, maxImages)
}

// LoadAnnotations разбирает CSV-манифест (одна строка = одна рамка).
// Если maxImages > 0 и при первом появлении нового файла уже принято maxImages
// изображений, чтение прекращается полностью: дальнейшие строки не читаются,
// даже если относятся к уже принятым файлам.
// Любая некорректная строка завершает загрузку с *entity.ParseError.
func LoadAnnotations(r io.Reader, maxImages int) (*entity.Annotations, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	annotations := entity.NewAnnotations()

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return annotations, nil
	}
	if err != nil {
		return nil, &entity.ParseError{Line: 1, Err: err}
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &entity.ParseError{Line: csvErr.Line, Err: csvErr.Err}
			}
			return nil, &entity.ParseError{Err: err}
		}
		line, _ := reader.FieldPos(0)

		filename, err := field(row, cols, colFilename, line)
		if err != nil {
			return nil, err
		}
		if filename == "" {
			return nil, &entity.ParseError{Line: line, Column: colFilename, Err: errors.New("empty filename")}
		}

		rec, seen := annotations.Get(filename)
		if !seen {
			if maxImages > 0 && annotations.Len() >= maxImages {
				break
			}
			width, err := intField(row, cols, colWidth, line)
			if err != nil {
				return nil, err
			}
			height, err := intField(row, cols, colHeight, line)
			if err != nil {
				return nil, err
			}
			if width <= 0 || height <= 0 {
				return nil, &entity.ParseError{Line: line, Err: fmt.Errorf("invalid image size %dx%d", width, height)}
			}
			rec = annotations.Add(&entity.AnnotationRecord{
				Filename: filename,
				Width:    width,
				Height:   height,
				Boxes:    make([]entity.BoundingBox, 0, 1),
			})
		}

		box, err := parseBox(row, cols, line)
		if err != nil {
			return nil, err
		}
		if !box.Valid(rec.Width, rec.Height) {
			return nil, &entity.ParseError{
				Line: line,
				Err:  fmt.Errorf("box %v is empty or outside %dx%d image", box.Rect(), rec.Width, rec.Height),
			}
		}
		rec.Boxes = append(rec.Boxes, box)
	}

	return annotations, nil
}

// FindManifest возвращает первый *.csv в каталоге сплита.
func FindManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &entity.MissingInputError{Path: dir, Stage: entity.StageSource}
		}
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", &entity.MissingInputError{Path: filepath.Join(dir, "*.csv"), Stage: entity.StageSource}
}

func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, name := range manifestColumns {
		if _, ok := cols[name]; !ok {
			return nil, &entity.ParseError{Line: 1, Column: name, Err: errors.New("missing required column")}
		}
	}
	return cols, nil
}

func field(row []string, cols map[string]int, name string, line int) (string, error) {
	idx := cols[name]
	if idx >= len(row) {
		return "", &entity.ParseError{Line: line, Column: name, Err: errors.New("missing value")}
	}
	return strings.TrimSpace(row[idx]), nil
}

func intField(row []string, cols map[string]int, name string, line int) (int, error) {
	raw, err := field(row, cols, name, line)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &entity.ParseError{Line: line, Column: name, Err: err}
	}
	return v, nil
}

func parseBox(row []string, cols map[string]int, line int) (entity.BoundingBox, error) {
	var box entity.BoundingBox
	targets := []struct {
		name string
		dst  *int
	}{
		{colXMin, &box.XMin},
		{colYMin, &box.YMin},
		{colXMax, &box.XMax},
		{colYMax, &box.YMax},
	}
	for _, t := range targets {
		v, err := intField(row, cols, t.name, line)
		if err != nil {
			return entity.BoundingBox{}, err
		}
		*t.dst = v
	}
	return box, nil
}
