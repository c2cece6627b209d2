package storage

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

const (
	SamplesFile = "X.npy"
	LabelsFile  = "y.npy"
)

var npyMagic = []byte("\x93NUMPY")

// NpyDatasetStore хранит набор как пару X.npy (float32, N×H×W×C) и y.npy (int64, N)
type NpyDatasetStore struct {
	dir string
}

// NewNpyDatasetStore создаёт хранилище в каталоге dir
func NewNpyDatasetStore(dir string) *NpyDatasetStore {
	return &NpyDatasetStore{dir: dir}
}

// SamplesPath путь к X.npy
func (s *NpyDatasetStore) SamplesPath() string {
	return filepath.Join(s.dir, SamplesFile)
}

// LabelsPath путь к y.npy
func (s *NpyDatasetStore) LabelsPath() string {
	return filepath.Join(s.dir, LabelsFile)
}

// Save проверяет согласованность набора и только потом пишет оба файла
func (s *NpyDatasetStore) Save(ctx context.Context, ds *entity.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	if err := WriteFloat32Npy(s.SamplesPath(), ds.Shape(), ds.Samples); err != nil {
		return fmt.Errorf("write %s: %w", SamplesFile, err)
	}

	labels := make([]int64, len(ds.Labels))
	for i, l := range ds.Labels {
		labels[i] = int64(l)
	}

	f, err := os.Create(s.LabelsPath())
	if err != nil {
		return err
	}
	defer f.Close()

	if err := npyio.Write(f, labels); err != nil {
		return fmt.Errorf("write %s: %w", LabelsFile, err)
	}

	return f.Close()
}

// Load читает набор. Если X.npy нет, возвращает MissingInputError этапа dataset.
func (s *NpyDatasetStore) Load(ctx context.Context) (*entity.Dataset, error) {
	shape, samples, err := ReadFloat32Npy(s.SamplesPath())
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 {
		return nil, &entity.ShapeMismatchError{Detail: fmt.Sprintf("%s has shape %v, want (N, H, W, C)", SamplesFile, shape)}
	}

	ds := &entity.Dataset{
		Samples:  samples,
		Height:   shape[1],
		Width:    shape[2],
		Channels: shape[3],
	}

	labels, err := readLabels(s.LabelsPath())
	if err != nil {
		return nil, err
	}
	ds.Labels = labels

	if err := ds.Validate(); err != nil {
		return nil, err
	}

	return ds, nil
}

// ReadFloat32Npy читает массив float32 любой размерности
func ReadFloat32Npy(path string) ([]int, []float32, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, &entity.MissingInputError{Path: path, Stage: entity.StageDataset}
		}
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var data []float32
	if err := r.Read(&data); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	return append([]int(nil), r.Header.Descr.Shape...), data, nil
}

func readLabels(path string) ([]entity.Label, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &entity.MissingInputError{Path: path, Stage: entity.StageDataset}
		}
		return nil, err
	}
	defer f.Close()

	var raw []int64
	if err := npyio.Read(f, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	labels := make([]entity.Label, len(raw))
	for i, v := range raw {
		if v != int64(entity.LabelNegative) && v != int64(entity.LabelPositive) {
			return nil, fmt.Errorf("read %s: label %d at %d is not binary", path, v, i)
		}
		labels[i] = entity.Label(v)
	}

	return labels, nil
}

// WriteFloat32Npy пишет C-упорядоченный массив '<f4' формы shape (формат NPY 1.0).
// npyio.Write умеет только срезы и матрицы, поэтому заголовок собирается здесь.
func WriteFloat32Npy(path string, shape []int, data []float32) error {
	total := 1
	for _, d := range shape {
		total *= d
	}
	if total != len(data) {
		return fmt.Errorf("shape %v holds %d values, got %d", shape, total, len(data))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeNpyHeader(w, "<f4", shape); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func writeNpyHeader(w io.Writer, descr string, shape []int) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	tuple := strings.Join(dims, ", ")
	if len(shape) == 1 {
		tuple += ","
	}

	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, tuple)

	// magic(6) + version(2) + len(2) + dict + padding + '\n' кратно 64
	const prefix = 10
	pad := 64 - (prefix+len(dict)+1)%64
	if pad == 64 {
		pad = 0
	}
	header := dict + strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(npyMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(header))); err != nil {
		return err
	}
	_, err := io.WriteString(w, header)
	return err
}

var _ port.DatasetStore = (*NpyDatasetStore)(nil)
