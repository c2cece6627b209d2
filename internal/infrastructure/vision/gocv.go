//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// GoCVProcessor реализация ImageProcessor на OpenCV.
type GoCVProcessor struct {
	Interpolation gocv.InterpolationFlags // фильтр для CropResize
}

// NewGoCVProcessor создаёт процессор с интерполяцией Ланцоша.
func NewGoCVProcessor() (*GoCVProcessor, error) {
	return &GoCVProcessor{Interpolation: gocv.InterpolationLanczos4}, nil
}

// Load читает файл через IMRead; при channels == 1 сразу в оттенках серого.
func (p *GoCVProcessor) Load(path string, channels int) (*entity.Image, error) {
	flags := gocv.IMReadColor
	switch channels {
	case 1:
		flags = gocv.IMReadGrayScale
	case 3:
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	mat := gocv.IMRead(path, flags)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image %s", path)
	}
	return fromMat(mat)
}

// CropResize вырезает область через Region и масштабирует Resize.
func (p *GoCVProcessor) CropResize(img *entity.Image, region image.Rectangle, size int) (*entity.Image, error) {
	if err := checkRegion(img, region, size); err != nil {
		return nil, err
	}

	mat, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	crop := mat.Region(region)
	defer crop.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(crop, &resized, image.Pt(size, size), 0, 0, p.Interpolation)

	return fromMat(resized)
}

// FlipHorizontal отражает изображение вокруг вертикальной оси
func (p *GoCVProcessor) FlipHorizontal(img *entity.Image) (*entity.Image, error) {
	return p.apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.Flip(src, dst, 1)
	})
}

// ScaleBrightness меняет яркость через ConvertScaleAbs
func (p *GoCVProcessor) ScaleBrightness(img *entity.Image, alpha float64) (*entity.Image, error) {
	return p.apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		gocv.ConvertScaleAbs(src, dst, alpha, 0)
	})
}

// Rotate поворачивает вокруг центра с BORDER_REFLECT
func (p *GoCVProcessor) Rotate(img *entity.Image, angle float64) (*entity.Image, error) {
	center := image.Pt(img.Width/2, img.Height/2)
	return p.apply(img, func(src gocv.Mat, dst *gocv.Mat) {
		m := gocv.GetRotationMatrix2D(center, angle, 1.0)
		defer m.Close()
		gocv.WarpAffineWithParams(src, dst, m, image.Pt(img.Width, img.Height),
			gocv.InterpolationLinear, gocv.BorderReflect, color.RGBA{})
	})
}

// Save пишет изображение через IMWrite (формат по расширению)
func (p *GoCVProcessor) Save(path string, img *entity.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	mat, err := toMat(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

func (p *GoCVProcessor) apply(img *entity.Image, op func(src gocv.Mat, dst *gocv.Mat)) (*entity.Image, error) {
	src, err := toMat(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	op(src, &dst)

	return fromMat(dst)
}

// toMat копирует буфер в новую матрицу, чтобы Mat не ссылалась на память Go.
func toMat(img *entity.Image) (gocv.Mat, error) {
	mt := gocv.MatTypeCV8UC1
	if img.Channels == 3 {
		mt = gocv.MatTypeCV8UC3
	}
	view, err := gocv.NewMatFromBytes(img.Height, img.Width, mt, img.Pix)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer view.Close()
	return view.Clone(), nil
}

func fromMat(mat gocv.Mat) (*entity.Image, error) {
	if mat.Empty() {
		return nil, errors.New("empty image")
	}
	if !mat.IsContinuous() {
		cont := mat.Clone()
		defer cont.Close()
		mat = cont
	}
	out := &entity.Image{
		Width:    mat.Cols(),
		Height:   mat.Rows(),
		Channels: mat.Channels(),
		Pix:      append([]uint8(nil), mat.ToBytes()...),
	}
	return out, out.Validate()
}

// Проверка реализации интерфейса
var _ port.ImageProcessor = (*GoCVProcessor)(nil)
