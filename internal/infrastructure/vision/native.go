package vision

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"tinyml-pipeline/internal/domain/entity"
	"tinyml-pipeline/internal/domain/port"
)

// lanczos3 оконный sinc с носителем 3, аналог INTER_LANCZOS4 для чистого Go.
var lanczos3 = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t < 0 {
			t = -t
		}
		if t < 1e-12 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		pt := math.Pi * t
		return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
	},
}

// NativeProcessor реализация ImageProcessor без OpenCV.
type NativeProcessor struct{}

// NewNativeProcessor создаёт процессор на golang.org/x/image
func NewNativeProcessor() *NativeProcessor {
	return &NativeProcessor{}
}

// Load декодирует файл и приводит его к нужному числу каналов.
func (p *NativeProcessor) Load(path string, channels int) (*entity.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	switch channels {
	case 1:
		b := src.Bounds()
		gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
		return fromGray(gray), nil
	case 3:
		b := src.Bounds()
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
		return fromRGBA(rgba, 3), nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
}

// CropResize вырезает region и масштабирует его ядром Ланцоша.
func (p *NativeProcessor) CropResize(img *entity.Image, region image.Rectangle, size int) (*entity.Image, error) {
	if err := checkRegion(img, region, size); err != nil {
		return nil, err
	}

	src := toGo(img)
	dstRect := image.Rect(0, 0, size, size)
	if img.Channels == 1 {
		dst := image.NewGray(dstRect)
		lanczos3.Scale(dst, dstRect, src, region, draw.Src, nil)
		return fromGray(dst), nil
	}
	dst := image.NewRGBA(dstRect)
	lanczos3.Scale(dst, dstRect, src, region, draw.Src, nil)
	return fromRGBA(dst, 3), nil
}

// FlipHorizontal отражает изображение слева направо
func (p *NativeProcessor) FlipHorizontal(img *entity.Image) (*entity.Image, error) {
	mirror := f64.Aff3{
		-1, 0, float64(img.Width),
		0, 1, 0,
	}
	dst := image.NewRGBA(img.Bounds())
	draw.NearestNeighbor.Transform(dst, mirror, toGo(img), img.Bounds(), draw.Src, nil)
	return fromRGBA(dst, img.Channels), nil
}

// ScaleBrightness повторяет convertScaleAbs: |v*alpha| с округлением и насыщением.
func (p *NativeProcessor) ScaleBrightness(img *entity.Image, alpha float64) (*entity.Image, error) {
	out := entity.NewImage(img.Width, img.Height, img.Channels)
	for i, v := range img.Pix {
		out.Pix[i] = saturate(math.Abs(float64(v) * alpha))
	}
	return out, nil
}

// Rotate поворачивает вокруг (w/2, h/2) на angle градусов против часовой стрелки,
// как cv2.getRotationMatrix2D + warpAffine с BORDER_REFLECT и билинейной интерполяцией.
// Источник заранее расширяется отражением, поэтому все отсчёты BiLinear лежат внутри него.
func (p *NativeProcessor) Rotate(img *entity.Image, angle float64) (*entity.Image, error) {
	pad := (max(img.Width, img.Height)+1)/2 + 2
	src := toGo(reflectPad(img, pad))

	rad := angle * math.Pi / 180
	alpha, beta := math.Cos(rad), math.Sin(rad)
	// центр пикселя (w/2, h/2) в непрерывных координатах x/image
	cx, cy := float64(img.Width/2)+0.5, float64(img.Height/2)+0.5
	px, py := cx+float64(pad), cy+float64(pad)

	s2d := f64.Aff3{
		alpha, beta, cx - (alpha*px + beta*py),
		-beta, alpha, cy - (-beta*px + alpha*py),
	}

	dst := image.NewRGBA(img.Bounds())
	draw.BiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
	return fromRGBA(dst, img.Channels), nil
}

// Save пишет PNG, создавая каталог при необходимости
func (p *NativeProcessor) Save(path string, img *entity.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, toGo(img)); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func checkRegion(img *entity.Image, region image.Rectangle, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid target size %d", size)
	}
	if region.Empty() {
		return errors.New("empty crop region")
	}
	if !region.In(img.Bounds()) {
		return fmt.Errorf("crop region %v outside image %v", region, img.Bounds())
	}
	return nil
}

// reflectPad окружает изображение полосой шириной pad по правилу BORDER_REFLECT
func reflectPad(img *entity.Image, pad int) *entity.Image {
	out := entity.NewImage(img.Width+2*pad, img.Height+2*pad, img.Channels)
	for y := 0; y < out.Height; y++ {
		sy := reflectIndex(y-pad, img.Height)
		for x := 0; x < out.Width; x++ {
			src := img.Offset(reflectIndex(x-pad, img.Width), sy)
			dst := out.Offset(x, y)
			copy(out.Pix[dst:dst+img.Channels], img.Pix[src:src+img.Channels])
		}
	}
	return out
}

// reflectIndex переводит индекс за границей по правилу BORDER_REFLECT: fedcba|abcdef|fedcba.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		} else {
			i = 2*n - i - 1
		}
	}
	return i
}

func saturate(v float64) uint8 {
	v = math.RoundToEven(v)
	if v < 0 {
		return 0
	}
	if v > entity.MaxPixelValue {
		return entity.MaxPixelValue
	}
	return uint8(v)
}

func toGo(img *entity.Image) draw.Image {
	if img.Channels == 1 {
		gray := image.NewGray(img.Bounds())
		copy(gray.Pix, img.Pix)
		return gray
	}
	rgba := image.NewRGBA(img.Bounds())
	for i, j := 0, 0; i < len(img.Pix); i, j = i+3, j+4 {
		rgba.Pix[j] = img.Pix[i]
		rgba.Pix[j+1] = img.Pix[i+1]
		rgba.Pix[j+2] = img.Pix[i+2]
		rgba.Pix[j+3] = 0xff
	}
	return rgba
}

func fromGray(gray *image.Gray) *entity.Image {
	b := gray.Bounds()
	out := entity.NewImage(b.Dx(), b.Dy(), 1)
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*b.Dx():(y+1)*b.Dx()], gray.Pix[y*gray.Stride:y*gray.Stride+b.Dx()])
	}
	return out
}

// fromRGBA забирает channels каналов; для одного канала берётся R
func fromRGBA(rgba *image.RGBA, channels int) *entity.Image {
	b := rgba.Bounds()
	out := entity.NewImage(b.Dx(), b.Dy(), channels)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := rgba.RGBAAt(x+b.Min.X, y+b.Min.Y)
			i := out.Offset(x, y)
			out.Pix[i] = c.R
			if channels == 3 {
				out.Pix[i+1], out.Pix[i+2] = c.G, c.B
			}
		}
	}
	return out
}

// Проверка реализации интерфейса
var _ port.ImageProcessor = (*NativeProcessor)(nil)
