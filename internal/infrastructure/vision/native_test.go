package vision

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tinyml-pipeline/internal/domain/entity"
)

func gradient(w, h, channels int) *entity.Image {
	img := entity.NewImage(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for c := 0; c < channels; c++ {
				img.Set(x, y, c, uint8((x*7+y*3+c*40)%256))
			}
		}
	}
	return img
}

func TestNativeProcessor_CropResizeShape(t *testing.T) {
	p := NewNativeProcessor()
	src := gradient(200, 200, 3)

	out, err := p.CropResize(src, image.Rect(35, 35, 115, 115), 96)
	require.NoError(t, err)
	require.Equal(t, 96, out.Width)
	require.Equal(t, 96, out.Height)
	require.Equal(t, 3, out.Channels)
	require.NoError(t, out.Validate())
}

func TestNativeProcessor_CropResizeRejectsBadRegion(t *testing.T) {
	p := NewNativeProcessor()
	src := gradient(50, 50, 1)

	_, err := p.CropResize(src, image.Rect(40, 40, 60, 60), 16)
	require.Error(t, err)

	_, err = p.CropResize(src, image.Rect(10, 10, 10, 20), 16)
	require.Error(t, err)
}

func TestNativeProcessor_CropResizeUniformStaysUniform(t *testing.T) {
	p := NewNativeProcessor()
	src := entity.NewImage(64, 64, 1)
	for i := range src.Pix {
		src.Pix[i] = 120
	}

	out, err := p.CropResize(src, image.Rect(0, 0, 64, 64), 24)
	require.NoError(t, err)
	for _, v := range out.Pix {
		require.InDelta(t, 120, int(v), 1)
	}
}

func TestNativeProcessor_FlipIsInvolution(t *testing.T) {
	p := NewNativeProcessor()
	src := gradient(13, 7, 3)

	once, err := p.FlipHorizontal(src)
	require.NoError(t, err)
	require.False(t, once.Equal(src))
	require.Equal(t, src.At(0, 3, 1), once.At(12, 3, 1))

	twice, err := p.FlipHorizontal(once)
	require.NoError(t, err)
	require.True(t, twice.Equal(src))
}

func TestNativeProcessor_FlipMatchesMirror(t *testing.T) {
	p := NewNativeProcessor()
	for _, channels := range []int{1, 3} {
		src := gradient(9, 5, channels)

		out, err := p.FlipHorizontal(src)
		require.NoError(t, err)
		require.Equal(t, channels, out.Channels)
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				for c := 0; c < channels; c++ {
					require.Equal(t, src.At(src.Width-1-x, y, c), out.At(x, y, c))
				}
			}
		}
	}
}

func TestNativeProcessor_ScaleBrightnessSaturates(t *testing.T) {
	p := NewNativeProcessor()
	src := &entity.Image{Width: 4, Height: 1, Channels: 1, Pix: []uint8{0, 100, 200, 255}}

	bright, err := p.ScaleBrightness(src, 1.15)
	require.NoError(t, err)
	require.Equal(t, []uint8{0, 115, 230, 255}, bright.Pix)

	dark, err := p.ScaleBrightness(src, 0.85)
	require.NoError(t, err)
	require.Equal(t, []uint8{0, 85, 170, 217}, dark.Pix)
}

func TestNativeProcessor_RotateZeroIsIdentity(t *testing.T) {
	p := NewNativeProcessor()
	src := gradient(16, 16, 1)

	out, err := p.Rotate(src, 0)
	require.NoError(t, err)
	require.True(t, out.Equal(src))
}

func TestNativeProcessor_RotateReflectsBorder(t *testing.T) {
	p := NewNativeProcessor()
	src := entity.NewImage(32, 32, 1)
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	out, err := p.Rotate(src, 8)
	require.NoError(t, err)
	for _, v := range out.Pix {
		require.Equal(t, uint8(200), v)
	}
}

func TestNativeProcessor_RotateQuarterTurnReflects(t *testing.T) {
	p := NewNativeProcessor()
	src := gradient(16, 16, 3)

	// поворот на 90° вокруг пикселя (8, 8): dst(x, y) = src(16-y, x),
	// строка y=0 уходит за правый край и берётся отражением
	out, err := p.Rotate(src, 90)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			sx := reflectIndex(16-y, 16)
			for c := 0; c < 3; c++ {
				require.Equal(t, src.At(sx, x, c), out.At(x, y, c), "pixel (%d,%d,%d)", x, y, c)
			}
		}
	}
}

func TestNativeProcessor_RotateKeepsCenterAndShape(t *testing.T) {
	p := NewNativeProcessor()
	src := gradient(20, 12, 1)

	out, err := p.Rotate(src, -7)
	require.NoError(t, err)
	require.Equal(t, src.Width, out.Width)
	require.Equal(t, src.Height, out.Height)
	require.Equal(t, 1, out.Channels)
	require.Equal(t, src.At(10, 6, 0), out.At(10, 6, 0))
}

func TestReflectPad(t *testing.T) {
	src := &entity.Image{Width: 3, Height: 1, Channels: 1, Pix: []uint8{10, 20, 30}}

	out := reflectPad(src, 4)
	require.Equal(t, 11, out.Width)
	require.Equal(t, 9, out.Height)
	row := []uint8{30, 30, 20, 10, 10, 20, 30, 30, 20, 10, 10}
	for y := 0; y < out.Height; y++ {
		require.Equal(t, row, out.Pix[y*out.Width:(y+1)*out.Width])
	}
}

func TestReflectIndex(t *testing.T) {
	require.Equal(t, 0, reflectIndex(-1, 5))
	require.Equal(t, 1, reflectIndex(-2, 5))
	require.Equal(t, 4, reflectIndex(5, 5))
	require.Equal(t, 3, reflectIndex(6, 5))
	require.Equal(t, 2, reflectIndex(2, 5))
	require.Equal(t, 0, reflectIndex(3, 1))
}

func TestNativeProcessor_SaveLoadRoundTrip(t *testing.T) {
	p := NewNativeProcessor()
	path := filepath.Join(t.TempDir(), "nested", "crop.png")

	gray := gradient(10, 6, 1)
	require.NoError(t, p.Save(path, gray))
	loaded, err := p.Load(path, 1)
	require.NoError(t, err)
	require.True(t, loaded.Equal(gray))

	color := gradient(10, 6, 3)
	require.NoError(t, p.Save(path, color))
	loaded, err = p.Load(path, 3)
	require.NoError(t, err)
	require.True(t, loaded.Equal(color))

	asGray, err := p.Load(path, 1)
	require.NoError(t, err)
	require.Equal(t, 1, asGray.Channels)
}

func TestNativeProcessor_LoadMissingFile(t *testing.T) {
	_, err := NewNativeProcessor().Load(filepath.Join(t.TempDir(), "absent.png"), 1)
	require.Error(t, err)
}
