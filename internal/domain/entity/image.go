package entity

import (
	"fmt"
	"image"
)

// MaxPixelValue максимальное значение канала 8-битного изображения
const MaxPixelValue = 255

// Image 8-битный пиксельный буфер в порядке HWC (строки, столбцы, каналы).
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewImage создаёт пустое изображение заданного размера
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Bounds возвращает прямоугольник изображения
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Offset возвращает индекс первого канала пикселя (x, y) в Pix
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * m.Channels
}

// At возвращает значение канала c пикселя (x, y)
func (m *Image) At(x, y, c int) uint8 {
	return m.Pix[m.Offset(x, y)+c]
}

// Set записывает значение канала c пикселя (x, y)
func (m *Image) Set(x, y, c int, v uint8) {
	m.Pix[m.Offset(x, y)+c] = v
}

// Clone возвращает независимую копию изображения
func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Channels: m.Channels, Pix: pix}
}

// Equal сравнивает изображения попиксельно
func (m *Image) Equal(other *Image) bool {
	if other == nil || m.Width != other.Width || m.Height != other.Height || m.Channels != other.Channels {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// Validate проверяет согласованность размеров и буфера
func (m *Image) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", m.Width, m.Height)
	}
	if m.Channels != 1 && m.Channels != 3 {
		return fmt.Errorf("unsupported channel count %d", m.Channels)
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(m.Pix), m.Width*m.Height*m.Channels)
	}
	return nil
}
