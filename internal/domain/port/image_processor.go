package port

import (
	"image"

	"tinyml-pipeline/internal/domain/entity"
)

// ImageProcessor набор пиксельных операций конвейера
type ImageProcessor interface {
	// Load читает изображение с диска; channels = 1 (оттенки серого) или 3
	Load(path string, channels int) (*entity.Image, error)

	// CropResize вырезает область и масштабирует её до size x size высококачественным фильтром
	CropResize(img *entity.Image, region image.Rectangle, size int) (*entity.Image, error)

	// FlipHorizontal возвращает зеркальное отражение по горизонтали
	FlipHorizontal(img *entity.Image) (*entity.Image, error)

	// ScaleBrightness умножает яркость на alpha с насыщением в [0, 255]
	ScaleBrightness(img *entity.Image, alpha float64) (*entity.Image, error)

	// Rotate поворачивает вокруг центра на angle градусов с отражением краёв
	Rotate(img *entity.Image, angle float64) (*entity.Image, error)

	// Save записывает изображение без потерь (PNG)
	Save(path string, img *entity.Image) error
}
