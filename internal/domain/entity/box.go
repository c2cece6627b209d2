package entity

import "image"

// BoundingBox прямоугольник объекта на исходном изображении (xmax, ymax не включаются)
type BoundingBox struct {
	XMin int // левая граница
	YMin int // верхняя граница
	XMax int // правая граница
	YMax int // нижняя граница
}

// Width возвращает ширину рамки в пикселях
func (b BoundingBox) Width() int {
	return b.XMax - b.XMin
}

// Height возвращает высоту рамки в пикселях
func (b BoundingBox) Height() int {
	return b.YMax - b.YMin
}

// Rect переводит рамку в image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Valid проверяет, что рамка непустая и лежит внутри изображения width x height.
// Правая и нижняя границы исключаются, поэтому XMax == width допустим.
func (b BoundingBox) Valid(width, height int) bool {
	if b.XMin >= b.XMax || b.YMin >= b.YMax {
		return false
	}
	return b.XMin >= 0 && b.YMin >= 0 && b.XMax <= width && b.YMax <= height
}
