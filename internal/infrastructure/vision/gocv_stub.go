//go:build !gocv
// +build !gocv

package vision

import (
	"errors"

	"tinyml-pipeline/internal/domain/port"
)

// NewGoCVProcessor возвращает ошибку, если сборка без тега gocv.
func NewGoCVProcessor() (port.ImageProcessor, error) {
	return nil, errors.New("gocv build tag is not enabled")
}
