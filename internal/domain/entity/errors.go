package entity

import (
	"errors"
	"fmt"
)

// ErrDegradedFallback помечает предупреждения о подстановке синтетических или пустых данных.
var ErrDegradedFallback = errors.New("degraded fallback")

// MissingInputError нет файла, который производит предыдущий этап.
type MissingInputError struct {
	Path  string
	Stage Stage // этап, который создаёт файл
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing %s: run the %q stage first", e.Path, e.Stage)
}

// ParseError некорректная строка или заголовок манифеста.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("manifest line %d, column %q: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("manifest line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShapeMismatchError число образцов не совпадает с числом меток или формой.
type ShapeMismatchError struct {
	Samples int
	Labels  int
	Partial bool // буфер образцов не делится на размер образца
	Detail  string
}

func (e *ShapeMismatchError) Error() string {
	if e.Detail != "" {
		return "shape mismatch: " + e.Detail
	}
	if e.Partial {
		return fmt.Sprintf("shape mismatch: sample buffer is not a whole number of samples (%d labels)", e.Labels)
	}
	return fmt.Sprintf("shape mismatch: %d samples vs %d labels", e.Samples, e.Labels)
}

// VerificationError проверка квантованного артефакта не сошлась с ожиданием.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "artifact verification failed: " + e.Reason
}
