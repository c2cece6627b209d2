package entity

import "math"

// Границы знакового 8-битного домена
const (
	Int8Min = -128
	Int8Max = 127
)

// QuantizationParams аффинное отображение float <-> int8 для одного тензора.
type QuantizationParams struct {
	Scale     float64 `json:"scale"`
	ZeroPoint int     `json:"zero_point"`
}

// Quantize переводит значение в int8: round(v/scale) + zero_point с отсечением.
func (p QuantizationParams) Quantize(v float32) int8 {
	q := math.Round(float64(v)/p.Scale) + float64(p.ZeroPoint)
	if q < Int8Min {
		q = Int8Min
	}
	if q > Int8Max {
		q = Int8Max
	}
	return int8(q)
}

// Dequantize переводит int8 обратно: (raw - zero_point) * scale.
func (p QuantizationParams) Dequantize(raw int8) float32 {
	return float32(float64(int(raw)-p.ZeroPoint) * p.Scale)
}

// TensorParams параметры квантования входного и выходного тензоров модели.
type TensorParams struct {
	Input  QuantizationParams `json:"input"`
	Output QuantizationParams `json:"output"`
}

// QuantizedArtifact бинарный блоб квантованной модели.
type QuantizedArtifact struct {
	Data []byte
}

// Size возвращает размер артефакта в байтах
func (a *QuantizedArtifact) Size() int {
	return len(a.Data)
}
