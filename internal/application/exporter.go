package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"tinyml-pipeline/internal/domain/entity"
)

const (
	HeaderRowWidth  = 12 // значений в строке массива
	HeaderAlignment = 8  // выравнивание буфера в байтах
)

// ExportOptions описание модели для комментария в заголовке
type ExportOptions struct {
	InputDescription string // например "96x96 grayscale, INT8 quantized"
}

// ExportResult пути к записанным файлам
type ExportResult struct {
	BinaryPath string `json:"binary_path"`
	HeaderPath string `json:"header_path"`
	ParamsPath string `json:"params_path"`
	Size       int    `json:"size"`
}

// ArtifactExporter пишет .tflite, .h и параметры квантования.
type ArtifactExporter struct {
	logger logrus.FieldLogger
}

// NewArtifactExporter создаёт экспортёр
func NewArtifactExporter(logger logrus.FieldLogger) *ArtifactExporter {
	return &ArtifactExporter{logger: logger}
}

// Export записывает <name>.tflite, <name>.h и <name>_quant.json в dir.
func (e *ArtifactExporter) Export(dir, name string, artifact *entity.QuantizedArtifact, params entity.TensorParams, opts ExportOptions) (*ExportResult, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &ExportResult{
		BinaryPath: filepath.Join(dir, name+".tflite"),
		HeaderPath: filepath.Join(dir, name+".h"),
		ParamsPath: filepath.Join(dir, name+"_quant.json"),
		Size:       artifact.Size(),
	}

	if err := os.WriteFile(res.BinaryPath, artifact.Data, 0644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}
	e.logger.WithFields(logrus.Fields{
		"path": res.BinaryPath,
		"kb":   fmt.Sprintf("%.2f", float64(res.Size)/1024),
	}).Info("saved quantized artifact")

	header := RenderHeader(name, artifact.Data, opts)
	if err := os.WriteFile(res.HeaderPath, []byte(header), 0644); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	e.logger.WithField("path", res.HeaderPath).Info("saved embeddable header")

	if err := WriteJSON(res.ParamsPath, params); err != nil {
		return nil, fmt.Errorf("write quantization params: %w", err)
	}

	return res, nil
}

// SymbolName превращает имя артефакта в идентификатор C.
func SymbolName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "model"
	}
	return b.String()
}

// RenderHeader строит встраиваемое представление артефакта. Формат стабилен
// байт в байт для одинаковых входных байтов: длина, alignas(8), по 12 значений в строке.
func RenderHeader(name string, data []byte, opts ExportOptions) string {
	symbol := SymbolName(name)
	guard := strings.ToUpper(symbol) + "_H"

	var b strings.Builder
	b.WriteString("// Auto-generated TFLite model\n")
	fmt.Fprintf(&b, "// Size: %d bytes (%.2f KB)\n", len(data), float64(len(data))/1024)
	if opts.InputDescription != "" {
		fmt.Fprintf(&b, "// Input: %s\n", opts.InputDescription)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "#ifndef %s\n", guard)
	fmt.Fprintf(&b, "#define %s\n\n", guard)
	fmt.Fprintf(&b, "const unsigned int %s_tflite_len = %d;\n", symbol, len(data))
	fmt.Fprintf(&b, "alignas(%d) const unsigned char %s_tflite[] = {\n  ", HeaderAlignment, symbol)

	for i := 0; i < len(data); i += HeaderRowWidth {
		end := min(i+HeaderRowWidth, len(data))
		for j := i; j < end; j++ {
			if j > i {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "0x%02x", data[j])
		}
		if end < len(data) {
			b.WriteString(",\n  ")
		}
	}

	b.WriteString("\n};\n\n")
	fmt.Fprintf(&b, "#endif // %s\n", guard)
	return b.String()
}
