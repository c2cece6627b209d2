package entity

// Label бинарная метка кропа
type Label uint8

const (
	LabelNegative Label = 0 // фон без объекта
	LabelPositive Label = 1 // объект интереса
)

// String возвращает имя метки для логов
func (l Label) String() string {
	if l == LabelPositive {
		return "positive"
	}
	return "negative"
}

// Crop кроп фиксированного размера вместе с меткой.
// Живёт только между экстрактором и сборщиком набора.
type Crop struct {
	Image *Image
	Label Label
	Name  string // имя для файлового хранилища, может быть пустым
}
