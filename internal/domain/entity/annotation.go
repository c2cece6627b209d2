package entity

// AnnotationRecord все рамки одного исходного изображения.
type AnnotationRecord struct {
	Filename string        // имя файла из манифеста
	Width    int           // ширина изображения
	Height   int           // высота изображения
	Boxes    []BoundingBox // рамки в порядке строк манифеста
}

// Annotations упорядоченное отображение filename -> запись.
// Порядок Records совпадает с порядком первого появления файла в манифесте.
type Annotations struct {
	Records []*AnnotationRecord
	index   map[string]*AnnotationRecord
}

// NewAnnotations создаёт пустой набор аннотаций
func NewAnnotations() *Annotations {
	return &Annotations{
		Records: make([]*AnnotationRecord, 0),
		index:   make(map[string]*AnnotationRecord),
	}
}

// Get возвращает запись по имени файла
func (a *Annotations) Get(filename string) (*AnnotationRecord, bool) {
	rec, ok := a.index[filename]
	return rec, ok
}

// Add регистрирует новую запись. Повторное имя игнорируется.
func (a *Annotations) Add(rec *AnnotationRecord) *AnnotationRecord {
	if existing, ok := a.index[rec.Filename]; ok {
		return existing
	}
	a.index[rec.Filename] = rec
	a.Records = append(a.Records, rec)
	return rec
}

// Len возвращает число различных изображений
func (a *Annotations) Len() int {
	return len(a.Records)
}

// BoxCount возвращает суммарное число рамок
func (a *Annotations) BoxCount() int {
	total := 0
	for _, rec := range a.Records {
		total += len(rec.Boxes)
	}
	return total
}
