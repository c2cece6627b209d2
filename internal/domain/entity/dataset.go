package entity

// Dataset два параллельных массива: образцы (N, H, W, C) в [0, 1] и метки (N,).
type Dataset struct {
	Samples  []float32
	Labels   []Label
	Height   int
	Width    int
	Channels int
}

// SampleSize возвращает число значений в одном образце
func (d *Dataset) SampleSize() int {
	return d.Height * d.Width * d.Channels
}

// Len возвращает число образцов
func (d *Dataset) Len() int {
	size := d.SampleSize()
	if size == 0 {
		return 0
	}
	return len(d.Samples) / size
}

// Sample возвращает срез значений i-го образца
func (d *Dataset) Sample(i int) []float32 {
	size := d.SampleSize()
	return d.Samples[i*size : (i+1)*size]
}

// Shape возвращает форму массива образцов
func (d *Dataset) Shape() []int {
	return []int{d.Len(), d.Height, d.Width, d.Channels}
}

// Validate проверяет, что число образцов совпадает с числом меток.
func (d *Dataset) Validate() error {
	size := d.SampleSize()
	if size > 0 && len(d.Samples)%size != 0 {
		return &ShapeMismatchError{Samples: len(d.Samples) / size, Labels: len(d.Labels), Partial: true}
	}
	if d.Len() != len(d.Labels) {
		return &ShapeMismatchError{Samples: d.Len(), Labels: len(d.Labels)}
	}
	return nil
}

// CountLabel считает образцы с указанной меткой
func (d *Dataset) CountLabel(label Label) int {
	n := 0
	for _, l := range d.Labels {
		if l == label {
			n++
		}
	}
	return n
}
