package entity

// RecordKind вид выходной записи
type RecordKind int

const (
	RecordExtent RecordKind = iota // охват всего снимка, всегда первая запись
	RecordPoint                    // одна найденная детекция
)

// Record строка выходного файла.
// Координаты идут в порядке (A, B) = (долгота/восток/x, широта/север/y).
type Record struct {
	Kind RecordKind

	// Для RecordExtent: левый верхний (A, B) и правый нижний (A2, B2) углы.
	// Для RecordPoint: центр рамки (A, B).
	A  float64
	B  float64
	A2 float64
	B2 float64

	Width  float64 // физическая ширина, единицы разрешения на пиксель
	Height float64 // физическая высота

	Score float32
	Label int

	UTMFallback bool   // координаты пересчитаны из UTM
	Warning     string // пусто, если координаты в порядке
}

// IsExtent возвращает true для записи охвата
func (r Record) IsExtent() bool {
	return r.Kind == RecordExtent
}
