package entity

import "fmt"

// Window прямоугольное окно в пикселях исходного растра
type Window struct {
	X      int // смещение по столбцам
	Y      int // смещение по строкам
	Width  int
	Height int
}

// Contains проверяет, что окно целиком лежит внутри растра width x height
func (w Window) Contains(width, height int) bool {
	return w.X >= 0 && w.Y >= 0 && w.Width > 0 && w.Height > 0 &&
		w.X+w.Width <= width && w.Y+w.Height <= height
}

func (w Window) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", w.X, w.Y, w.Width, w.Height)
}

// Tile декодированное окно растра: массив [height][width][bands] во float32.
// Данные хранятся построчно, каналы пикселя идут подряд.
type Tile struct {
	Window Window
	Rows   int
	Cols   int
	Bands  int
	Data   []float32
}

// NewTile выделяет тайл заданной формы
func NewTile(window Window, rows, cols, bands int) *Tile {
	return &Tile{
		Window: window,
		Rows:   rows,
		Cols:   cols,
		Bands:  bands,
		Data:   make([]float32, rows*cols*bands),
	}
}

// Shape возвращает форму массива (rows, cols, bands)
func (t *Tile) Shape() (rows, cols, bands int) {
	return t.Rows, t.Cols, t.Bands
}

// At возвращает значение канала band в пикселе (row, col)
func (t *Tile) At(row, col, band int) float32 {
	return t.Data[(row*t.Cols+col)*t.Bands+band]
}

// Set записывает значение канала band в пикселе (row, col)
func (t *Tile) Set(row, col, band int, v float32) {
	t.Data[(row*t.Cols+col)*t.Bands+band] = v
}

// SetBand копирует плоский буфер rows*cols в канал band
func (t *Tile) SetBand(band int, plane []float32) {
	for i, v := range plane {
		t.Data[i*t.Bands+band] = v
	}
}

// Band возвращает копию канала band как плоский буфер rows*cols
func (t *Tile) Band(band int) []float32 {
	plane := make([]float32, t.Rows*t.Cols)
	for i := range plane {
		plane[i] = t.Data[i*t.Bands+band]
	}
	return plane
}

// SelectBands собирает новый тайл из каналов в порядке order
func (t *Tile) SelectBands(order []int) *Tile {
	out := NewTile(t.Window, t.Rows, t.Cols, len(order))
	for p := 0; p < t.Rows*t.Cols; p++ {
		for i, b := range order {
			out.Data[p*out.Bands+i] = t.Data[p*t.Bands+b]
		}
	}
	return out
}
