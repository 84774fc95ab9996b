package entity

import "math"

// ScaledSize возвращает размер стороны после масштабирования, не меньше 1
func ScaledSize(n int, scale float64) int {
	s := int(math.Round(float64(n) * scale))
	if s < 1 && n > 0 {
		s = 1
	}
	return s
}

// NearestIndex отображает индекс выходной сетки размера out в индекс исходной размера in
func NearestIndex(i, in, out int) int {
	s := int(float64(i) * float64(in) / float64(out))
	if s >= in {
		s = in - 1
	}
	return s
}

// ResizeBilinear возвращает тайл размера rows x cols с билинейной интерполяцией.
// Сетки выровнены по центрам пикселей.
func (t *Tile) ResizeBilinear(rows, cols int) *Tile {
	if rows == t.Rows && cols == t.Cols {
		return t
	}
	out := NewTile(t.Window, rows, cols, t.Bands)
	sy := float64(t.Rows) / float64(rows)
	sx := float64(t.Cols) / float64(cols)
	for y := 0; y < rows; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0, y1, wy := bilinearSpan(fy, t.Rows)
		for x := 0; x < cols; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0, x1, wx := bilinearSpan(fx, t.Cols)
			for b := 0; b < t.Bands; b++ {
				top := float64(t.At(y0, x0, b))*(1-wx) + float64(t.At(y0, x1, b))*wx
				bottom := float64(t.At(y1, x0, b))*(1-wx) + float64(t.At(y1, x1, b))*wx
				out.Set(y, x, b, float32(top*(1-wy)+bottom*wy))
			}
		}
	}
	return out
}

func bilinearSpan(f float64, n int) (i0, i1 int, w float64) {
	if f <= 0 {
		return 0, 0, 0
	}
	if f >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	i0 = int(math.Floor(f))
	return i0, i0 + 1, f - float64(i0)
}
