package entity

// Box прямоугольник в пиксельных координатах (x1, y1) - левый верхний угол, (x2, y2) - правый нижний
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// Width возвращает ширину рамки в пикселях
func (b Box) Width() float64 {
	return b.X2 - b.X1
}

// Height возвращает высоту рамки в пикселях
func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// Center возвращает координаты центра рамки
func (b Box) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Offset сдвигает рамку на (dx, dy)
func (b Box) Offset(dx, dy float64) Box {
	return Box{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

// Scale умножает все координаты рамки на factor
func (b Box) Scale(factor float64) Box {
	return Box{X1: b.X1 * factor, Y1: b.Y1 * factor, X2: b.X2 * factor, Y2: b.Y2 * factor}
}

// Normalized возвращает рамку с гарантированными x1<=x2 и y1<=y2
func (b Box) Normalized() Box {
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b
}

// Clamp ограничивает рамку областью [0, width] x [0, height]
func (b Box) Clamp(width, height float64) Box {
	return Box{
		X1: clamp(b.X1, 0, width),
		Y1: clamp(b.Y1, 0, height),
		X2: clamp(b.X2, 0, width),
		Y2: clamp(b.Y2, 0, height),
	}
}

// Detection найденный детектором объект.
// До смещения координаты рамки локальны для тайла, после - глобальны для всего снимка.
type Detection struct {
	Box   Box
	Score float32
	Label int
}

// Offset возвращает детекцию, сдвинутую в глобальные координаты снимка
func (d Detection) Offset(dx, dy float64) Detection {
	d.Box = d.Box.Offset(dx, dy)
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
