package raster

import (
	"errors"
	"fmt"
	"math"

	"sat-detect/internal/domain/geo"
)

// crsGeoCoding геокодирование аффинным преобразованием картографической системы продукта
type crsGeoCoding struct {
	affine geo.Affine
}

func (c crsGeoCoding) geoPos(x, y float64) (float64, float64) {
	return c.affine.Apply(x, y)
}

// tiePointGrid разреженная сетка значений с шагом stepX x stepY от (offsetX, offsetY)
type tiePointGrid struct {
	cols    int
	rows    int
	offsetX float64
	offsetY float64
	stepX   float64
	stepY   float64
	data    []float32
}

func loadTiePointGrid(hdrPath string, cols, rows int, offsetX, offsetY, stepX, stepY float64) (*tiePointGrid, error) {
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("grid must be at least 2x2, got %dx%d", cols, rows)
	}
	if stepX <= 0 || stepY <= 0 {
		return nil, errors.New("grid step must be positive")
	}

	img, err := openENVI(hdrPath)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	if img.samples != cols || img.lines != rows {
		return nil, fmt.Errorf("grid file is %dx%d, header says %dx%d", img.samples, img.lines, cols, rows)
	}
	data, err := img.readAll()
	if err != nil {
		return nil, err
	}

	return &tiePointGrid{
		cols:    cols,
		rows:    rows,
		offsetX: offsetX,
		offsetY: offsetY,
		stepX:   stepX,
		stepY:   stepY,
		data:    data,
	}, nil
}

// value билинейная интерполяция; за краями сетки значения экстраполируются по крайней ячейке
func (g *tiePointGrid) value(x, y float64) float64 {
	fi := (x - g.offsetX) / g.stepX
	fj := (y - g.offsetY) / g.stepY
	i := clampInt(int(math.Floor(fi)), 0, g.cols-2)
	j := clampInt(int(math.Floor(fj)), 0, g.rows-2)
	wi := fi - float64(i)
	wj := fj - float64(j)

	v00 := float64(g.data[j*g.cols+i])
	v10 := float64(g.data[j*g.cols+i+1])
	v01 := float64(g.data[(j+1)*g.cols+i])
	v11 := float64(g.data[(j+1)*g.cols+i+1])

	return v00*(1-wi)*(1-wj) + v10*wi*(1-wj) + v01*(1-wi)*wj + v11*wi*wj
}

// tiePointGeoCoding геокодирование по сеткам широты и долготы
type tiePointGeoCoding struct {
	lat *tiePointGrid
	lon *tiePointGrid
}

func (t *tiePointGeoCoding) geoPos(x, y float64) (float64, float64) {
	return t.lon.value(x, y), t.lat.value(x, y)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
