package geo

import (
	"fmt"

	"sat-detect/internal/domain/entity"
)

// Affine аффинная привязка растра в порядке GDAL GeoTransform.
// Поворот (SkewX, SkewY) хранится, но при пересчёте не используется.
type Affine struct {
	OriginX float64
	ScaleX  float64
	SkewX   float64
	OriginY float64
	SkewY   float64
	ScaleY  float64
}

// AffineFromGeoTransform строит привязку из шести коэффициентов GDAL
func AffineFromGeoTransform(gt [6]float64) Affine {
	return Affine{
		OriginX: gt[0],
		ScaleX:  gt[1],
		SkewX:   gt[2],
		OriginY: gt[3],
		SkewY:   gt[4],
		ScaleY:  gt[5],
	}
}

// Apply переводит пиксель (x, y) в координаты (A, B) без учёта поворота
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a.OriginX + x*a.ScaleX, a.OriginY + y*a.ScaleY
}

// InRange проверяет, что (A, B) похоже на градусы: долгота в [-180, 180], широта в [-90, 90]
func InRange(a, b float64) bool {
	return a >= -180 && a <= 180 && b >= -90 && b <= 90
}

// UTMFallback пересчёт из UTM для координат, которые не похожи на градусы.
// Такое бывает, когда привязка растра задана в проекции UTM, а не в градусах.
type UTMFallback struct {
	Enabled  bool
	Zone     int
	Northern bool
}

// Point возвращает координаты (A, B) точки в градусах.
// converted=true, если применялся пересчёт из UTM. Если и после пересчёта координаты
// вне диапазона, возвращаются пересчитанные значения и entity.ErrGeoOutOfRange.
func (f UTMFallback) Point(a, b float64) (ra, rb float64, converted bool, err error) {
	if InRange(a, b) || !f.Enabled {
		return a, b, false, nil
	}
	lat, lon := UTMToLatLon(f.Zone, a, b, f.Northern)
	if !InRange(lon, lat) {
		return lon, lat, true, fmt.Errorf("%w: utm zone %d (%.3f, %.3f) -> (%.6f, %.6f)",
			entity.ErrGeoOutOfRange, f.Zone, a, b, lon, lat)
	}
	return lon, lat, true, nil
}

// Extent пересчитывает оба угла охвата согласованно: если хоть один угол вне
// диапазона, пересчёт из UTM применяется к обоим.
func (f UTMFallback) Extent(a1, b1, a2, b2 float64) (ra1, rb1, ra2, rb2 float64, converted bool, err error) {
	if !f.Enabled || (InRange(a1, b1) && InRange(a2, b2)) {
		return a1, b1, a2, b2, false, nil
	}
	lat1, lon1 := UTMToLatLon(f.Zone, a1, b1, f.Northern)
	lat2, lon2 := UTMToLatLon(f.Zone, a2, b2, f.Northern)
	if !InRange(lon1, lat1) || !InRange(lon2, lat2) {
		err = fmt.Errorf("%w: utm zone %d extent -> (%.6f, %.6f, %.6f, %.6f)",
			entity.ErrGeoOutOfRange, f.Zone, lon1, lat1, lon2, lat2)
	}
	return lon1, lat1, lon2, lat2, true, err
}
