package geo

import "math"

// Константы эллипсоида, близкого к WGS84
const (
	utmA    = 6378137.0
	utmE    = 0.081819191
	utmE1sq = 0.006739497
	utmK0   = 0.9996

	falseEasting  = 500000.0
	falseNorthing = 10000000.0
)

// DefaultUTMZone зона, в которой работал исходный набор снимков
const DefaultUTMZone = 48

// CentralMeridian возвращает долготу осевого меридиана зоны
func CentralMeridian(zone int) float64 {
	if zone > 0 {
		return 6*float64(zone) - 183.0
	}
	return 3.0
}

// UTMToLatLon обратная проекция UTM (ряды Крюгера) в широту и долготу в градусах.
//
// Долгота считается как сдвиг от осевого меридиана зоны, поэтому точность падает
// по мере удаления от него. Точки из соседних зон дают смещённый результат.
func UTMToLatLon(zone int, easting, northing float64, northernHemisphere bool) (lat, lon float64) {
	if !northernHemisphere {
		northing = falseNorthing - northing
	}

	e2 := utmE * utmE
	e4 := e2 * e2
	e6 := e4 * e2

	arc := northing / utmK0
	mu := arc / (utmA * (1 - e2/4.0 - 3*e4/64.0 - 5*e6/256.0))

	ei := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	ca := 3*ei/2 - 27*math.Pow(ei, 3)/32.0
	cb := 21*math.Pow(ei, 2)/16 - 55*math.Pow(ei, 4)/32
	cc := 151 * math.Pow(ei, 3) / 96
	cd := 1097 * math.Pow(ei, 4) / 512
	phi1 := mu + ca*math.Sin(2*mu) + cb*math.Sin(4*mu) + cc*math.Sin(6*mu) + cd*math.Sin(8*mu)

	sinPhi := math.Sin(phi1)
	n0 := utmA / math.Sqrt(1-math.Pow(utmE*sinPhi, 2))
	r0 := utmA * (1 - e2) / math.Pow(1-math.Pow(utmE*sinPhi, 2), 1.5)
	fact1 := n0 * math.Tan(phi1) / r0

	a1 := falseEasting - easting
	dd0 := a1 / (n0 * utmK0)
	fact2 := dd0 * dd0 / 2

	t0 := math.Pow(math.Tan(phi1), 2)
	q0 := utmE1sq * math.Pow(math.Cos(phi1), 2)
	fact3 := (5 + 3*t0 + 10*q0 - 4*q0*q0 - 9*utmE1sq) * math.Pow(dd0, 4) / 24
	fact4 := (61 + 90*t0 + 298*q0 + 45*t0*t0 - 252*utmE1sq - 3*q0*q0) * math.Pow(dd0, 6) / 720

	lof1 := a1 / (n0 * utmK0)
	lof2 := (1 + 2*t0 + q0) * math.Pow(dd0, 3) / 6.0
	lof3 := (5 - 2*q0 + 28*t0 - 3*q0*q0 + 8*utmE1sq + 24*t0*t0) * math.Pow(dd0, 5) / 120
	a2 := (lof1 - lof2 + lof3) / math.Cos(phi1)
	a3 := a2 * 180 / math.Pi

	lat = 180 * (phi1 - fact1*(fact2+fact3+fact4)) / math.Pi
	if !northernHemisphere {
		lat = -lat
	}

	lon = CentralMeridian(zone) - a3
	return lat, lon
}
