package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// latLonToUTM прямая проекция UTM (Snyder), нужна только для проверки обратной
func latLonToUTM(zone int, lat, lon float64) (easting, northing float64) {
	e2 := utmE * utmE
	ep2 := e2 / (1 - e2)
	phi := lat * math.Pi / 180
	dLon := (lon - CentralMeridian(zone)) * math.Pi / 180

	n := utmA / math.Sqrt(1-e2*math.Sin(phi)*math.Sin(phi))
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * math.Cos(phi) * math.Cos(phi)
	a := math.Cos(phi) * dLon

	m := utmA * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	easting = utmK0*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + falseEasting
	northing = utmK0 * (m + n*math.Tan(phi)*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if lat < 0 {
		northing += falseNorthing
	}
	return easting, northing
}

func TestCentralMeridian(t *testing.T) {
	require.Equal(t, 105.0, CentralMeridian(48))
	require.Equal(t, -177.0, CentralMeridian(1))
	require.Equal(t, 3.0, CentralMeridian(0))
}

func TestUTMToLatLon_CentralMeridianOnEquator(t *testing.T) {
	lat, lon := UTMToLatLon(48, 500000, 0, true)
	require.InDelta(t, 0.0, lat, 1e-9)
	require.InDelta(t, 105.0, lon, 1e-9)
}

func TestUTMToLatLon_RoundTrip(t *testing.T) {
	points := []struct{ lat, lon float64 }{
		{21.03, 105.85},
		{10.77, 106.70},
		{16.05, 104.20},
		{45.00, 105.00},
		{1.30, 103.90},
	}
	for _, p := range points {
		e, n := latLonToUTM(48, p.lat, p.lon)
		lat, lon := UTMToLatLon(48, e, n, true)
		require.InDelta(t, p.lat, lat, 1e-3, "lat for %+v", p)
		require.InDelta(t, p.lon, lon, 1e-3, "lon for %+v", p)
	}
}

func TestUTMToLatLon_SouthernHemisphere(t *testing.T) {
	e, n := latLonToUTM(48, -6.2, 106.8)
	lat, lon := UTMToLatLon(48, e, n, false)
	require.InDelta(t, -6.2, lat, 1e-3)
	require.InDelta(t, 106.8, lon, 1e-3)
}
