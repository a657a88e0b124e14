package geo

import "math"

// EarthRadius es el radio medio de la Tierra en metros.
const EarthRadius = 6371000.0

// GeoPoint es una coordenada WGS84 en grados decimales.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid indica si el punto es finito y está dentro de rango.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDegrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// DistanceMeters devuelve la distancia haversine entre a y b.
func DistanceMeters(a, b GeoPoint) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// redondeo puede dejar h fuera de [0,1] en antipodas
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// BearingDegrees devuelve el rumbo inicial de a hacia b en [0, 360).
// Para a == b devuelve 0.
func BearingDegrees(a, b GeoPoint) float64 {
	dLon := toRadians(b.Longitude - a.Longitude)
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Mod(toDegrees(math.Atan2(y, x))+360, 360)
	if deg >= 360 || math.IsNaN(deg) {
		return 0
	}
	return deg
}

// LocalOffset proyecta target sobre un plano local centrado en origin.
// x apunta al este y z al norte; aproximación plana válida a corta distancia.
func LocalOffset(origin, target GeoPoint) (x, z float64) {
	d := DistanceMeters(origin, target)
	b := toRadians(BearingDegrees(origin, target))
	return d * math.Sin(b), d * math.Cos(b)
}

// Destination resuelve el problema directo sobre la esfera: el punto a
// distance metros de origin siguiendo el rumbo bearing (grados).
func Destination(origin GeoPoint, distance, bearing float64) GeoPoint {
	delta := distance / EarthRadius
	theta := toRadians(bearing)
	lat1 := toRadians(origin.Latitude)
	lon1 := toRadians(origin.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) +
		math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	lon := math.Mod(toDegrees(lon2)+540, 360) - 180
	return GeoPoint{Latitude: toDegrees(lat2), Longitude: lon}
}

// EquirectangularOffset aproxima el desplazamiento este/norte de target
// respecto a center usando la latitud media.
func EquirectangularOffset(center, target GeoPoint) (x, z float64) {
	lat1 := toRadians(center.Latitude)
	lat2 := toRadians(target.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(target.Longitude - center.Longitude)

	x = EarthRadius * dLon * math.Cos((lat1+lat2)/2)
	z = EarthRadius * dLat
	return x, z
}
