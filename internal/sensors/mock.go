package sensors

import "github.com/JimLucas95338/farmvision/internal/geo"

// Sensor es la vista que consume el dashboard del mapa.
type Sensor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	InRange     bool    `json:"isInRange"`
}

// Seed es un sensor de demo con lectura inicial fija.
type Seed struct {
	ID          string
	Name        string
	Point       geo.GeoPoint
	Temperature float64
	Humidity    float64
}

// FarmCenter es el centro de la granja de demo en Mariposa, CA.
var FarmCenter = geo.GeoPoint{Latitude: 37.45545247454799, Longitude: -120.00904196548811}

// DemoSensors son los sensores de campo que se registran cuando no se
// configura un archivo de anclas.
func DemoSensors() []Seed {
	return []Seed{
		{ID: "1", Name: "Field Sensor A1", Point: geo.GeoPoint{Latitude: 37.45545, Longitude: -120.00904}, Temperature: 23.5, Humidity: 65},
		{ID: "2", Name: "Field Sensor B2", Point: geo.GeoPoint{Latitude: 37.45585, Longitude: -120.00854}, Temperature: 24.2, Humidity: 62},
		{ID: "3", Name: "Field Sensor C3", Point: geo.GeoPoint{Latitude: 37.45515, Longitude: -120.00934}, Temperature: 29.8, Humidity: 45},
	}
}
