package pipeline

import (
	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/sensors"
)

// TrackingObject es la foto de un tick que se publica hacia los sinks.
type TrackingObject struct {
	SessionID string `json:"session_id"`
	Datetime  string `json:"dt"`

	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Accuracy float64  `json:"acc"`
	Heading  *float64 `json:"hdg,omitempty"`
	Samples  int      `json:"samples"`

	State   string       `json:"state"` // empty | tracking
	Fix     int          `json:"fix"`   // 1 si hay fix suavizado
	Anchors []AnchorView `json:"anchors"`
	Status  string       `json:"status"` // overlay de debug
}

// AnchorView es un ancla tal como la ve el renderer.
type AnchorView struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Lat       *float64         `json:"lat,omitempty"`
	Lon       *float64         `json:"lon,omitempty"`
	Local     anchor.Offset    `json:"local"`
	Layout    anchor.Offset    `json:"layout"`
	Projected bool             `json:"projected"`
	Reading   *sensors.Reading `json:"reading,omitempty"`
}
