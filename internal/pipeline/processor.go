package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/codec"
	"github.com/JimLucas95338/farmvision/internal/geo"
	"github.com/JimLucas95338/farmvision/internal/sensors"
	"github.com/JimLucas95338/farmvision/internal/smoother"
)

// CoordsValid descarta coordenadas fuera de rango y el 0,0 que mandan
// los GPS sin fix.
func CoordsValid(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return geo.GeoPoint{Latitude: lat, Longitude: lon}.Valid()
}

// IsStale indica si la lectura es demasiado vieja para ser "live".
// maxAge <= 0 desactiva el chequeo.
func IsStale(ts, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || ts.IsZero() {
		return false
	}
	return now.Sub(ts) > maxAge
}

// ToSample convierte la lectura cruda en una muestra del smoother.
func ToSample(fix codec.RawFix) smoother.Sample {
	return smoother.Sample{
		Point:              geo.GeoPoint{Latitude: fix.Latitude, Longitude: fix.Longitude},
		HorizontalAccuracy: fix.HorizontalAccuracy,
		CapturedAt:         fix.Timestamp,
	}
}

// DebugOptions controla qué líneas aparecen en el overlay.
type DebugOptions struct {
	Enabled      bool
	ShowAccuracy bool
	ShowHeading  bool
}

// FormatStatus arma el texto del overlay:
//
//	Location: 37.455452, -120.009042
//	Accuracy: 4.2m
//	Heading: 181.0°
//
// La línea de heading solo aparece si la brújula está activa.
func FormatStatus(opts DebugOptions, fix smoother.Fix, heading float64, compassEnabled bool) string {
	if !opts.Enabled {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %.6f, %.6f", fix.Point.Latitude, fix.Point.Longitude)
	if opts.ShowAccuracy {
		fmt.Fprintf(&b, "\nAccuracy: %.1fm", fix.MeanAccuracy)
	}
	if opts.ShowHeading && compassEnabled {
		fmt.Fprintf(&b, "\nHeading: %.1f°", heading)
	}
	return b.String()
}

// PoorAccuracyStatus es el aviso cuando se descarta una lectura.
func PoorAccuracyStatus(accuracy float64) string {
	if math.IsInf(accuracy, 1) {
		return "Poor GPS accuracy: unknown\nWaiting for better signal..."
	}
	return fmt.Sprintf("Poor GPS accuracy: %.1fm\nWaiting for better signal...", accuracy)
}

func BuildTracking(
	sessionID string,
	dt time.Time,
	fix smoother.Fix,
	hasFix bool,
	samples int,
	heading *float64,
	anchors []anchor.Anchor,
	readings map[string]sensors.Reading,
	status string,
) *TrackingObject {
	tr := &TrackingObject{
		SessionID: sessionID,
		Datetime:  dt.UTC().Format(time.RFC3339),
		Samples:   samples,
		Heading:   heading,
		State:     smoother.StateEmpty.String(),
		Anchors:   make([]AnchorView, 0, len(anchors)),
		Status:    status,
	}
	if hasFix {
		tr.Lat = fix.Point.Latitude
		tr.Lon = fix.Point.Longitude
		tr.Accuracy = fix.MeanAccuracy
		tr.State = smoother.StateTracking.String()
		tr.Fix = 1
	}

	for _, a := range anchors {
		v := AnchorView{
			ID:        a.ID,
			Name:      a.Name,
			Local:     a.CurrentLocalOffset,
			Layout:    a.LayoutOffset,
			Projected: a.Projected,
		}
		if a.FixedPoint != nil {
			lat, lon := a.FixedPoint.Latitude, a.FixedPoint.Longitude
			v.Lat, v.Lon = &lat, &lon
		}
		if r, ok := readings[a.ID]; ok {
			r := r
			v.Reading = &r
		}
		tr.Anchors = append(tr.Anchors, v)
	}
	return tr
}

// ToGRPC convierte el tracking a un google.protobuf.Struct para el forwarder.
func ToGRPC(tr *TrackingObject) (*structpb.Struct, error) {
	b, err := json.Marshal(tr)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
