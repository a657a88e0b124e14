package anchor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/JimLucas95338/farmvision/internal/geo"
)

// fileEntry es el formato del archivo de anclas: mismo shape que el
// dashboard. Un ancla sin latitude/longitude queda sin coordenadas.
type fileEntry struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// LoadFile lee un arreglo JSON de anclas.
func LoadFile(path string) ([]Anchor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read anchors file: %w", err)
	}
	var entries []fileEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse anchors file %s: %w", path, err)
	}

	out := make([]Anchor, 0, len(entries))
	for i, e := range entries {
		a := Anchor{ID: e.ID, Name: e.Name}
		if e.Latitude != nil && e.Longitude != nil {
			p := geo.GeoPoint{Latitude: *e.Latitude, Longitude: *e.Longitude}
			if !p.Valid() {
				return nil, fmt.Errorf("anchor %d (%s): coordinates out of range", i, e.ID)
			}
			a.FixedPoint = &p
		}
		out = append(out, a)
	}
	return out, nil
}
