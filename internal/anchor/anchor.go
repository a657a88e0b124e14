package anchor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/JimLucas95338/farmvision/internal/geo"
	"github.com/JimLucas95338/farmvision/internal/smoother"
)

// Offset es una posición plana en metros (x este, z norte).
type Offset struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Anchor es un punto fijo del mundo real cuya posición local depende del fix
// del observador. FixedPoint nil significa coordenadas sin configurar.
type Anchor struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	FixedPoint         *geo.GeoPoint `json:"fixed_point,omitempty"`
	CurrentLocalOffset Offset        `json:"local_offset"`
	LayoutOffset       Offset        `json:"layout_offset"`
	Projected          bool          `json:"projected"`
}

var (
	ErrDuplicateAnchor = errors.New("anchor already registered")
	ErrUnknownAnchor   = errors.New("anchor not registered")
)

// MissingCoordinatesError se reporta por ancla; no aborta el tick.
type MissingCoordinatesError struct {
	ID string
}

func (e *MissingCoordinatesError) Error() string {
	return fmt.Sprintf("anchor %s: missing coordinates", e.ID)
}

// Layout define el centro de la granja y la escala de la escena.
type Layout struct {
	Center        geo.GeoPoint
	MetersPerUnit float64 // 0 => sin escala
}

// Tracker es el registro de anclas. Lo posee el loop de tracking.
type Tracker struct {
	anchors map[string]*Anchor
	layout  Layout
}

func NewTracker(layout Layout) *Tracker {
	return &Tracker{
		anchors: make(map[string]*Anchor),
		layout:  layout,
	}
}

// Register agrega un ancla. Si ID está vacío se genera uno.
func (t *Tracker) Register(a Anchor) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, exists := t.anchors[a.ID]; exists {
		return "", fmt.Errorf("register %s: %w", a.ID, ErrDuplicateAnchor)
	}
	if a.FixedPoint != nil {
		p := *a.FixedPoint
		a.FixedPoint = &p
		a.LayoutOffset = t.layoutOffset(p)
	}
	a.Projected = false
	t.anchors[a.ID] = &a
	return a.ID, nil
}

func (t *Tracker) Remove(id string) error {
	if _, exists := t.anchors[id]; !exists {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownAnchor)
	}
	delete(t.anchors, id)
	return nil
}

// SetCoordinates mueve un ancla y recalcula su posición en la escena.
func (t *Tracker) SetCoordinates(id string, p geo.GeoPoint) error {
	a, exists := t.anchors[id]
	if !exists {
		return fmt.Errorf("set coordinates %s: %w", id, ErrUnknownAnchor)
	}
	a.FixedPoint = &p
	a.LayoutOffset = t.layoutOffset(p)
	return nil
}

func (t *Tracker) Get(id string) (Anchor, bool) {
	a, exists := t.anchors[id]
	if !exists {
		return Anchor{}, false
	}
	return copyAnchor(a), true
}

// List devuelve copias ordenadas por ID.
func (t *Tracker) List() []Anchor {
	out := make([]Anchor, 0, len(t.anchors))
	for _, a := range t.anchors {
		out = append(out, copyAnchor(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) Len() int { return len(t.anchors) }

// Update proyecta cada ancla respecto al fix suavizado. Las anclas sin
// coordenadas se saltan y se reportan en el slice de errores.
func (t *Tracker) Update(fix smoother.Fix) []error {
	var errs []error
	for _, id := range t.sortedIDs() {
		if err := project(t.anchors[id], fix); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Project proyecta una sola ancla, p.ej. recién registrada o movida.
func (t *Tracker) Project(id string, fix smoother.Fix) error {
	a, exists := t.anchors[id]
	if !exists {
		return fmt.Errorf("project %s: %w", id, ErrUnknownAnchor)
	}
	return project(a, fix)
}

func project(a *Anchor, fix smoother.Fix) error {
	if a.FixedPoint == nil {
		a.Projected = false
		return &MissingCoordinatesError{ID: a.ID}
	}
	x, z := geo.LocalOffset(fix.Point, *a.FixedPoint)
	a.CurrentLocalOffset = Offset{X: x, Z: z}
	a.Projected = true
	return nil
}

func (t *Tracker) layoutOffset(p geo.GeoPoint) Offset {
	x, z := geo.EquirectangularOffset(t.layout.Center, p)
	if t.layout.MetersPerUnit > 0 {
		x /= t.layout.MetersPerUnit
		z /= t.layout.MetersPerUnit
	}
	return Offset{X: x, Z: z}
}

func (t *Tracker) sortedIDs() []string {
	ids := make([]string, 0, len(t.anchors))
	for id := range t.anchors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyAnchor(a *Anchor) Anchor {
	c := *a
	if a.FixedPoint != nil {
		p := *a.FixedPoint
		c.FixedPoint = &p
	}
	return c
}
