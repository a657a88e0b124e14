// Package api expone los endpoints JSON que consume el dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/geo"
	"github.com/JimLucas95338/farmvision/internal/pipeline"
	"github.com/JimLucas95338/farmvision/internal/sensors"
)

// Source es lo que el tracker ofrece a la API.
type Source interface {
	Anchors() []anchor.Anchor
	Readings() map[string]sensors.Reading
	Snapshot() *pipeline.TrackingObject
	SetAnchorCoordinates(id string, p geo.GeoPoint) (anchor.Anchor, error)
}

// Cache es el último estado publicado en Redis. Sirve /api/status mientras
// el tracker todavía no tiene fix (p.ej. justo después de reiniciar).
type Cache interface {
	LatestTracking(ctx context.Context) (*pipeline.TrackingObject, bool, error)
	LatestAnchors(ctx context.Context, ids []string) (map[string]pipeline.AnchorView, error)
}

// FeedInfo es el estado del feed de dispositivos.
type FeedInfo struct {
	Status    string         `json:"status"`
	Connected []string       `json:"connected"`
	Fixes     map[string]int `json:"fixes"`
	Error     string         `json:"error,omitempty"`
}

// Options son las partes opcionales de la API.
type Options struct {
	Cache  Cache
	Feed   func() FeedInfo
	Logger *slog.Logger
}

type handler struct {
	src    Source
	cache  Cache
	feed   func() FeedInfo
	logger *slog.Logger
}

// Register monta los endpoints en mux. /api/feed solo existe con Feed.
func Register(mux *http.ServeMux, src Source, opts Options) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handler{
		src:    src,
		cache:  opts.Cache,
		feed:   opts.Feed,
		logger: opts.Logger.With("component", "api"),
	}
	mux.HandleFunc("GET /api/sensors", h.sensors)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("PUT /api/anchors/{id}/coordinates", h.setCoordinates)
	if h.feed != nil {
		mux.HandleFunc("GET /api/feed", h.feedStatus)
	}
}

// Sensors arma la vista del dashboard. Las anclas sin coordenadas no se
// pueden ubicar en el mapa y se omiten.
func Sensors(anchors []anchor.Anchor, readings map[string]sensors.Reading) []sensors.Sensor {
	out := make([]sensors.Sensor, 0, len(anchors))
	for _, a := range anchors {
		if a.FixedPoint == nil {
			continue
		}
		s := sensors.Sensor{
			ID:        a.ID,
			Name:      a.Name,
			Latitude:  a.FixedPoint.Latitude,
			Longitude: a.FixedPoint.Longitude,
		}
		if r, ok := readings[a.ID]; ok {
			s.Temperature = r.Temperature
			s.Humidity = r.Humidity
			s.InRange = r.InRange
		}
		out = append(out, s)
	}
	return out
}

func (h *handler) sensors(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, Sensors(h.src.Anchors(), h.src.Readings()))
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if snap := h.src.Snapshot(); snap != nil {
		h.writeJSON(w, http.StatusOK, snap)
		return
	}
	if cached, ok := h.cachedStatus(r.Context()); ok {
		w.Header().Set("X-Farmvision-Source", "cache")
		h.writeJSON(w, http.StatusOK, cached)
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no location fix yet"})
}

// cachedStatus arma el estado desde Redis. Las anclas salen de sus claves
// propias, que se borran al quitar un ancla, y se limitan a las registradas.
func (h *handler) cachedStatus(ctx context.Context) (*pipeline.TrackingObject, bool) {
	if h.cache == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	tr, ok, err := h.cache.LatestTracking(ctx)
	if err != nil {
		h.logger.Warn("cached status read failed", "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	registered := h.src.Anchors()
	ids := make([]string, len(registered))
	for i, a := range registered {
		ids[i] = a.ID
	}
	views, err := h.cache.LatestAnchors(ctx, ids)
	if err != nil {
		h.logger.Warn("cached anchors read failed", "err", err)
		return tr, true
	}
	tr.Anchors = make([]pipeline.AnchorView, 0, len(views))
	for _, id := range ids {
		if v, ok := views[id]; ok {
			tr.Anchors = append(tr.Anchors, v)
		}
	}
	return tr, true
}

type coordinatesRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *handler) setCoordinates(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req coordinatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "latitude and longitude are required"})
		return
	}

	a, err := h.src.SetAnchorCoordinates(id, geo.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude})
	switch {
	case errors.Is(err, anchor.ErrUnknownAnchor):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.writeJSON(w, http.StatusOK, a)
	}
}

func (h *handler) feedStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.feed())
}

func (h *handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", "err", err)
	}
}
