// Package tracker corre el loop de ubicación: toma lecturas del proveedor,
// las suaviza, proyecta las anclas y publica el resultado.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/geo"
	"github.com/JimLucas95338/farmvision/internal/observability"
	"github.com/JimLucas95338/farmvision/internal/pipeline"
	"github.com/JimLucas95338/farmvision/internal/provider"
	"github.com/JimLucas95338/farmvision/internal/sensors"
	"github.com/JimLucas95338/farmvision/internal/smoother"
)

var (
	ErrPermissionDenied = provider.ErrPermissionDenied
	ErrProviderFailed   = errors.New("location provider failed")
	ErrProviderStopped  = errors.New("location provider stopped")

	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Motivos de rechazo de una lectura (label de métrica).
const (
	RejectInvalidCoords = "invalid_coords"
	RejectStale         = "stale"
	RejectLowAccuracy   = "low_accuracy"
)

type Config struct {
	LocationInterval time.Duration
	HeadingInterval  time.Duration
	UseCompass       bool
	Debug            pipeline.DebugOptions
	MaxSampleAge     time.Duration
	InitTimeout      time.Duration
	InitPoll         time.Duration
	SinkTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		LocationInterval: time.Second,
		HeadingInterval:  100 * time.Millisecond,
		UseCompass:       true,
		Debug:            pipeline.DebugOptions{Enabled: true, ShowAccuracy: true, ShowHeading: true},
		MaxSampleAge:     120 * time.Second,
		InitTimeout:      30 * time.Second,
		InitPoll:         100 * time.Millisecond,
		SinkTimeout:      2 * time.Second,
	}
}

// Sink publica el tracking de cada tick. Sus errores se loguean y cuentan
// pero nunca cortan el loop.
type Sink struct {
	Name    string
	Publish func(ctx context.Context, tr *pipeline.TrackingObject) error
	Errors  prometheus.Counter
}

// Hooks se llaman al registrar o quitar anclas.
type Hooks struct {
	AnchorRegistered func(a anchor.Anchor)
	AnchorRemoved    func(id string)
}

type Deps struct {
	Location provider.LocationProvider
	Heading  provider.HeadingProvider // opcional
	Smoother *smoother.Smoother
	Anchors  *anchor.Tracker
	Sensors  *sensors.Simulator // opcional
	Sinks    []Sink
	Hooks    Hooks
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

type Tracker struct {
	cfg       Config
	location  provider.LocationProvider
	heading   provider.HeadingProvider
	sensors   *sensors.Simulator
	sinks     []Sink
	hooks     Hooks
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	sessionID string
	now       func() time.Time

	// stateMu serializa ticks y cambios de anclas
	stateMu        sync.Mutex
	smoother       *smoother.Smoother
	anchors        *anchor.Tracker
	lastHeading    float64
	compassEnabled bool

	snapMu   sync.RWMutex
	snapshot *pipeline.TrackingObject
}

func New(cfg Config, deps Deps) *Tracker {
	def := DefaultConfig()
	if cfg.LocationInterval <= 0 {
		cfg.LocationInterval = def.LocationInterval
	}
	if cfg.HeadingInterval <= 0 {
		cfg.HeadingInterval = def.HeadingInterval
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = def.InitTimeout
	}
	if cfg.InitPoll <= 0 {
		cfg.InitPoll = def.InitPoll
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = def.SinkTimeout
	}
	if deps.Smoother == nil {
		deps.Smoother = smoother.New(smoother.Options{})
	}
	if deps.Anchors == nil {
		deps.Anchors = anchor.NewTracker(anchor.Layout{Center: sensors.FarmCenter})
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	return &Tracker{
		cfg:       cfg,
		location:  deps.Location,
		heading:   deps.Heading,
		sensors:   deps.Sensors,
		sinks:     deps.Sinks,
		hooks:     deps.Hooks,
		logger:    deps.Logger.With("component", "tracker"),
		metrics:   deps.Metrics,
		tracer:    otel.Tracer("github.com/JimLucas95338/farmvision/internal/tracker"),
		sessionID: uuid.NewString(),
		now:       time.Now,
		smoother:  deps.Smoother,
		anchors:   deps.Anchors,
	}
}

func (t *Tracker) SessionID() string { return t.sessionID }

// Run espera a que el proveedor esté Running y luego corre los ticks hasta
// que ctx se cancele (devuelve nil) o el proveedor falle/se detenga.
// Al salir siempre libera el proveedor.
func (t *Tracker) Run(ctx context.Context) error {
	if t.location == nil {
		return fmt.Errorf("%w: no location provider", ErrPermissionDenied)
	}
	if err := t.location.Start(ctx); err != nil {
		t.location.Stop()
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	defer t.location.Stop()

	if err := t.waitRunning(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	t.logger.Info("location tracking started",
		"session", t.sessionID,
		"interval", t.cfg.LocationInterval,
		"compass", t.cfg.UseCompass && t.heading != nil,
		"window", t.smoother.WindowSize(),
		"threshold_m", t.smoother.Threshold(),
	)

	locTicker := time.NewTicker(t.cfg.LocationInterval)
	defer locTicker.Stop()

	var headingC <-chan time.Time
	if t.cfg.UseCompass && t.heading != nil {
		headingTicker := time.NewTicker(t.cfg.HeadingInterval)
		defer headingTicker.Stop()
		headingC = headingTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("location tracking stopped", "session", t.sessionID)
			return nil

		case <-headingC:
			t.updateHeading()

		case <-locTicker.C:
			switch st := t.location.Status(); st {
			case provider.StatusRunning:
				t.Tick(ctx)
			case provider.StatusFailed:
				t.setStatus("Location services failed")
				t.logger.Error("location provider failed", "session", t.sessionID)
				return ErrProviderFailed
			case provider.StatusStopped:
				t.setStatus("Location services are disabled")
				t.logger.Error("location provider stopped", "session", t.sessionID)
				return ErrProviderStopped
			}
		}
	}
}

func (t *Tracker) waitRunning(ctx context.Context) error {
	deadline := time.NewTimer(t.cfg.InitTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(t.cfg.InitPoll)
	defer poll.Stop()

	for {
		switch st := t.location.Status(); st {
		case provider.StatusRunning:
			return nil
		case provider.StatusFailed, provider.StatusStopped:
			t.logger.Error("location services failed to initialize", "status", st.String())
			return fmt.Errorf("%w: provider %s during initialization", ErrPermissionDenied, st)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: provider still initializing after %v", ErrPermissionDenied, t.cfg.InitTimeout)
		case <-poll.C:
		}
	}
}

func (t *Tracker) updateHeading() {
	h, ok := t.heading.Heading()
	if !ok {
		return
	}
	t.stateMu.Lock()
	t.lastHeading = h
	t.compassEnabled = true
	t.stateMu.Unlock()
	t.metrics.HeadingDegrees.Set(h)
}

// Tick corre un ciclo de ingesta, suavizado y proyección de anclas.
// Devuelve false si no hubo lectura nueva o si fue descartada.
func (t *Tracker) Tick(ctx context.Context) bool {
	defer t.metrics.ObserveTickLatency(time.Now())
	start := t.now()

	ctx, span := t.tracer.Start(ctx, "tracker.tick")
	defer span.End()

	raw, ok := t.location.LastFix()
	if !ok {
		span.SetAttributes(attribute.Bool("fix.available", false))
		return false
	}

	t.stateMu.Lock()

	reason := ""
	switch {
	case !pipeline.CoordsValid(raw.Latitude, raw.Longitude):
		reason = RejectInvalidCoords
	case pipeline.IsStale(raw.Timestamp, start, t.cfg.MaxSampleAge):
		reason = RejectStale
	case !t.smoother.Ingest(pipeline.ToSample(raw)):
		reason = RejectLowAccuracy
	}

	var status string
	if reason != "" {
		t.metrics.FixesRejected.WithLabelValues(reason).Inc()
		span.SetAttributes(attribute.String("fix.rejected", reason))
		t.logger.Debug("fix rejected", "reason", reason, "acc", raw.HorizontalAccuracy)
		if reason == RejectLowAccuracy {
			status = pipeline.PoorAccuracyStatus(raw.HorizontalAccuracy)
		}
	} else {
		t.metrics.FixesAccepted.Inc()
	}

	fix, hasFix := t.smoother.CurrentFix()
	if reason == "" && hasFix {
		for _, err := range t.anchors.Update(fix) {
			t.metrics.AnchorErrors.Inc()
			t.logger.Warn("anchor update skipped", "err", err)
		}
		status = pipeline.FormatStatus(t.cfg.Debug, fix, t.lastHeading, t.compassEnabled)
	}
	if status == "" && reason != "" {
		status = t.currentStatus()
	}

	var heading *float64
	if t.compassEnabled {
		h := t.lastHeading
		heading = &h
	}
	samples := t.smoother.Len()
	anchors := t.anchors.List()
	t.stateMu.Unlock()

	t.metrics.WindowSamples.Set(float64(samples))
	t.metrics.AnchorsTracked.Set(float64(len(anchors)))
	if hasFix {
		t.metrics.SmoothedAcc.Set(fix.MeanAccuracy)
	}

	var readings map[string]sensors.Reading
	if t.sensors != nil {
		readings = t.sensors.Snapshot()
	}
	tr := pipeline.BuildTracking(t.sessionID, start, fix, hasFix, samples, heading, anchors, readings, status)
	t.publish(ctx, tr)

	span.SetAttributes(
		attribute.Int("window.samples", samples),
		attribute.Int("anchors", len(anchors)),
	)
	return reason == ""
}

func (t *Tracker) publish(ctx context.Context, tr *pipeline.TrackingObject) {
	t.snapMu.Lock()
	t.snapshot = tr
	t.snapMu.Unlock()

	for _, s := range t.sinks {
		if s.Publish == nil {
			continue
		}
		sctx, cancel := context.WithTimeout(ctx, t.cfg.SinkTimeout)
		err := s.Publish(sctx, tr)
		cancel()
		if err != nil {
			if s.Errors != nil {
				s.Errors.Inc()
			}
			t.logger.Debug("sink publish failed", "sink", s.Name, "err", err)
		}
	}
}

// Snapshot devuelve el último tracking publicado o nil si aún no hubo tick.
func (t *Tracker) Snapshot() *pipeline.TrackingObject {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	return t.snapshot
}

func (t *Tracker) currentStatus() string {
	t.snapMu.RLock()
	defer t.snapMu.RUnlock()
	if t.snapshot == nil {
		return ""
	}
	return t.snapshot.Status
}

// setStatus publica un estado terminal conservando el último fix.
func (t *Tracker) setStatus(status string) {
	t.snapMu.Lock()
	defer t.snapMu.Unlock()
	if t.snapshot == nil {
		t.snapshot = &pipeline.TrackingObject{SessionID: t.sessionID, State: smoother.StateEmpty.String()}
	} else {
		cp := *t.snapshot
		t.snapshot = &cp
	}
	t.snapshot.Status = status
}

// RegisterAnchor agrega un ancla y, si hay simulador, su sensor. Si ya hay
// un fix suavizado el ancla se proyecta en el momento.
func (t *Tracker) RegisterAnchor(a anchor.Anchor) (string, error) {
	t.stateMu.Lock()
	id, err := t.anchors.Register(a)
	var registered anchor.Anchor
	if err == nil {
		t.projectLocked(id)
		registered, _ = t.anchors.Get(id)
	}
	t.stateMu.Unlock()
	if err != nil {
		return "", err
	}

	if t.sensors != nil {
		t.sensors.Add(id)
	}
	if t.hooks.AnchorRegistered != nil {
		t.hooks.AnchorRegistered(registered)
	}
	if registered.FixedPoint == nil {
		t.logger.Warn("anchor registered without coordinates", "id", id)
	}
	return id, nil
}

// SetAnchorCoordinates mueve un ancla ya registrada y la reproyecta. Los
// hooks de registro se vuelven a llamar para propagar la nueva posición.
func (t *Tracker) SetAnchorCoordinates(id string, p geo.GeoPoint) (anchor.Anchor, error) {
	if !p.Valid() {
		return anchor.Anchor{}, fmt.Errorf("set coordinates %s: %w", id, ErrInvalidCoordinates)
	}
	t.stateMu.Lock()
	err := t.anchors.SetCoordinates(id, p)
	var moved anchor.Anchor
	if err == nil {
		t.projectLocked(id)
		moved, _ = t.anchors.Get(id)
	}
	t.stateMu.Unlock()
	if err != nil {
		return anchor.Anchor{}, err
	}

	t.logger.Info("anchor moved", "id", id, "lat", p.Latitude, "lon", p.Longitude)
	if t.hooks.AnchorRegistered != nil {
		t.hooks.AnchorRegistered(moved)
	}
	return moved, nil
}

// projectLocked proyecta un ancla contra el fix actual. Requiere stateMu.
func (t *Tracker) projectLocked(id string) {
	fix, ok := t.smoother.CurrentFix()
	if !ok {
		return
	}
	if err := t.anchors.Project(id, fix); err != nil {
		var missing *anchor.MissingCoordinatesError
		if !errors.As(err, &missing) {
			t.logger.Warn("anchor projection failed", "id", id, "err", err)
		}
	}
}

func (t *Tracker) RemoveAnchor(id string) error {
	t.stateMu.Lock()
	err := t.anchors.Remove(id)
	t.stateMu.Unlock()
	if err != nil {
		return err
	}
	if t.sensors != nil {
		t.sensors.Remove(id)
	}
	if t.hooks.AnchorRemoved != nil {
		t.hooks.AnchorRemoved(id)
	}
	return nil
}

// Anchors devuelve una copia de las anclas registradas.
func (t *Tracker) Anchors() []anchor.Anchor {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.anchors.List()
}

// Readings devuelve las lecturas simuladas por ancla (nil sin simulador).
func (t *Tracker) Readings() map[string]sensors.Reading {
	if t.sensors == nil {
		return nil
	}
	return t.sensors.Snapshot()
}

// Reset vacía la ventana de suavizado (p.ej. tras un salto de posición).
func (t *Tracker) Reset() {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.smoother.Reset()
}
