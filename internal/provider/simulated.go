package provider

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/JimLucas95338/farmvision/internal/codec"
	"github.com/JimLucas95338/farmvision/internal/geo"
)

// SimulatedConfig controla el caminante aleatorio.
type SimulatedConfig struct {
	Center      geo.GeoPoint
	StepMeters  float64       // paso máximo por lectura
	MinAccuracy float64       // metros
	MaxAccuracy float64       // metros
	WarmUp      time.Duration // tiempo en Initializing tras Start
	Seed        int64
	DenyAccess  bool
}

// Simulated genera lecturas alrededor de Center, útil sin dispositivo.
type Simulated struct {
	cfg SimulatedConfig
	now func() time.Time

	mu        sync.Mutex
	rng       *rand.Rand
	status    Status
	readyAt   time.Time
	position  geo.GeoPoint
	heading   float64
	compassOn bool
}

func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.StepMeters <= 0 {
		cfg.StepMeters = 1.5
	}
	if cfg.MaxAccuracy <= 0 {
		cfg.MaxAccuracy = 30
	}
	if cfg.MinAccuracy < 0 || cfg.MinAccuracy > cfg.MaxAccuracy {
		cfg.MinAccuracy = 0
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulated{
		cfg:      cfg,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(seed)),
		status:   StatusInitializing,
		position: cfg.Center,
	}
}

func (s *Simulated) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.DenyAccess {
		s.status = StatusFailed
		return ErrPermissionDenied
	}
	s.readyAt = s.now().Add(s.cfg.WarmUp)
	s.compassOn = true
	return nil
}

func (s *Simulated) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInitializing && !s.readyAt.IsZero() && !s.now().Before(s.readyAt) {
		s.status = StatusRunning
	}
	return s.status
}

// LastFix avanza el caminante un paso y devuelve la nueva lectura.
func (s *Simulated) LastFix() (codec.RawFix, bool) {
	if s.Status() != StatusRunning {
		return codec.RawFix{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dist := s.rng.Float64() * s.cfg.StepMeters
	bearing := s.rng.Float64() * 360
	s.position = geo.Destination(s.position, dist, bearing)

	acc := s.cfg.MinAccuracy + s.rng.Float64()*(s.cfg.MaxAccuracy-s.cfg.MinAccuracy)
	return codec.RawFix{
		Latitude:           s.position.Latitude,
		Longitude:          s.position.Longitude,
		HorizontalAccuracy: acc,
		Timestamp:          s.now(),
	}, true
}

// Heading gira lentamente con algo de ruido.
func (s *Simulated) Heading() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.compassOn || s.status == StatusStopped || s.status == StatusFailed {
		return 0, false
	}
	s.heading = math.Mod(s.heading+s.rng.Float64(), 360)
	return s.heading, true
}

// Fail simula una caída del servicio de ubicación.
func (s *Simulated) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
}

func (s *Simulated) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusFailed {
		s.status = StatusStopped
	}
	s.compassOn = false
}
