// Package sensors simula las lecturas de temperatura y humedad de los
// sensores de campo.
package sensors

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	InRange     bool    `json:"isInRange"`
}

// Range es un intervalo cerrado [Min, Max].
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

type Config struct {
	Temperature      Range
	Humidity         Range
	IdealTemperature Range
	IdealHumidity    Range
	Noise            float64
}

func DefaultConfig() Config {
	return Config{
		Temperature:      Range{Min: 15, Max: 35},
		Humidity:         Range{Min: 30, Max: 80},
		IdealTemperature: Range{Min: 20, Max: 25},
		IdealHumidity:    Range{Min: 40, Max: 60},
		Noise:            0.5,
	}
}

// Simulator mantiene un random walk por sensor.
type Simulator struct {
	cfg Config

	mu       sync.RWMutex
	rng      *rand.Rand
	readings map[string]Reading
}

func NewSimulator(cfg Config, seed int64) *Simulator {
	return &Simulator{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(seed)),
		readings: make(map[string]Reading),
	}
}

// Add inicia un sensor con valores uniformes dentro del rango permitido.
func (s *Simulator) Add(id string) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.readings[id]; ok {
		return r
	}
	r := s.classify(
		s.uniform(s.cfg.Temperature),
		s.uniform(s.cfg.Humidity),
	)
	s.readings[id] = r
	return r
}

// Set fija una lectura conocida (p.ej. datos de demo).
func (s *Simulator) Set(id string, temperature, humidity float64) Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.classify(s.cfg.Temperature.Clamp(temperature), s.cfg.Humidity.Clamp(humidity))
	s.readings[id] = r
	return r
}

func (s *Simulator) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.readings, id)
}

// Step avanza todos los sensores un paso del random walk.
func (s *Simulator) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.readings {
		temp := s.cfg.Temperature.Clamp(r.Temperature + s.noise())
		hum := s.cfg.Humidity.Clamp(r.Humidity + s.noise())
		s.readings[id] = s.classify(temp, hum)
	}
}

func (s *Simulator) Reading(id string) (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[id]
	return r, ok
}

func (s *Simulator) Snapshot() map[string]Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Reading, len(s.readings))
	for k, v := range s.readings {
		out[k] = v
	}
	return out
}

func (s *Simulator) classify(temp, hum float64) Reading {
	return Reading{
		Temperature: temp,
		Humidity:    hum,
		InRange:     s.cfg.IdealTemperature.Contains(temp) && s.cfg.IdealHumidity.Contains(hum),
	}
}

func (s *Simulator) uniform(r Range) float64 {
	return r.Min + s.rng.Float64()*(r.Max-r.Min)
}

func (s *Simulator) noise() float64 {
	return (s.rng.Float64()*2 - 1) * s.cfg.Noise
}

// Run avanza el random walk cada interval hasta que ctx se cancele.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Step()
		}
	}
}
