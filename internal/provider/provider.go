// Package provider abstrae las fuentes de ubicación y brújula que alimentan
// el loop de tracking.
package provider

import (
	"context"
	"errors"

	"github.com/JimLucas95338/farmvision/internal/codec"
)

// Status del servicio de ubicación.
type Status int

const (
	StatusInitializing Status = iota
	StatusRunning
	StatusFailed
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrPermissionDenied lo devuelve Start cuando no hay acceso a la ubicación.
var ErrPermissionDenied = errors.New("location permission denied")

// LocationProvider entrega la última lectura cruda disponible.
type LocationProvider interface {
	Start(ctx context.Context) error
	Status() Status
	LastFix() (codec.RawFix, bool)
	Stop()
}

// HeadingProvider es la brújula opcional; heading en grados.
type HeadingProvider interface {
	Heading() (float64, bool)
}
