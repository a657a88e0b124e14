package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// RawFix es la lectura cruda que envía un dispositivo, una por línea.
// {"lat":37.45545,"lon":-120.00904,"acc":4.5,"ts":"2024-05-01T10:00:00Z"}
type RawFix struct {
	Latitude           float64   `json:"lat"`
	Longitude          float64   `json:"lon"`
	HorizontalAccuracy float64   `json:"acc"`
	Heading            *float64  `json:"hdg,omitempty"`
	Timestamp          time.Time `json:"ts"`
}

// Hello es la primera línea opcional de una conexión.
type Hello struct {
	Device string `json:"device"`
}

type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameHello
	FrameFix
)

// Frame es una línea decodificada: o un hello o un fix.
type Frame struct {
	Kind  FrameKind
	Hello Hello
	Fix   RawFix
}

var (
	ErrEmptyFrame      = errors.New("empty frame")
	ErrMissingPosition = errors.New("frame has no lat/lon")
)

type wireFrame struct {
	Device    *string  `json:"device"`
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
	Accuracy  *float64 `json:"acc"`
	Heading   *float64 `json:"hdg"`
	Timestamp *string  `json:"ts"`
}

// DecodeFrame interpreta una línea NDJSON. Si falta "ts" se usa now.
// Si falta "acc" se toma como precisión desconocida (+Inf) y el smoother
// la rechazará.
func DecodeFrame(line []byte, now time.Time) (Frame, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	var w wireFrame
	if err := json.Unmarshal(line, &w); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}

	if w.Latitude == nil && w.Longitude == nil && w.Device != nil {
		return Frame{Kind: FrameHello, Hello: Hello{Device: *w.Device}}, nil
	}
	if w.Latitude == nil || w.Longitude == nil {
		return Frame{}, ErrMissingPosition
	}

	fix := RawFix{
		Latitude:           *w.Latitude,
		Longitude:          *w.Longitude,
		HorizontalAccuracy: math.Inf(1),
		Heading:            w.Heading,
		Timestamp:          now,
	}
	if w.Accuracy != nil {
		fix.HorizontalAccuracy = *w.Accuracy
	}
	if w.Timestamp != nil && *w.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, *w.Timestamp)
		if err != nil {
			return Frame{}, fmt.Errorf("decode frame ts: %w", err)
		}
		fix.Timestamp = ts
	}

	return Frame{Kind: FrameFix, Fix: fix}, nil
}

// EncodeFix arma la línea NDJSON (con '\n') para un fix.
func EncodeFix(f RawFix) ([]byte, error) {
	type wire struct {
		Latitude  float64  `json:"lat"`
		Longitude float64  `json:"lon"`
		Accuracy  float64  `json:"acc"`
		Heading   *float64 `json:"hdg,omitempty"`
		Timestamp string   `json:"ts,omitempty"`
	}
	out := wire{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Accuracy:  f.HorizontalAccuracy,
		Heading:   f.Heading,
	}
	if !f.Timestamp.IsZero() {
		out.Timestamp = f.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
