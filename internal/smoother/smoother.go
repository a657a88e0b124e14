package smoother

import (
	"math"
	"time"

	"github.com/JimLucas95338/farmvision/internal/geo"
)

const (
	DefaultWindowSize        = 5
	DefaultAccuracyThreshold = 20.0 // metros
)

// Sample es una lectura cruda aceptable para el buffer de suavizado.
type Sample struct {
	Point              geo.GeoPoint
	HorizontalAccuracy float64 // metros
	CapturedAt         time.Time
}

// Fix es la posición suavizada del observador.
type Fix struct {
	Point        geo.GeoPoint `json:"point"`
	MeanAccuracy float64      `json:"mean_accuracy"`
}

// State describe si el smoother ya tiene alguna muestra aceptada.
type State int

const (
	StateEmpty State = iota
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	default:
		return "empty"
	}
}

type Options struct {
	WindowSize        int     // 0 => DefaultWindowSize
	AccuracyThreshold float64 // 0 => DefaultAccuracyThreshold
}

// Smoother mantiene una ventana FIFO de muestras y calcula una posición
// ponderada por precisión. No es seguro para uso concurrente: lo posee
// un único loop de tracking.
type Smoother struct {
	window    []Sample
	size      int
	threshold float64
}

func New(opts Options) *Smoother {
	size := opts.WindowSize
	if size <= 0 {
		size = DefaultWindowSize
	}
	threshold := opts.AccuracyThreshold
	if threshold <= 0 {
		threshold = DefaultAccuracyThreshold
	}
	return &Smoother{
		window:    make([]Sample, 0, size+1),
		size:      size,
		threshold: threshold,
	}
}

// Ingest agrega la muestra si su precisión no supera el umbral.
// Devuelve false sin tocar el estado cuando la rechaza.
func (s *Smoother) Ingest(sample Sample) bool {
	acc := sample.HorizontalAccuracy
	if math.IsNaN(acc) || acc < 0 || acc > s.threshold {
		return false
	}

	s.window = append(s.window, sample)
	if len(s.window) > s.size {
		// evict FIFO
		copy(s.window, s.window[1:])
		s.window = s.window[:s.size]
	}
	return true
}

// CurrentFix calcula la media ponderada con w = 1/(acc+1). MeanAccuracy es
// la media simple de las precisiones, no ponderada.
func (s *Smoother) CurrentFix() (Fix, bool) {
	if len(s.window) == 0 {
		return Fix{}, false
	}

	var sumLat, sumLon, sumAcc, weightSum float64
	for _, smp := range s.window {
		w := 1 / (smp.HorizontalAccuracy + 1)
		sumLat += smp.Point.Latitude * w
		sumLon += smp.Point.Longitude * w
		sumAcc += smp.HorizontalAccuracy
		weightSum += w
	}

	return Fix{
		Point: geo.GeoPoint{
			Latitude:  sumLat / weightSum,
			Longitude: sumLon / weightSum,
		},
		MeanAccuracy: sumAcc / float64(len(s.window)),
	}, true
}

func (s *Smoother) Reset() {
	s.window = s.window[:0]
}

func (s *Smoother) Len() int { return len(s.window) }

func (s *Smoother) State() State {
	if len(s.window) == 0 {
		return StateEmpty
	}
	return StateTracking
}

func (s *Smoother) WindowSize() int { return s.size }

func (s *Smoother) Threshold() float64 { return s.threshold }
