package smoother

import (
	"math"
	"testing"
	"time"

	"github.com/JimLucas95338/farmvision/internal/geo"
)

func sample(lat, lon, acc float64) Sample {
	return Sample{
		Point:              geo.GeoPoint{Latitude: lat, Longitude: lon},
		HorizontalAccuracy: acc,
		CapturedAt:         time.Now(),
	}
}

func TestEmptySmootherHasNoFix(t *testing.T) {
	s := New(Options{})
	if _, ok := s.CurrentFix(); ok {
		t.Fatalf("CurrentFix on empty smoother returned ok")
	}
	if s.State() != StateEmpty {
		t.Fatalf("state = %v, want empty", s.State())
	}
}

func TestDefaults(t *testing.T) {
	s := New(Options{})
	if s.WindowSize() != DefaultWindowSize {
		t.Fatalf("window size = %d, want %d", s.WindowSize(), DefaultWindowSize)
	}
	if s.Threshold() != DefaultAccuracyThreshold {
		t.Fatalf("threshold = %v, want %v", s.Threshold(), DefaultAccuracyThreshold)
	}
}

func TestIngestRejectsLowAccuracy(t *testing.T) {
	s := New(Options{})
	if !s.Ingest(sample(37.0, -120.0, 5)) {
		t.Fatalf("expected first sample to be accepted")
	}
	before, _ := s.CurrentFix()

	if s.Ingest(sample(38.0, -121.0, 25)) {
		t.Fatalf("sample with 25 m accuracy was accepted")
	}
	after, ok := s.CurrentFix()
	if !ok || after != before {
		t.Fatalf("fix changed after rejection: %+v -> %+v", before, after)
	}
	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
}

func TestIngestAcceptsThresholdBoundary(t *testing.T) {
	s := New(Options{AccuracyThreshold: 20})
	if !s.Ingest(sample(37.0, -120.0, 20)) {
		t.Fatalf("sample at exactly the threshold was rejected")
	}
}

func TestIngestRejectsInvalidAccuracy(t *testing.T) {
	s := New(Options{})
	for _, acc := range []float64{-1, math.NaN()} {
		if s.Ingest(sample(37.0, -120.0, acc)) {
			t.Fatalf("accuracy %v accepted", acc)
		}
	}
	if s.State() != StateEmpty {
		t.Fatalf("state = %v, want empty", s.State())
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	const window = 5
	s := New(Options{WindowSize: window})

	var all []Sample
	for i := 0; i < window+3; i++ {
		smp := sample(37.0+float64(i)*0.001, -120.0-float64(i)*0.001, float64(i%4)+1)
		all = append(all, smp)
		if !s.Ingest(smp) {
			t.Fatalf("sample %d rejected", i)
		}
	}
	if s.Len() != window {
		t.Fatalf("len = %d, want %d", s.Len(), window)
	}

	var sumLat, sumLon, sumW, sumAcc float64
	for _, smp := range all[len(all)-window:] {
		w := 1 / (smp.HorizontalAccuracy + 1)
		sumLat += smp.Point.Latitude * w
		sumLon += smp.Point.Longitude * w
		sumAcc += smp.HorizontalAccuracy
		sumW += w
	}

	fix, ok := s.CurrentFix()
	if !ok {
		t.Fatalf("no fix")
	}
	if math.Abs(fix.Point.Latitude-sumLat/sumW) > 1e-12 {
		t.Fatalf("lat = %v, want %v", fix.Point.Latitude, sumLat/sumW)
	}
	if math.Abs(fix.Point.Longitude-sumLon/sumW) > 1e-12 {
		t.Fatalf("lon = %v, want %v", fix.Point.Longitude, sumLon/sumW)
	}
	if math.Abs(fix.MeanAccuracy-sumAcc/window) > 1e-12 {
		t.Fatalf("mean accuracy = %v, want %v", fix.MeanAccuracy, sumAcc/window)
	}
}

func TestWeightedMeanFavoursAccurateSample(t *testing.T) {
	s := New(Options{})
	s.Ingest(sample(37.0, -120.0, 5))
	s.Ingest(sample(37.001, -120.001, 15))

	fix, ok := s.CurrentFix()
	if !ok {
		t.Fatalf("no fix")
	}

	w1, w2 := 1.0/6, 1.0/16
	wantLat := (37.0*w1 + 37.001*w2) / (w1 + w2)
	wantLon := (-120.0*w1 + -120.001*w2) / (w1 + w2)

	if math.Abs(fix.Point.Latitude-wantLat) > 1e-12 {
		t.Fatalf("lat = %.9f, want %.9f", fix.Point.Latitude, wantLat)
	}
	if math.Abs(fix.Point.Longitude-wantLon) > 1e-12 {
		t.Fatalf("lon = %.9f, want %.9f", fix.Point.Longitude, wantLon)
	}
	if !(fix.Point.Latitude > 37.0 && fix.Point.Latitude < 37.001) {
		t.Fatalf("lat %.9f not strictly between inputs", fix.Point.Latitude)
	}
	if fix.Point.Latitude-37.0 >= 37.001-fix.Point.Latitude {
		t.Fatalf("lat %.9f not closer to the more accurate sample", fix.Point.Latitude)
	}
	if fix.MeanAccuracy != 10 {
		t.Fatalf("mean accuracy = %v, want 10 (unweighted)", fix.MeanAccuracy)
	}
}

func TestResetReturnsToEmpty(t *testing.T) {
	s := New(Options{})
	s.Ingest(sample(37.0, -120.0, 3))
	if s.State() != StateTracking {
		t.Fatalf("state = %v, want tracking", s.State())
	}
	s.Reset()
	if s.State() != StateEmpty || s.Len() != 0 {
		t.Fatalf("reset did not clear window")
	}
	if _, ok := s.CurrentFix(); ok {
		t.Fatalf("fix after reset")
	}
}
