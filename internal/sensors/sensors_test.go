package sensors

import (
	"context"
	"testing"
	"time"
)

func TestStepStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noise = 10
	sim := NewSimulator(cfg, 42)
	sim.Set("edge", 35, 30)

	for i := 0; i < 500; i++ {
		sim.Step()
		r, ok := sim.Reading("edge")
		if !ok {
			t.Fatalf("reading missing")
		}
		if !cfg.Temperature.Contains(r.Temperature) {
			t.Fatalf("step %d: temperature %v escaped %+v", i, r.Temperature, cfg.Temperature)
		}
		if !cfg.Humidity.Contains(r.Humidity) {
			t.Fatalf("step %d: humidity %v escaped %+v", i, r.Humidity, cfg.Humidity)
		}
	}
}

func TestStepMovesByAtMostNoise(t *testing.T) {
	cfg := DefaultConfig()
	sim := NewSimulator(cfg, 1)
	before := sim.Set("s", 25, 50)
	sim.Step()
	after, _ := sim.Reading("s")

	if d := after.Temperature - before.Temperature; d > cfg.Noise || d < -cfg.Noise {
		t.Fatalf("temperature moved %v, noise %v", d, cfg.Noise)
	}
	if d := after.Humidity - before.Humidity; d > cfg.Noise || d < -cfg.Noise {
		t.Fatalf("humidity moved %v, noise %v", d, cfg.Noise)
	}
}

func TestIdealRangeClassification(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), 1)
	cases := []struct {
		temp, hum float64
		want      bool
	}{
		{23.5, 50, true},
		{20, 40, true},
		{25, 60, true},
		{29.8, 45, false},
		{23.5, 65, false},
		{19.9, 50, false},
	}
	for _, tc := range cases {
		if got := sim.Set("x", tc.temp, tc.hum).InRange; got != tc.want {
			t.Errorf("Set(%v, %v).InRange = %v, want %v", tc.temp, tc.hum, got, tc.want)
		}
	}
}

func TestAddIsIdempotentAndRemove(t *testing.T) {
	cfg := DefaultConfig()
	sim := NewSimulator(cfg, 3)
	first := sim.Add("a")
	if !cfg.Temperature.Contains(first.Temperature) || !cfg.Humidity.Contains(first.Humidity) {
		t.Fatalf("initial reading out of range: %+v", first)
	}
	if again := sim.Add("a"); again != first {
		t.Fatalf("Add reset existing sensor: %+v -> %+v", first, again)
	}
	sim.Remove("a")
	if _, ok := sim.Reading("a"); ok {
		t.Fatalf("reading survived Remove")
	}
	if len(sim.Snapshot()) != 0 {
		t.Fatalf("snapshot not empty")
	}
}

func TestDemoSensorsMatchDashboard(t *testing.T) {
	seeds := DemoSensors()
	if len(seeds) != 3 {
		t.Fatalf("len = %d", len(seeds))
	}
	sim := NewSimulator(DefaultConfig(), 1)
	wantInRange := map[string]bool{"1": false, "2": false, "3": false}
	for _, s := range seeds {
		r := sim.Set(s.ID, s.Temperature, s.Humidity)
		if r.InRange != wantInRange[s.ID] {
			t.Errorf("%s InRange = %v", s.Name, r.InRange)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), 9)
	sim.Set("a", 22, 50)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx, time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}
