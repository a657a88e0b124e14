package provider

import (
	"context"
	"sync"

	"github.com/JimLucas95338/farmvision/internal/codec"
)

// Feed es un proveedor alimentado por dispositivos remotos a través del
// servidor de fixes. Pasa a Running con la primera lectura recibida.
type Feed struct {
	mu       sync.Mutex
	status   Status
	last     codec.RawFix
	hasFix   bool
	heading  float64
	hasHdg   bool
	devices  map[string]int
	failErr  error
	consumed bool
}

func NewFeed() *Feed {
	return &Feed{
		status:  StatusInitializing,
		devices: make(map[string]int),
	}
}

func (f *Feed) Start(ctx context.Context) error {
	return ctx.Err()
}

func (f *Feed) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Push registra una lectura nueva del dispositivo.
func (f *Feed) Push(device string, fix codec.RawFix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusStopped || f.status == StatusFailed {
		return
	}
	f.last = fix
	f.hasFix = true
	f.consumed = false
	if fix.Heading != nil {
		f.heading = *fix.Heading
		f.hasHdg = true
	}
	if device != "" {
		f.devices[device]++
	}
	f.status = StatusRunning
}

// LastFix devuelve la última lectura. Una lectura se entrega una sola vez
// para no reingestar la misma muestra en cada tick.
func (f *Feed) LastFix() (codec.RawFix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasFix || f.consumed || f.status != StatusRunning {
		return codec.RawFix{}, false
	}
	f.consumed = true
	return f.last, true
}

func (f *Feed) Heading() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heading, f.hasHdg
}

// Devices devuelve cuántas lecturas aportó cada dispositivo.
func (f *Feed) Devices() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.devices))
	for k, v := range f.devices {
		out[k] = v
	}
	return out
}

// Fail marca el feed como caído (p.ej. el listener murió).
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = StatusFailed
	f.failErr = err
}

func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failErr
}

func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusFailed {
		f.status = StatusStopped
	}
}
