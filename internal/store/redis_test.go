package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/pipeline"
)

func TestKeys(t *testing.T) {
	if FixKey() != "farmvision:fix" {
		t.Fatalf("FixKey = %q", FixKey())
	}
	if AnchorKey("B2") != "farmvision:anchor:B2" {
		t.Fatalf("AnchorKey = %q", AnchorKey("B2"))
	}
}

func TestNilPublisherReportsNotInitialized(t *testing.T) {
	var r *Redis
	ctx := context.Background()
	if err := r.PublishTracking(ctx, &pipeline.TrackingObject{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("PublishTracking err = %v", err)
	}
	if _, _, err := r.LatestTracking(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("LatestTracking err = %v", err)
	}
	if err := r.ForgetAnchor(ctx, "x"); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("ForgetAnchor err = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRedis(ctx, "127.0.0.1:1", 0); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestPublishAndReadBack(t *testing.T) {
	fake := newFakeRedis(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, fake.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()

	if _, ok, err := r.LatestTracking(ctx); err != nil || ok {
		t.Fatalf("LatestTracking on empty store = ok %v err %v", ok, err)
	}

	tr := &pipeline.TrackingObject{
		SessionID: "s-1",
		Lat:       37.45545,
		Lon:       -120.00904,
		Accuracy:  4.2,
		Fix:       1,
		State:     "tracking",
		Anchors: []pipeline.AnchorView{
			{ID: "a", Name: "Field Sensor A1", Local: anchor.Offset{X: 1, Z: 2}, Projected: true},
			{ID: "b", Name: "Field Sensor B2", Local: anchor.Offset{X: -3, Z: 4}, Projected: true},
		},
	}
	if err := r.PublishTracking(ctx, tr); err != nil {
		t.Fatalf("PublishTracking: %v", err)
	}

	for _, key := range []string{"farmvision:fix", "farmvision:anchor:a", "farmvision:anchor:b"} {
		val, ttl, ok := fake.get(key)
		if !ok {
			t.Fatalf("key %s not written", key)
		}
		if ttl != "ex 600" && ttl != "EX 600" {
			t.Fatalf("key %s ttl args = %q, want EX 600", key, ttl)
		}
		if !json.Valid([]byte(val)) {
			t.Fatalf("key %s holds invalid JSON: %s", key, val)
		}
	}
	var stored pipeline.AnchorView
	val, _, _ := fake.get("farmvision:anchor:b")
	if err := json.Unmarshal([]byte(val), &stored); err != nil || stored.Name != "Field Sensor B2" || stored.Local.Z != 4 {
		t.Fatalf("anchor b payload = %s (err %v)", val, err)
	}

	got, ok, err := r.LatestTracking(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestTracking = ok %v err %v", ok, err)
	}
	if got.SessionID != "s-1" || got.Accuracy != 4.2 || len(got.Anchors) != 2 {
		t.Fatalf("LatestTracking = %+v", got)
	}

	views, err := r.LatestAnchors(ctx, []string{"a", "ghost", "b"})
	if err != nil {
		t.Fatalf("LatestAnchors: %v", err)
	}
	if len(views) != 2 || views["a"].Local.X != 1 || views["b"].Name != "Field Sensor B2" {
		t.Fatalf("LatestAnchors = %+v", views)
	}

	if err := r.ForgetAnchor(ctx, "a"); err != nil {
		t.Fatalf("ForgetAnchor: %v", err)
	}
	views, _ = r.LatestAnchors(ctx, []string{"a", "b"})
	if _, found := views["a"]; found || len(views) != 1 {
		t.Fatalf("after forget = %+v", views)
	}
}
