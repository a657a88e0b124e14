package pipeline

import (
	"testing"
	"time"

	"github.com/JimLucas95338/farmvision/internal/anchor"
	"github.com/JimLucas95338/farmvision/internal/geo"
	"github.com/JimLucas95338/farmvision/internal/sensors"
	"github.com/JimLucas95338/farmvision/internal/smoother"
)

func TestCoordsValid(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{37.45545, -120.00904, true},
		{0, 0, false},
		{91, 0, false},
		{0, 181, false},
		{-90, 180, true},
	}
	for _, tc := range cases {
		if got := CoordsValid(tc.lat, tc.lon); got != tc.want {
			t.Errorf("CoordsValid(%v, %v) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if !IsStale(now.Add(-121*time.Second), now, 120*time.Second) {
		t.Fatalf("121s old sample not stale")
	}
	if IsStale(now.Add(-time.Minute), now, 120*time.Second) {
		t.Fatalf("60s old sample stale")
	}
	if IsStale(now.Add(-time.Hour), now, 0) {
		t.Fatalf("disabled check reported stale")
	}
	if IsStale(time.Time{}, now, time.Second) {
		t.Fatalf("zero timestamp reported stale")
	}
}

func TestFormatStatus(t *testing.T) {
	fix := smoother.Fix{
		Point:        geo.GeoPoint{Latitude: 37.4554524, Longitude: -120.0090419},
		MeanAccuracy: 4.2,
	}
	all := DebugOptions{Enabled: true, ShowAccuracy: true, ShowHeading: true}

	cases := []struct {
		name    string
		opts    DebugOptions
		compass bool
		want    string
	}{
		{"full", all, true, "Location: 37.455452, -120.009042\nAccuracy: 4.2m\nHeading: 181.5°"},
		{"compass off", all, false, "Location: 37.455452, -120.009042\nAccuracy: 4.2m"},
		{"no accuracy", DebugOptions{Enabled: true, ShowHeading: true}, true, "Location: 37.455452, -120.009042\nHeading: 181.5°"},
		{"disabled", DebugOptions{}, true, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatStatus(tc.opts, fix, 181.5, tc.compass); got != tc.want {
				t.Fatalf("got %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestPoorAccuracyStatus(t *testing.T) {
	want := "Poor GPS accuracy: 25.0m\nWaiting for better signal..."
	if got := PoorAccuracyStatus(25); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildTrackingAndToGRPC(t *testing.T) {
	p := geo.GeoPoint{Latitude: 37.45585, Longitude: -120.00854}
	anchors := []anchor.Anchor{
		{ID: "2", Name: "Field Sensor B2", FixedPoint: &p, CurrentLocalOffset: anchor.Offset{X: 44, Z: 44.5}, Projected: true},
		{ID: "broken"},
	}
	readings := map[string]sensors.Reading{"2": {Temperature: 24.2, Humidity: 62}}
	hdg := 12.0
	fix := smoother.Fix{Point: geo.GeoPoint{Latitude: 37.45545, Longitude: -120.00904}, MeanAccuracy: 5}

	tr := BuildTracking("sess", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), fix, true, 3, &hdg, anchors, readings, "ok")
	if tr.Fix != 1 || tr.State != "tracking" || tr.Datetime != "2024-05-01T12:00:00Z" {
		t.Fatalf("tracking = %+v", tr)
	}
	if len(tr.Anchors) != 2 || tr.Anchors[0].Reading == nil || tr.Anchors[1].Lat != nil {
		t.Fatalf("anchors = %+v", tr.Anchors)
	}

	st, err := ToGRPC(tr)
	if err != nil {
		t.Fatalf("ToGRPC: %v", err)
	}
	fields := st.GetFields()
	if fields["session_id"].GetStringValue() != "sess" {
		t.Fatalf("session_id = %v", fields["session_id"])
	}
	if fields["hdg"].GetNumberValue() != 12 {
		t.Fatalf("hdg = %v", fields["hdg"])
	}
	if n := len(fields["anchors"].GetListValue().GetValues()); n != 2 {
		t.Fatalf("anchors in struct = %d", n)
	}
}

func TestBuildTrackingWithoutFix(t *testing.T) {
	tr := BuildTracking("s", time.Now(), smoother.Fix{}, false, 0, nil, nil, nil, "")
	if tr.Fix != 0 || tr.State != "empty" || tr.Anchors == nil {
		t.Fatalf("tracking = %+v", tr)
	}
}
