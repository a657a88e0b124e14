package codec

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeFrameFix(t *testing.T) {
	fr, err := DecodeFrame([]byte(`{"lat":37.45545,"lon":-120.00904,"acc":4.5,"ts":"2024-05-01T10:00:00Z"}`), now)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if fr.Kind != FrameFix {
		t.Fatalf("kind = %v, want fix", fr.Kind)
	}
	if fr.Fix.Latitude != 37.45545 || fr.Fix.Longitude != -120.00904 || fr.Fix.HorizontalAccuracy != 4.5 {
		t.Fatalf("fix = %+v", fr.Fix)
	}
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC); !fr.Fix.Timestamp.Equal(want) {
		t.Fatalf("ts = %v, want %v", fr.Fix.Timestamp, want)
	}
}

func TestDecodeFrameDefaults(t *testing.T) {
	fr, err := DecodeFrame([]byte(`  {"lat":1,"lon":2}  `), now)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !math.IsInf(fr.Fix.HorizontalAccuracy, 1) {
		t.Fatalf("missing acc decoded as %v, want +Inf", fr.Fix.HorizontalAccuracy)
	}
	if !fr.Fix.Timestamp.Equal(now) {
		t.Fatalf("missing ts decoded as %v, want now", fr.Fix.Timestamp)
	}
}

func TestDecodeFrameHello(t *testing.T) {
	fr, err := DecodeFrame([]byte(`{"device":"pixel-7"}`), now)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if fr.Kind != FrameHello || fr.Hello.Device != "pixel-7" {
		t.Fatalf("frame = %+v", fr)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	cases := []struct {
		name string
		line string
		want error
	}{
		{"empty", "   ", ErrEmptyFrame},
		{"no position", `{"acc":3}`, ErrMissingPosition},
		{"only lat", `{"lat":3}`, ErrMissingPosition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeFrame([]byte(tc.line), now); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := DecodeFrame([]byte(`{"lat":`), now); err == nil {
		t.Fatalf("truncated json decoded without error")
	}
	if _, err := DecodeFrame([]byte(`{"lat":1,"lon":2,"ts":"yesterday"}`), now); err == nil {
		t.Fatalf("bad ts decoded without error")
	}
}

func TestEncodeFixIsDecodable(t *testing.T) {
	hdg := 270.5
	line, err := EncodeFix(RawFix{Latitude: 37.1, Longitude: -120.2, HorizontalAccuracy: 3, Heading: &hdg, Timestamp: now})
	if err != nil {
		t.Fatalf("EncodeFix: %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Fatalf("line not newline terminated: %q", line)
	}
	fr, err := DecodeFrame(line, time.Time{})
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if fr.Fix.Heading == nil || *fr.Fix.Heading != hdg || !fr.Fix.Timestamp.Equal(now) {
		t.Fatalf("decoded = %+v", fr.Fix)
	}
}
