package telemetry

import (
	"errors"
	"testing"
	"time"
)

func TestParseLapSelector(t *testing.T) {
	testCases := []struct {
		in      string
		want    LapSelector
		wantErr bool
	}{
		{in: "fastest", want: DriverFastest},
		{in: " Slowest ", want: DriverSlowest},
		{in: "session-fastest", want: SessionFastest},
		{in: "overall", want: SessionFastest},
		{in: "12", want: LapNumber(12)},
		{in: "0", wantErr: true},
		{in: "first", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLapSelector(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSessionKey(t *testing.T) {
	key, err := NewSessionKey(2024, "  Monaco Grand Prix ", Race)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := key.String(); got != "2024/Monaco Grand Prix/Race" {
		t.Errorf("unexpected key %q", got)
	}

	if _, err = NewSessionKey(2024, "", Race); err == nil {
		t.Error("expected error for empty event")
	}
	if _, err = NewSessionKey(2024, "Monza", SessionKind("Warmup")); err == nil {
		t.Error("expected error for unknown session kind")
	}

	kind, err := ParseSessionKind("q")
	if err != nil || kind != Qualifying {
		t.Errorf("expected Qualifying, got %q (%v)", kind, err)
	}
}

func TestSessionKey_CanonicalKind(t *testing.T) {
	for _, alias := range []SessionKind{"q", "QUALIFYING", " qualifying "} {
		key, err := NewSessionKey(2024, "Monaco Grand Prix", alias)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", alias, err)
		}
		if key.Kind != Qualifying || key.String() != "2024/Monaco Grand Prix/Qualifying" {
			t.Errorf("%q: expected canonical key, got %q", alias, key)
		}
	}

	testCases := []SessionKind{"q", "race", "fp1", "Sprint Qualifying"}
	for _, kind := range testCases {
		key := SessionKey{Season: 2024, Event: "Monaco Grand Prix", Kind: kind}
		if err := key.Validate(); err == nil {
			t.Errorf("expected error for non-canonical kind %q", kind)
		}
	}

	for _, kind := range []SessionKind{Practice1, Practice2, Practice3, SprintQualifying, Sprint, Qualifying, Race} {
		key := SessionKey{Season: 2024, Event: "Monaco Grand Prix", Kind: kind}
		if err := key.Validate(); err != nil {
			t.Errorf("unexpected error for %q: %v", kind, err)
		}
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{Driver: "SAR", Selector: "fastest"})
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected NotFoundError to match ErrNotFound")
	}
}

func TestFormatLapTime(t *testing.T) {
	if got := FormatLapTime(74165 * time.Millisecond); got != "1:14.165" {
		t.Errorf("unexpected lap time %q", got)
	}
}
