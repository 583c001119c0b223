package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Lap is one complete circuit by one driver within a session.
type Lap struct {
	Session           SessionKey    `json:"session"`
	Driver            string        `json:"driver"`            // Three letter driver code, e.g. "VER"
	Number            int           `json:"number"`            // Lap number within the session, starting at 1
	Time              time.Duration `json:"time"`              // Lap time
	IsSessionFastest  bool          `json:"isSessionFastest"`  // Fastest lap of the whole session
	IsPersonalFastest bool          `json:"isPersonalFastest"` // Fastest lap of this driver
	IsPersonalSlowest bool          `json:"isPersonalSlowest"` // Slowest timed lap of this driver
}

// Label returns a short human-readable description, e.g. "VER lap 44 (1:14.165)".
func (l Lap) Label() string {
	return fmt.Sprintf("%s lap %d (%s)", l.Driver, l.Number, FormatLapTime(l.Time))
}

// FormatLapTime formats a lap time the way timing screens do: m:ss.mmm
func FormatLapTime(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d.%03d", ms/60_000, (ms/1000)%60, ms%1000)
}

type selectorKind uint8

const (
	selectLapNumber selectorKind = iota
	selectDriverFastest
	selectDriverSlowest
	selectSessionFastest
)

// LapSelector picks a concrete lap out of a session. The zero value is not valid,
// use one of LapNumber, DriverFastest, DriverSlowest or SessionFastest.
type LapSelector struct {
	kind   selectorKind
	number int
}

var (
	// DriverFastest selects the driver's lap with the minimum lap time.
	DriverFastest = LapSelector{kind: selectDriverFastest}

	// DriverSlowest selects the driver's timed lap with the maximum lap time.
	DriverSlowest = LapSelector{kind: selectDriverSlowest}

	// SessionFastest selects the fastest lap of the whole session, regardless of driver.
	SessionFastest = LapSelector{kind: selectSessionFastest}
)

// LapNumber selects an explicit lap number.
func LapNumber(n int) LapSelector {
	return LapSelector{kind: selectLapNumber, number: n}
}

// ParseLapSelector accepts "fastest", "slowest", "session-fastest" or a lap number.
func ParseLapSelector(s string) (LapSelector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fastest":
		return DriverFastest, nil
	case "slowest":
		return DriverSlowest, nil
	case "session-fastest", "overall":
		return SessionFastest, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return LapSelector{}, fmt.Errorf("invalid lap selector: %q", s)
	}
	return LapNumber(n), nil
}

// Number returns the explicit lap number and true, if the selector is LapNumber.
func (s LapSelector) Number() (int, bool) {
	return s.number, s.kind == selectLapNumber && s.number > 0
}

// IsDriverFastest reports whether the selector picks the driver's fastest lap.
func (s LapSelector) IsDriverFastest() bool { return s.kind == selectDriverFastest }

// IsDriverSlowest reports whether the selector picks the driver's slowest lap.
func (s LapSelector) IsDriverSlowest() bool { return s.kind == selectDriverSlowest }

// IsSessionFastest reports whether the selector picks the session's fastest lap.
func (s LapSelector) IsSessionFastest() bool { return s.kind == selectSessionFastest }

func (s LapSelector) String() string {
	switch s.kind {
	case selectDriverFastest:
		return "fastest"
	case selectDriverSlowest:
		return "slowest"
	case selectSessionFastest:
		return "session-fastest"
	default:
		return strconv.Itoa(s.number)
	}
}
