package telemetry

import (
	"fmt"
	"strings"
)

const (
	Practice1        SessionKind = "FP1"
	Practice2        SessionKind = "FP2"
	Practice3        SessionKind = "FP3"
	SprintQualifying SessionKind = "SQ"
	Sprint           SessionKind = "Sprint"
	Qualifying       SessionKind = "Qualifying"
	Race             SessionKind = "Race"
)

// SessionKind is the type of session within a race weekend, e.g.: Practice, Qualifying, Race
type SessionKind string

var sessionKindAliases = map[string]SessionKind{
	"fp1":               Practice1,
	"practice 1":        Practice1,
	"fp2":               Practice2,
	"practice 2":        Practice2,
	"fp3":               Practice3,
	"practice 3":        Practice3,
	"sq":                SprintQualifying,
	"sprint qualifying": SprintQualifying,
	"sprint shootout":   SprintQualifying,
	"s":                 Sprint,
	"sprint":            Sprint,
	"q":                 Qualifying,
	"qualifying":        Qualifying,
	"r":                 Race,
	"race":              Race,
}

// ParseSessionKind converts a human-entered session name or abbreviation into a SessionKind.
func ParseSessionKind(s string) (SessionKind, error) {
	kind, ok := sessionKindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown session kind: %q", s)
	}
	return kind, nil
}

// SessionKey identifies a single session of a race weekend. It is immutable and its
// canonical string form is used as the cache key in the store.
type SessionKey struct {
	Season int         `json:"season" yaml:"season"` // Championship year, e.g. 2024
	Event  string      `json:"event" yaml:"event"`   // Event name, e.g. "Monaco Grand Prix"
	Kind   SessionKind `json:"kind" yaml:"kind"`     // Session within the event
}

// NewSessionKey builds a validated SessionKey. Event names are trimmed and session kind
// aliases such as "q" are replaced by the canonical kind, so that every spelling of a
// session maps to the same cache key.
func NewSessionKey(season int, event string, kind SessionKind) (SessionKey, error) {
	if canonical, err := ParseSessionKind(string(kind)); err == nil {
		kind = canonical
	}

	k := SessionKey{Season: season, Event: strings.TrimSpace(event), Kind: kind}
	return k, k.Validate()
}

// Validate reports whether the key can identify a session. Only canonical session
// kinds are accepted; use NewSessionKey to build keys from user input.
func (k SessionKey) Validate() error {
	switch {
	case k.Season < 1950:
		return fmt.Errorf("invalid season: %d", k.Season)
	case strings.TrimSpace(k.Event) == "":
		return fmt.Errorf("event name is required")
	}
	kind, err := ParseSessionKind(string(k.Kind))
	if err != nil {
		return err
	}
	if kind != k.Kind {
		return fmt.Errorf("session kind %q is not canonical, use %q", k.Kind, kind)
	}
	return nil
}

// String returns the canonical cache key, e.g. "2024/Monaco Grand Prix/Race".
func (k SessionKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.Season, strings.TrimSpace(k.Event), k.Kind)
}
