package telemetry

import (
	"context"
)

// Provider is the upstream source of session telemetry. Implementations fetch every
// driver's laps and samples for a session; the store calls it at most once per session.
type Provider interface {
	Fetch(ctx context.Context, session SessionKey) (*SessionData, error)
}

// ProviderFunc adapts an ordinary function to the Provider interface.
type ProviderFunc func(ctx context.Context, session SessionKey) (*SessionData, error)

func (f ProviderFunc) Fetch(ctx context.Context, session SessionKey) (*SessionData, error) {
	return f(ctx, session)
}

const (
	SpeedKPH SpeedUnit = "km/h"
	SpeedMPS SpeedUnit = "m/s"
	SpeedMPH SpeedUnit = "mph"
)

// SpeedUnit is the unit upstream speed values are expressed in.
type SpeedUnit string

// Units describes how the upstream encodes its raw samples. Zero value means
// seconds, meters and km/h.
type Units struct {
	Speed SpeedUnit `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// SessionData is the complete upstream payload for a session
type SessionData struct {
	Session SessionKey   `json:"session" yaml:"session"`
	Units   Units        `json:"units" yaml:"units"`
	Drivers []DriverData `json:"drivers" yaml:"drivers"`
}

// DriverData holds all laps of a driver in a session
type DriverData struct {
	Code string   `json:"code" yaml:"code"` // Three letter driver code
	Laps []RawLap `json:"laps" yaml:"laps"`
}

// RawLap is a lap as reported by the upstream.
type RawLap struct {
	Number  int         `json:"number" yaml:"number"`
	Time    *float64    `json:"time,omitempty" yaml:"time,omitempty"` // Lap time in seconds, nil if the lap was not timed
	Samples []RawSample `json:"samples" yaml:"samples"`
}

// RawSample is an upstream telemetry reading before normalisation. Times and
// distances may be session-relative; positions may be missing.
type RawSample struct {
	Time     float64  `json:"time" yaml:"time"`                   // Seconds
	Distance float64  `json:"distance" yaml:"distance"`           // Meters
	X        *float64 `json:"x,omitempty" yaml:"x,omitempty"`     // Track-local X position
	Y        *float64 `json:"y,omitempty" yaml:"y,omitempty"`     // Track-local Y position
	Speed    float64  `json:"speed" yaml:"speed"`                 // In Units.Speed
	Throttle float64  `json:"throttle" yaml:"throttle"`           // 0-100
	Brake    float64  `json:"brake" yaml:"brake"`                 // 0/1 flag or 0-100
	Gear     int      `json:"gear" yaml:"gear"`                   // Engaged gear
	RPM      float64  `json:"rpm" yaml:"rpm"`                     // Engine speed
}
