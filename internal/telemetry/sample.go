package telemetry

import (
	"math"
	"time"
)

// Sample is one telemetry reading during a lap, normalised to lap-relative units.
type Sample struct {
	Offset   time.Duration `json:"offset"`   // Time since the start of the lap
	Distance float64       `json:"distance"` // Distance from the start of the lap in meters
	X        float64       `json:"x"`        // Track-local X position
	Y        float64       `json:"y"`        // Track-local Y position
	Speed    float64       `json:"speed"`    // Speed in km/h
	Throttle float64       `json:"throttle"` // Throttle pedal position, 0-100
	Brake    float64       `json:"brake"`    // Brake application, 0-100
	Gear     int           `json:"gear"`     // Engaged gear, 0 is neutral
	RPM      float64       `json:"rpm"`      // Engine speed
}

// HasPosition reports whether the sample has a usable distance and x/y position.
func (s Sample) HasPosition() bool {
	return isFinite(s.Distance) && isFinite(s.X) && isFinite(s.Y)
}

// IsDistanceMonotonic reports whether distance never decreases across samples.
func IsDistanceMonotonic(samples []Sample) bool {
	for i := 1; i < len(samples); i++ {
		if samples[i].Distance < samples[i-1].Distance {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
