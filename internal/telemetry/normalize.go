package telemetry

import (
	"cmp"
	"math"
	"slices"
	"time"
)

const (
	kphPerMPS = 3.6
	kphPerMPH = 1.609344
)

// Normalize converts a raw upstream lap into lap-relative samples: time offsets start at
// zero, distance is meters from the first positioned sample, speed is km/h, throttle and
// brake are 0-100. Samples without a usable time or position are dropped, and so is any
// sample that would make distance regress. Non-finite speed and RPM readings become 0.
// The returned samples are ordered by offset.
func Normalize(lap RawLap, units Units) []Sample {
	if len(lap.Samples) == 0 {
		return nil
	}

	raw := slices.DeleteFunc(slices.Clone(lap.Samples), func(r RawSample) bool {
		return !isFinite(r.Time)
	})
	if len(raw) == 0 {
		return nil
	}

	slices.SortStableFunc(raw, func(a, b RawSample) int {
		return cmp.Compare(a.Time, b.Time)
	})

	brakeScale := 1.0
	if maxBrake(raw) <= 1 {
		brakeScale = 100 // upstream reports the brake as an on/off flag
	}

	samples := make([]Sample, 0, len(raw))
	t0 := raw[0].Time
	d0 := math.NaN()

	for _, r := range raw {
		if r.X == nil || r.Y == nil {
			continue
		}
		s := Sample{
			Offset:   secondsToDuration(r.Time - t0),
			Distance: r.Distance,
			X:        *r.X,
			Y:        *r.Y,
			Speed:    nonNegative(toKPH(r.Speed, units.Speed)),
			Throttle: clamp(r.Throttle, 0, 100),
			Brake:    clamp(r.Brake*brakeScale, 0, 100),
			Gear:     max(r.Gear, 0),
			RPM:      nonNegative(r.RPM),
		}
		if !s.HasPosition() {
			continue
		}
		if math.IsNaN(d0) {
			d0 = s.Distance
		}
		s.Distance -= d0

		samples = append(samples, s)
	}

	samples, _ = FilterMonotonic(samples)
	return samples
}

// FilterMonotonic drops every sample whose distance is lower than the highest distance
// seen so far, making distance non-decreasing. It returns the kept samples and the
// number of dropped ones. The input slice is not modified.
func FilterMonotonic(samples []Sample) ([]Sample, int) {
	if len(samples) == 0 {
		return nil, 0
	}

	kept := make([]Sample, 0, len(samples))
	highest := math.Inf(-1)
	for _, s := range samples {
		if s.Distance < highest {
			continue
		}
		highest = s.Distance
		kept = append(kept, s)
	}
	return kept, len(samples) - len(kept)
}

// LapDuration converts an upstream lap time in seconds into a time.Duration.
// It returns false for missing, non-finite or non-positive lap times.
func LapDuration(seconds *float64) (time.Duration, bool) {
	if seconds == nil || !isFinite(*seconds) || *seconds <= 0 {
		return 0, false
	}
	return secondsToDuration(*seconds), true
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func toKPH(v float64, unit SpeedUnit) float64 {
	switch unit {
	case SpeedMPS:
		return v * kphPerMPS
	case SpeedMPH:
		return v * kphPerMPH
	default:
		return v
	}
}

func maxBrake(samples []RawSample) float64 {
	m := 0.0
	for _, s := range samples {
		if isFinite(s.Brake) {
			m = math.Max(m, s.Brake)
		}
	}
	return m
}

// nonNegative maps NaN, infinities and negative readings to 0
func nonNegative(v float64) float64 {
	if !isFinite(v) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
