// Package align puts two laps on a common distance axis, so that they can be animated
// in lockstep regardless of their duration, sample rate and distance coverage.
package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
	"gonum.org/v1/gonum/floats"
)

// DefaultFrameCount is the number of distance buckets when none is configured.
const DefaultFrameCount = 400

// minSamples is the least number of usable samples a lap needs to be aligned
const minSamples = 2

// InsufficientDataError is returned when a lap has too few usable samples.
type InsufficientDataError struct {
	Lap     string // "A" or "B"
	Samples int    // Usable samples left after filtering
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("lap %s has %d usable samples, at least %d required", e.Lap, e.Samples, minSamples)
}

// AlignedSample is the state of a lap at a canonical bucket distance. The embedded
// sample's Distance is the bucket distance.
type AlignedSample struct {
	Bucket int
	telemetry.Sample
}

// Aligned holds two laps resampled onto the same distance buckets.
type Aligned struct {
	Distances []float64       // Canonical bucket distances, ascending
	A         []AlignedSample // Lap A at each bucket
	B         []AlignedSample // Lap B at each bucket
	End       float64         // Last bucket distance, min of both laps' coverage

	LapA []telemetry.Sample // Usable samples of the whole lap A, ordered by distance
	LapB []telemetry.Sample // Usable samples of the whole lap B, ordered by distance

	DroppedA int // Samples of lap A dropped as unusable or out of order
	DroppedB int // Samples of lap B dropped as unusable or out of order
}

// Len returns the number of buckets.
func (a *Aligned) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Distances)
}

// WithFrameCount sets the number of distance buckets
func WithFrameCount(n int) func(*Aligner) {
	return func(a *Aligner) {
		if n > 0 {
			a.frameCount = n
		}
	}
}

// Aligner resamples pairs of laps. It holds no state besides its configuration and is
// safe for concurrent use.
type Aligner struct {
	frameCount int
}

// New creates an Aligner with DefaultFrameCount buckets unless configured otherwise.
func New(options ...func(*Aligner)) *Aligner {
	a := Aligner{frameCount: DefaultFrameCount}
	for _, option := range options {
		option(&a)
	}
	return &a
}

// Align resamples both laps onto FrameCount buckets equally spaced between 0 and the
// shorter lap's maximum distance. Continuous channels are linearly interpolated, gear
// and brake snap to the nearest original sample. The inputs are not modified.
func (a *Aligner) Align(lapA, lapB []telemetry.Sample) (*Aligned, error) {
	samplesA, droppedA := usable(lapA)
	if len(samplesA) < minSamples {
		return nil, &InsufficientDataError{Lap: "A", Samples: len(samplesA)}
	}

	samplesB, droppedB := usable(lapB)
	if len(samplesB) < minSamples {
		return nil, &InsufficientDataError{Lap: "B", Samples: len(samplesB)}
	}

	distA, distB := distances(samplesA), distances(samplesB)
	end := max(min(floats.Max(distA), floats.Max(distB)), 0)

	out := Aligned{
		Distances: buckets(a.frameCount, end),
		End:       end,
		LapA:      samplesA,
		LapB:      samplesB,
		DroppedA:  droppedA,
		DroppedB:  droppedB,
	}

	out.A = make([]AlignedSample, len(out.Distances))
	out.B = make([]AlignedSample, len(out.Distances))

	for i, d := range out.Distances {
		out.A[i] = AlignedSample{Bucket: i, Sample: interpolate(samplesA, distA, d)}
		out.B[i] = AlignedSample{Bucket: i, Sample: interpolate(samplesB, distB, d)}
	}

	return &out, nil
}

// usable returns a copy of the samples with a valid position and non-decreasing
// distance, and how many were dropped.
func usable(samples []telemetry.Sample) ([]telemetry.Sample, int) {
	valid := make([]telemetry.Sample, 0, len(samples))
	for _, s := range samples {
		if s.HasPosition() {
			valid = append(valid, s)
		}
	}

	valid, _ = telemetry.FilterMonotonic(valid)
	return valid, len(samples) - len(valid)
}

func distances(samples []telemetry.Sample) []float64 {
	d := make([]float64, len(samples))
	for i, s := range samples {
		d[i] = s.Distance
	}
	return d
}

func buckets(n int, end float64) []float64 {
	if n == 1 {
		return []float64{0}
	}

	d := floats.Span(make([]float64, n), 0, end)
	d[n-1] = end // guard against rounding past the axis end
	return d
}

// interpolate returns the lap's state at distance d. dist holds the samples' distances.
// The bracket starts at the last sample at or below d, so repeated distances resolve to
// the last of them. Distances outside the lap clamp to its first or last sample.
func interpolate(samples []telemetry.Sample, dist []float64, d float64) telemetry.Sample {
	hi := sort.Search(len(dist), func(i int) bool { return dist[i] > d })

	switch {
	case hi == 0:
		return at(samples[0], d)
	case hi == len(samples):
		return at(samples[len(samples)-1], d)
	}

	lo, up := samples[hi-1], samples[hi]
	t := (d - lo.Distance) / (up.Distance - lo.Distance)

	nearest := lo
	if t >= 0.5 {
		nearest = up
	}

	return telemetry.Sample{
		Offset:   lo.Offset + time.Duration(t*float64(up.Offset-lo.Offset)),
		Distance: d,
		X:        lerp(lo.X, up.X, t),
		Y:        lerp(lo.Y, up.Y, t),
		Speed:    lerp(lo.Speed, up.Speed, t),
		Throttle: lerp(lo.Throttle, up.Throttle, t),
		Brake:    nearest.Brake,
		Gear:     nearest.Gear,
		RPM:      lerp(lo.RPM, up.RPM, t),
	}
}

func at(s telemetry.Sample, d float64) telemetry.Sample {
	s.Distance = d
	return s
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
