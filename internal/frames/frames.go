// Package frames builds the animation frames of two aligned laps: car positions, the
// selected telemetry variable with its color, and the time delta between the cars.
package frames

import (
	"fmt"
	"image/color"
	"iter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/roman-kulish/lap-telemetry/internal/align"
	"gonum.org/v1/gonum/floats"
)

// DefaultPadding is the margin added around the track in Bounds, in track units.
const DefaultPadding = 100

// Car is the state of one lap in a frame
type Car struct {
	X, Y       float64    // Track-local position
	Value      float64    // Raw value of the variable
	Normalized float64    // Value scaled to [0, 1] using the bounds of both laps
	Color      color.RGBA // Color of the normalised value
}

// Frame is a single step of the animation
type Frame struct {
	Index      int
	Distance   float64       // Canonical distance from the lap start in meters
	A, B       Car           // Lap A is the selected lap, B the reference lap
	Delta      time.Duration // Time of A minus time of B at this distance; positive when A is behind
	Annotation string        // e.g. "+0.352s @ 1.2 km"
}

// OutlinePoint is a point of the track outline colored by the variable
type OutlinePoint struct {
	X, Y  float64
	Color color.RGBA
}

// Bounds is the padded bounding box of both laps' positions
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the horizontal extent
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Sequence is an immutable, indexable sequence of frames. It can be read in any order
// and any number of times, so playback can restart or seek without rebuilding.
type Sequence struct {
	variable Variable
	frames   []Frame
	outline  []OutlinePoint
	bounds   Bounds
	min, max float64
}

// Len returns the number of frames
func (s *Sequence) Len() int {
	return len(s.frames)
}

// At returns the frame at index i, or false when i is out of range.
func (s *Sequence) At(i int) (Frame, bool) {
	if i < 0 || i >= len(s.frames) {
		return Frame{}, false
	}
	return s.frames[i], true
}

// All iterates over the frames in order.
func (s *Sequence) All() iter.Seq2[int, Frame] {
	return func(yield func(int, Frame) bool) {
		for i, f := range s.frames {
			if !yield(i, f) {
				return
			}
		}
	}
}

// Outline returns lap A's path colored by the variable.
func (s *Sequence) Outline() []OutlinePoint {
	return append([]OutlinePoint(nil), s.outline...)
}

// Bounds returns the padded bounding box of both laps.
func (s *Sequence) Bounds() Bounds {
	return s.bounds
}

// Variable returns the variable the frames are colored by.
func (s *Sequence) Variable() Variable {
	return s.variable
}

// Range returns the minimum and maximum raw value of the variable across both laps.
func (s *Sequence) Range() (float64, float64) {
	return s.min, s.max
}

// WithPadding sets the margin added around the track
func WithPadding(padding float64) func(*Builder) {
	return func(b *Builder) {
		if padding >= 0 {
			b.padding = padding
		}
	}
}

// Builder turns aligned laps into frame sequences.
type Builder struct {
	padding float64
}

// NewBuilder creates a Builder with DefaultPadding
func NewBuilder(options ...func(*Builder)) *Builder {
	b := Builder{padding: DefaultPadding}
	for _, option := range options {
		option(&b)
	}
	return &b
}

// Build creates the frame sequence of the aligned laps using the default Builder.
func Build(aligned *align.Aligned, v Variable) *Sequence {
	return NewBuilder().Build(aligned, v)
}

// Build creates the frame sequence of the aligned laps colored by v. It never fails;
// empty input gives an empty sequence. Both laps share one normalisation range, taken
// over their whole telemetry, so that equal values have equal colors; a flat range
// normalises to 0.
func (b *Builder) Build(aligned *align.Aligned, v Variable) *Sequence {
	seq := &Sequence{variable: v}

	n := aligned.Len()
	if n == 0 || len(aligned.A) != n || len(aligned.B) != n {
		return seq
	}

	valuesA := make([]float64, n)
	valuesB := make([]float64, n)
	xs := make([]float64, 0, 2*n)
	ys := make([]float64, 0, 2*n)

	for i := range n {
		valuesA[i] = v.Value(aligned.A[i].Sample)
		valuesB[i] = v.Value(aligned.B[i].Sample)
		xs = append(xs, aligned.A[i].X, aligned.B[i].X)
		ys = append(ys, aligned.A[i].Y, aligned.B[i].Y)
	}

	// the range covers the whole laps, including values between buckets and past the
	// end of the shorter lap
	all := make([]float64, 0, 2*n+len(aligned.LapA)+len(aligned.LapB))
	all = append(all, valuesA...)
	all = append(all, valuesB...)
	for _, s := range aligned.LapA {
		all = append(all, v.Value(s))
	}
	for _, s := range aligned.LapB {
		all = append(all, v.Value(s))
	}

	seq.min, seq.max = floats.Min(all), floats.Max(all)
	seq.bounds = Bounds{
		MinX: floats.Min(xs) - b.padding,
		MinY: floats.Min(ys) - b.padding,
		MaxX: floats.Max(xs) + b.padding,
		MaxY: floats.Max(ys) + b.padding,
	}

	scale := v.Scale()
	normalize := func(value float64) float64 {
		if seq.max <= seq.min {
			return 0
		}
		return (value - seq.min) / (seq.max - seq.min)
	}
	car := func(x, y, value float64) Car {
		norm := normalize(value)
		return Car{X: x, Y: y, Value: value, Normalized: norm, Color: scale.Color(norm)}
	}

	seq.frames = make([]Frame, n)
	seq.outline = make([]OutlinePoint, n)

	for i := range n {
		a, bs := aligned.A[i], aligned.B[i]
		distance := aligned.Distances[i]
		delta := a.Offset - bs.Offset

		f := Frame{
			Index:      i,
			Distance:   distance,
			A:          car(a.X, a.Y, valuesA[i]),
			B:          car(bs.X, bs.Y, valuesB[i]),
			Delta:      delta,
			Annotation: FormatDelta(delta, distance),
		}

		seq.frames[i] = f
		seq.outline[i] = OutlinePoint{X: f.A.X, Y: f.A.Y, Color: f.A.Color}
	}

	return seq
}

// FormatDelta formats a time delta at a distance, e.g. "+0.352s @ 1.2 km".
func FormatDelta(delta time.Duration, distance float64) string {
	return fmt.Sprintf("%+.3fs @ %s", delta.Seconds(), humanize.SIWithDigits(distance, 1, "m"))
}
