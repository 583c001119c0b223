package align

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

// lap builds samples at the given distances, one second apart, with speed from speeds.
func lap(distances, speeds []float64) []telemetry.Sample {
	samples := make([]telemetry.Sample, len(distances))
	for i, d := range distances {
		samples[i] = telemetry.Sample{
			Offset:   time.Duration(i) * time.Second,
			Distance: d,
			X:        d,
			Y:        -d,
			Speed:    speeds[i],
			Gear:     i + 1,
		}
	}
	return samples
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestAlign_LinearInterpolation(t *testing.T) {
	a := lap([]float64{0, 10, 20}, []float64{100, 200, 300})

	// 5 buckets over [0, 20] put one bucket at 15
	aligned, err := New(WithFrameCount(5)).Align(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := aligned.A[3]
	if got.Distance != 15 {
		t.Fatalf("expected bucket at 15, got %f", got.Distance)
	}
	if !approx(got.Speed, 250) {
		t.Errorf("expected speed 250, got %f", got.Speed)
	}
	if got.Offset != 1500*time.Millisecond {
		t.Errorf("expected offset 1.5s, got %s", got.Offset)
	}
	if !approx(got.X, 15) || !approx(got.Y, -15) {
		t.Errorf("expected position (15, -15), got (%f, %f)", got.X, got.Y)
	}
}

func TestAlign_DiscreteChannelsSnap(t *testing.T) {
	samples := []telemetry.Sample{
		{Distance: 0, Gear: 3, Brake: 0, Speed: 100},
		{Distance: 10, Gear: 4, Brake: 100, Speed: 200},
	}

	// 11 buckets over [0, 10] put one bucket on every meter
	aligned, err := New(WithFrameCount(11)).Align(samples, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testCases := []struct {
		bucket    int
		wantGear  int
		wantBrake float64
	}{
		{0, 3, 0},
		{4, 3, 0},
		{5, 4, 100}, // midpoint goes to the upper sample
		{6, 4, 100},
		{10, 4, 100},
	}

	for _, tc := range testCases {
		got := aligned.A[tc.bucket]
		if got.Gear != tc.wantGear {
			t.Errorf("bucket %d: expected gear %d, got %d", tc.bucket, tc.wantGear, got.Gear)
		}
		if got.Brake != tc.wantBrake {
			t.Errorf("bucket %d: expected brake %f, got %f", tc.bucket, tc.wantBrake, got.Brake)
		}
	}
}

func TestAlign_FrameCountAndCoverage(t *testing.T) {
	a := lap([]float64{0, 100, 250, 400, 5300}, []float64{1, 2, 3, 4, 5})
	b := lap([]float64{0, 40, 900, 4800}, []float64{1, 2, 3, 4})

	for _, n := range []int{1, 2, 3, 400, 1000} {
		aligned, err := New(WithFrameCount(n)).Align(a, b)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(aligned.Distances) != n || len(aligned.A) != n || len(aligned.B) != n {
			t.Fatalf("frame count %d: got %d distances, %d A, %d B", n, len(aligned.Distances), len(aligned.A), len(aligned.B))
		}

		for i := range aligned.Distances {
			if aligned.Distances[i] > 4800 {
				t.Errorf("frame count %d: bucket %d beyond coverage: %f", n, i, aligned.Distances[i])
			}
			if i > 0 && aligned.Distances[i] < aligned.Distances[i-1] {
				t.Errorf("frame count %d: buckets not ascending at %d", n, i)
			}
			if aligned.A[i].Distance != aligned.Distances[i] || aligned.B[i].Distance != aligned.Distances[i] {
				t.Errorf("frame count %d: sample distance differs from bucket %d", n, i)
			}
		}

		if n > 1 && aligned.Distances[n-1] != 4800 {
			t.Errorf("frame count %d: expected last bucket at 4800, got %f", n, aligned.Distances[n-1])
		}
	}
}

func TestAlign_DefaultFrameCount(t *testing.T) {
	a := lap([]float64{0, 10, 20}, []float64{100, 200, 300})

	aligned, err := New().Align(a, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aligned.Len() != DefaultFrameCount {
		t.Errorf("expected %d buckets, got %d", DefaultFrameCount, aligned.Len())
	}
}

func TestAlign_EndToEnd(t *testing.T) {
	x := lap([]float64{0, 50, 100}, []float64{100, 180, 150})
	fastest := lap([]float64{0, 60, 120}, []float64{90, 200, 160})

	aligned, err := New(WithFrameCount(3)).Align(x, fastest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aligned.End != 100 {
		t.Errorf("expected axis end 100, got %f", aligned.End)
	}

	wantDistances := []float64{0, 50, 100}
	wantA := []float64{100, 180, 150}
	wantB := []float64{90, 90 + 110*50.0/60, 200 - 40*40.0/60}

	for i := range wantDistances {
		if aligned.Distances[i] != wantDistances[i] {
			t.Errorf("bucket %d: expected distance %f, got %f", i, wantDistances[i], aligned.Distances[i])
		}
		if aligned.A[i].Speed != wantA[i] {
			t.Errorf("bucket %d: expected lap A speed %f, got %f", i, wantA[i], aligned.A[i].Speed)
		}
		if !approx(aligned.B[i].Speed, wantB[i]) {
			t.Errorf("bucket %d: expected lap B speed %f, got %f", i, wantB[i], aligned.B[i].Speed)
		}
	}

	if !approx(aligned.B[1].Speed, 181.666667) || !approx(math.Round(aligned.B[2].Speed*100)/100, 173.33) {
		t.Errorf("unexpected lap B speeds: %f, %f", aligned.B[1].Speed, aligned.B[2].Speed)
	}
}

func TestAlign_InsufficientData(t *testing.T) {
	good := lap([]float64{0, 10, 20}, []float64{1, 2, 3})
	single := lap([]float64{0}, []float64{1})
	noPosition := []telemetry.Sample{
		{Distance: 0, X: math.NaN()},
		{Distance: 10, X: 1, Y: math.Inf(1)},
		{Distance: 20, X: 2, Y: 2},
	}

	testCases := []struct {
		name    string
		a, b    []telemetry.Sample
		wantLap string
		wantN   int
	}{
		{"single sample A", single, good, "A", 1},
		{"single sample B", good, single, "B", 1},
		{"empty B", good, nil, "B", 0},
		{"missing positions", noPosition, good, "A", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New().Align(tc.a, tc.b)

			var insufficient *InsufficientDataError
			if !errors.As(err, &insufficient) {
				t.Fatalf("expected InsufficientDataError, got %v", err)
			}
			if insufficient.Lap != tc.wantLap || insufficient.Samples != tc.wantN {
				t.Errorf("expected lap %s with %d samples, got %+v", tc.wantLap, tc.wantN, insufficient)
			}
		})
	}
}

func TestAlign_ToleratesReversals(t *testing.T) {
	a := lap([]float64{0, 10, 8, 9, 20, 30}, []float64{100, 110, 999, 999, 120, 130})
	b := lap([]float64{0, 30}, []float64{100, 130})

	aligned, err := New(WithFrameCount(4)).Align(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aligned.DroppedA != 2 || aligned.DroppedB != 0 {
		t.Errorf("expected 2/0 dropped samples, got %d/%d", aligned.DroppedA, aligned.DroppedB)
	}
	for i, s := range aligned.A {
		if s.Speed > 130 {
			t.Errorf("bucket %d: reversed sample leaked into interpolation: %f", i, s.Speed)
		}
	}
}

func TestAlign_DuplicateDistances(t *testing.T) {
	samples := []telemetry.Sample{
		{Distance: 0, Speed: 100, Gear: 2},
		{Distance: 10, Speed: 150, Gear: 3},
		{Distance: 10, Speed: 160, Gear: 4},
		{Distance: 20, Speed: 200, Gear: 5},
	}

	aligned, err := New(WithFrameCount(3)).Align(samples, samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := aligned.A[1]
	if got.Distance != 10 || got.Speed != 160 || got.Gear != 4 {
		t.Errorf("expected the last sample at distance 10, got %+v", got.Sample)
	}
}

func TestAlign_DoesNotModifyInput(t *testing.T) {
	a := lap([]float64{0, 10, 5, 20}, []float64{1, 2, 3, 4})
	before := append([]telemetry.Sample(nil), a...)

	if _, err := New(WithFrameCount(10)).Align(a, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range a {
		if a[i] != before[i] {
			t.Fatalf("input sample %d modified", i)
		}
	}
}
