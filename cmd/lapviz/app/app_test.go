package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/lap-telemetry/internal/frames"
	"github.com/roman-kulish/lap-telemetry/internal/provider/archive"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

var silverstone = telemetry.SessionKey{Season: 2024, Event: "British Grand Prix", Kind: telemetry.Qualifying}

func ptr(v float64) *float64 { return &v }

// rawLap creates a straight lap 1 km long at height y, sampled every 10 m
func rawLap(number int, lapTime, y float64) telemetry.RawLap {
	const n = 101

	lap := telemetry.RawLap{Number: number, Time: ptr(lapTime)}
	for i := range n {
		d := float64(i) * 10
		lap.Samples = append(lap.Samples, telemetry.RawSample{
			Time:     lapTime * float64(i) / (n - 1),
			Distance: d,
			X:        ptr(d),
			Y:        ptr(y),
			Speed:    150 + d/10,
			Throttle: 100,
			Gear:     3 + i/20,
			RPM:      9000 + d,
		})
	}
	return lap
}

func testApp(t *testing.T) *App {
	t.Helper()

	root := t.TempDir()
	data := &telemetry.SessionData{
		Session: silverstone,
		Drivers: []telemetry.DriverData{
			{Code: "HAM", Laps: []telemetry.RawLap{rawLap(1, 20.5, 0), rawLap(2, 20, 0)}},
			{Code: "NOR", Laps: []telemetry.RawLap{rawLap(1, 19.5, 200)}},
		},
	}
	if _, err := archive.New(filepath.Join(root, "sessions")).Save(data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	config := NewConfig()
	config.Storage.Path = filepath.Join(root, "lapviz.db")
	config.Provider.Archive.Root = filepath.Join(root, "sessions")
	config.Align.FrameCount = 11
	config.Render.Width = 640
	config.Render.Height = 400

	a, err := New(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	return a
}

func TestApp_Compare(t *testing.T) {
	a := testApp(t)

	c, err := a.Compare(context.Background(), silverstone, "HAM", telemetry.DriverFastest, frames.Speed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Lap.Driver != "HAM" || c.Lap.Number != 2 {
		t.Errorf("expected HAM lap 2, got %s", c.Lap.Label())
	}
	if c.Reference.Driver != "NOR" || !c.Reference.IsSessionFastest {
		t.Errorf("expected NOR's session fastest lap, got %s", c.Reference.Label())
	}
	if c.Frames.Len() != 11 {
		t.Fatalf("expected 11 frames, got %d", c.Frames.Len())
	}

	last, _ := c.Frames.At(c.Frames.Len() - 1)
	if last.Distance != 1000 {
		t.Errorf("expected the last frame at 1000 m, got %f", last.Distance)
	}
	if want := 500 * time.Millisecond; last.Delta != want {
		t.Errorf("expected delta %s, got %s", want, last.Delta)
	}
}

func TestApp_CompareUnknownDriver(t *testing.T) {
	a := testApp(t)

	_, err := a.Compare(context.Background(), silverstone, "VER", telemetry.DriverFastest, frames.Speed)
	if !errors.Is(err, telemetry.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestApp_ExportRequiresCommandProvider(t *testing.T) {
	a := testApp(t)

	if _, err := a.Export(context.Background(), silverstone); err == nil {
		t.Fatal("expected error for the archive provider")
	}
}

func TestFrameRenderer_Render(t *testing.T) {
	a := testApp(t)

	c, err := a.Compare(context.Background(), silverstone, "HAM", telemetry.LapNumber(1), frames.Gear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewFrameRenderer(a.config.Render)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	img, err := r.Render(c, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if img.Bounds() != image.Rect(0, 0, 640, 400) {
		t.Fatalf("unexpected image size %v", img.Bounds())
	}

	area := image.Rect(defaultLeftBorder, defaultTopBorder, 640-defaultRightBorder, 400-defaultBottomBorder)
	proj := newProjection(area, c.Frames.Bounds())
	frame, _ := c.Frames.At(5)

	ax, ay := proj.point(frame.A.X, frame.A.Y)
	if got := img.RGBAAt(int(ax), int(ay)); got != carAColor {
		t.Errorf("expected car A marker, got %v", got)
	}
	bx, by := proj.point(frame.B.X, frame.B.Y)
	if got := img.RGBAAt(int(bx), int(by)); got != carBColor {
		t.Errorf("expected car B marker, got %v", got)
	}

	// the outline starts at the first frame, colored by lap A's lowest gear
	first, _ := c.Frames.At(0)
	ox, oy := proj.point(first.A.X+20, first.A.Y)
	if got := img.RGBAAt(int(ox), int(oy)); got != c.Frames.Outline()[1].Color {
		t.Errorf("expected outline color %v, got %v", c.Frames.Outline()[1].Color, got)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("expected white background, got %v", got)
	}

	if _, err = r.Render(c, c.Frames.Len()); err == nil {
		t.Error("expected error for frame out of range")
	}
}

func TestFrameRenderer_WriteFrames(t *testing.T) {
	a := testApp(t)

	c, err := a.Compare(context.Background(), silverstone, "HAM", telemetry.DriverSlowest, frames.Brake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := NewFrameRenderer(RenderConfig{Width: 320, Height: 240, Theme: DarkTheme})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "frames")
	n, err := r.WriteFrames(c, dir, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// frames 0, 5 and 10
	if n != 3 {
		t.Errorf("expected 3 frames, got %d", n)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != n || entries[0].Name() != "frame_00000.png" {
		t.Errorf("unexpected files %v", entries)
	}
}

func TestSaveTrace(t *testing.T) {
	a := testApp(t)

	c, err := a.Compare(context.Background(), silverstone, "HAM", telemetry.DriverFastest, frames.RPM)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "trace.png")
	files, err := SaveTrace(c, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(files) != 2 || files[1] != filepath.Join(filepath.Dir(path), "trace_delta.png") {
		t.Fatalf("unexpected files %v", files)
	}
	for _, f := range files {
		if info, err := os.Stat(f); err != nil || info.Size() == 0 {
			t.Errorf("expected %s to be written: %v", f, err)
		}
	}
}
