package app

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	traceWidth  = 14 * vg.Inch
	traceHeight = 6 * vg.Inch
)

// NewTracePlot plots the variable of both laps against the distance from the lap start.
func NewTracePlot(c *Comparison) (*plot.Plot, error) {
	v := c.Frames.Variable()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s vs %s", c.Session, c.Lap.Label(), c.Reference.Label())
	p.X.Label.Text = "Distance (m)"
	p.Y.Label.Text = v.Label()

	ptsA := make(plotter.XYs, 0, c.Frames.Len())
	ptsB := make(plotter.XYs, 0, c.Frames.Len())
	for _, f := range c.Frames.All() {
		ptsA = append(ptsA, plotter.XY{X: f.Distance, Y: f.A.Value})
		ptsB = append(ptsB, plotter.XY{X: f.Distance, Y: f.B.Value})
	}

	lineA, err := plotter.NewLine(ptsA)
	if err != nil {
		return nil, fmt.Errorf("creating %s line: %w", c.Lap.Driver, err)
	}
	lineA.Color = carAColor
	lineA.Width = vg.Points(1)

	lineB, err := plotter.NewLine(ptsB)
	if err != nil {
		return nil, fmt.Errorf("creating %s line: %w", c.Reference.Driver, err)
	}
	lineB.Color = carBColor
	lineB.Width = vg.Points(1)

	p.Add(plotter.NewGrid(), lineB, lineA)
	p.Legend.Add(c.Lap.Label(), lineA)
	p.Legend.Add("Fastest "+c.Reference.Label(), lineB)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// NewDeltaPlot plots the time delta between the laps against the distance. Positive
// values mean the selected lap is behind the reference.
func NewDeltaPlot(c *Comparison) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - Delta to %s", c.Lap.Label(), c.Reference.Label())
	p.X.Label.Text = "Distance (m)"
	p.Y.Label.Text = "Delta (s)"

	pts := make(plotter.XYs, 0, c.Frames.Len())
	for _, f := range c.Frames.All() {
		pts = append(pts, plotter.XY{X: f.Distance, Y: f.Delta.Seconds()})
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("creating delta line: %w", err)
	}
	line.Color = carAColor
	line.Width = vg.Points(1)

	p.Add(plotter.NewGrid(), line)
	return p, nil
}

// SaveTrace writes the variable trace to path and the delta trace next to it with a
// "_delta" suffix. The image format follows the file extension.
func SaveTrace(c *Comparison, path string) ([]string, error) {
	if c.Frames.Len() == 0 {
		return nil, fmt.Errorf("no frames to plot")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	trace, err := NewTracePlot(c)
	if err != nil {
		return nil, err
	}
	if err = trace.Save(traceWidth, traceHeight, path); err != nil {
		return nil, fmt.Errorf("saving trace: %w", err)
	}

	delta, err := NewDeltaPlot(c)
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(path)
	deltaPath := path[:len(path)-len(ext)] + "_delta" + ext
	if err = delta.Save(traceWidth, traceHeight, deltaPath); err != nil {
		return nil, fmt.Errorf("saving delta trace: %w", err)
	}

	return []string{path, deltaPath}, nil
}
