package app

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/roman-kulish/lap-telemetry/internal/frames"
	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi = 72.0

	markerRadius   = 7
	outlineWidth   = 4
	referenceWidth = 1
	colorBarWidth  = 18

	// Default border sizes in pixels
	defaultTopBorder    = 50
	defaultLeftBorder   = 20
	defaultBottomBorder = 50
	defaultRightBorder  = 150
)

var (
	carAColor      = color.RGBA{A: 0xff}
	carBColor      = color.RGBA{R: 0xff, G: 0xd7, A: 0xff} // gold
	referenceColor = color.RGBA{R: 0xd3, G: 0xd3, B: 0xd3, A: 0xff}
)

// BorderConfig defines the sizes of space around the track map
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Left padding
	Bottom int // Space for the delta annotation
	Right  int // Space for the legend
}

// FrameRenderer draws frames of a comparison as images: the track outline colored by
// the variable, both cars, a color bar and the time delta annotation.
type FrameRenderer struct {
	config  RenderConfig
	borders BorderConfig
	font    *truetype.Font

	background color.Color
	foreground color.Color
}

// NewFrameRenderer creates a new frame renderer with the given configuration
func NewFrameRenderer(config RenderConfig) (*FrameRenderer, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}

	r := &FrameRenderer{
		config: config,
		borders: BorderConfig{
			Top:    defaultTopBorder,
			Left:   defaultLeftBorder,
			Bottom: defaultBottomBorder,
			Right:  defaultRightBorder,
		},
		font:       parsedFont,
		background: color.White,
		foreground: color.Black,
	}

	if config.Theme == DarkTheme {
		r.background, r.foreground = color.Black, color.White
	}

	return r, nil
}

// Render draws frame i of the comparison
func (r *FrameRenderer) Render(c *Comparison, i int) (*image.RGBA, error) {
	frame, ok := c.Frames.At(i)
	if !ok {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", i, c.Frames.Len())
	}

	area := image.Rect(
		r.borders.Left,
		r.borders.Top,
		r.config.Width-r.borders.Right,
		r.config.Height-r.borders.Bottom,
	)
	if area.Empty() {
		return nil, fmt.Errorf("image %dx%d is too small", r.config.Width, r.config.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))

	dc := gg.NewContextForRGBA(img)
	dc.SetColor(r.background)
	dc.Clear()

	proj := newProjection(area, c.Frames.Bounds())

	drawReference(dc, proj, c.Frames)
	drawOutline(dc, proj, c.Frames.Outline())

	bx, by := proj.point(frame.B.X, frame.B.Y)
	drawMarker(dc, bx, by, carBColor)

	ax, ay := proj.point(frame.A.X, frame.A.Y)
	drawMarker(dc, ax, ay, r.carAColor())

	ann, err := r.newAnnotator(img)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	if err = ann.annotate(dc, c, frame, area); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	return img, nil
}

// WriteFrames renders every nth frame of the comparison as PNG files into dir and
// returns the number of files written.
func (r *FrameRenderer) WriteFrames(c *Comparison, dir string, every int) (int, error) {
	if every <= 0 {
		every = 1
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	var written int
	for i := 0; i < c.Frames.Len(); i += every {
		img, err := r.Render(c, i)
		if err != nil {
			return written, err
		}

		if err = writePNG(filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i)), img); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

func (r *FrameRenderer) carAColor() color.RGBA {
	if r.config.Theme == DarkTheme {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return carAColor
}

// drawReference draws the reference lap as a thin gray path
func drawReference(dc *gg.Context, proj projection, seq *frames.Sequence) {
	dc.Push()
	for _, f := range seq.All() {
		dc.LineTo(proj.point(f.B.X, f.B.Y))
	}
	dc.SetColor(referenceColor)
	dc.SetLineWidth(referenceWidth)
	dc.Stroke()
	dc.Pop()
}

// drawOutline draws lap A segment by segment, each in the color of its end point
func drawOutline(dc *gg.Context, proj projection, outline []frames.OutlinePoint) {
	dc.Push()
	dc.SetLineWidth(outlineWidth)
	dc.SetLineCapRound()
	for i := 1; i < len(outline); i++ {
		x0, y0 := proj.point(outline[i-1].X, outline[i-1].Y)
		x1, y1 := proj.point(outline[i].X, outline[i].Y)

		dc.DrawLine(x0, y0, x1, y1)
		dc.SetColor(outline[i].Color)
		dc.Stroke()
	}
	dc.Pop()
}

func drawMarker(dc *gg.Context, x, y float64, col color.Color) {
	dc.DrawCircle(x, y, markerRadius)
	dc.SetColor(col)
	dc.Fill()
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cErr)
		}
	}()

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// projection maps track coordinates into an image area keeping the aspect ratio.
// Track Y grows upwards, image Y downwards.
type projection struct {
	bounds     frames.Bounds
	scale      float64
	offX, offY float64
}

func newProjection(area image.Rectangle, b frames.Bounds) projection {
	w, h := math.Max(b.Width(), 1), math.Max(b.Height(), 1)
	scale := math.Min(float64(area.Dx())/w, float64(area.Dy())/h)

	return projection{
		bounds: b,
		scale:  scale,
		offX:   float64(area.Min.X) + (float64(area.Dx())-w*scale)/2,
		offY:   float64(area.Min.Y) + (float64(area.Dy())-h*scale)/2,
	}
}

func (p projection) point(x, y float64) (float64, float64) {
	return p.offX + (x-p.bounds.MinX)*p.scale, p.offY + (p.bounds.MaxY-y)*p.scale
}

// Internal annotator implementation
type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	fontSize float64
	borders  BorderConfig
}

func (r *FrameRenderer) newAnnotator(img *image.RGBA) (*annotator, error) {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(r.font)
	ctx.SetFontSize(r.config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(r.foreground))
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		context:  ctx,
		fontSize: r.config.FontSize,
		borders:  r.borders,
		fontFace: truetype.NewFace(r.font, &truetype.Options{
			Size:    r.config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(dc *gg.Context, c *Comparison, f frames.Frame, area image.Rectangle) error {
	if err := a.drawTitle(dc, c); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	if err := a.drawColorBar(dc, c, area); err != nil {
		return fmt.Errorf("drawing color bar: %w", err)
	}
	if err := a.drawInfoBar(dc, c, f); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}
	return nil
}

func (a *annotator) lineHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawTitle(dc *gg.Context, c *Comparison) error {
	title := fmt.Sprintf("%s vs Fastest Lap %s - %s", c.Lap.Label(), c.Reference.Label(), c.Session)

	width := font.MeasureString(a.fontFace, title).Round()
	x := max((dc.Width()-width)/2, a.borders.Left)
	y := (a.borders.Top + a.lineHeight()) / 2

	_, err := a.context.DrawString(title, freetype.Pt(x, y))
	return err
}

func (a *annotator) drawInfoBar(dc *gg.Context, c *Comparison, f frames.Frame) error {
	info := fmt.Sprintf("Frame %d/%d   %s   %s %s   %s %s",
		f.Index+1, c.Frames.Len(),
		f.Annotation,
		c.Lap.Driver, formatValue(c.Frames.Variable(), f.A.Value),
		c.Reference.Driver, formatValue(c.Frames.Variable(), f.B.Value))

	metrics := a.fontFace.Metrics()
	textY := dc.Height() - (a.borders.Bottom-a.lineHeight())/2 - metrics.Descent.Round()

	_, err := a.context.DrawString(info, freetype.Pt(a.borders.Left, textY))
	return err
}

// drawColorBar draws the color scale next to the track with the variable's range
func (a *annotator) drawColorBar(dc *gg.Context, c *Comparison, area image.Rectangle) error {
	v := c.Frames.Variable()
	scale := v.Scale()
	lo, hi := c.Frames.Range()

	left := area.Max.X + a.borders.Right/3
	top, bottom := area.Min.Y+a.lineHeight(), area.Max.Y-a.lineHeight()
	if bottom <= top {
		return nil
	}

	dc.Push()
	for y := top; y < bottom; y++ {
		norm := float64(bottom-1-y) / float64(max(bottom-top-1, 1))
		dc.DrawRectangle(float64(left), float64(y), colorBarWidth, 1)
		dc.SetColor(scale.Color(norm))
		dc.Fill()
	}
	dc.DrawRectangle(float64(left), float64(top), colorBarWidth, float64(bottom-top))
	dc.SetColor(referenceColor)
	dc.SetLineWidth(1)
	dc.Stroke()
	dc.Pop()

	labels := []struct {
		text string
		y    int
	}{
		{v.Label(), area.Min.Y},
		{formatValue(v, hi), top + a.lineHeight()/2},
		{formatValue(v, lo), bottom},
	}
	for _, l := range labels {
		x := left
		if l.text != v.Label() {
			x = left + colorBarWidth + 4
		}
		if _, err := a.context.DrawString(l.text, freetype.Pt(x, l.y)); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v frames.Variable, value float64) string {
	switch v {
	case frames.Gear:
		return fmt.Sprintf("%d", int(math.Round(value)))
	case frames.Brake:
		if value > 0 {
			return "On"
		}
		return "Off"
	case frames.RPM:
		return humanize.Comma(int64(math.Round(value)))
	default:
		return fmt.Sprintf("%.0f %s", value, v.Unit())
	}
}

// lapSummary is a one-line description of a lap used in listings
func lapSummary(l telemetry.Lap) string {
	var flags string
	if l.IsSessionFastest {
		flags += " session-fastest"
	}
	if l.IsPersonalFastest {
		flags += " fastest"
	}
	if l.IsPersonalSlowest {
		flags += " slowest"
	}
	return fmt.Sprintf("%3d  %s%s", l.Number, telemetry.FormatLapTime(l.Time), flags)
}
