package frames

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultScaleSize is the number of pre-computed colors of a continuous scale
const DefaultScaleSize = 256

// ColorScale maps normalised values in [0, 1] to colors. Continuous scales blend
// between stops, discrete scales pick one of a fixed set of colors.
type ColorScale struct {
	name     string
	colorMap []color.RGBA // Pre-computed colors
	discrete bool
}

// newGradientScale pre-computes size colors blended in Luv space between evenly spaced
// hex color stops.
func newGradientScale(name string, size int, stops ...string) *ColorScale {
	if size <= 1 {
		size = DefaultScaleSize
	}

	keys := make([]colorful.Color, len(stops))
	for i, s := range stops {
		keys[i] = mustHex(s)
	}

	cs := &ColorScale{name: name, colorMap: make([]color.RGBA, size)}
	for i := range size {
		t := float64(i) / float64(size-1)
		cs.colorMap[i] = toRGBA(blend(keys, t))
	}
	return cs
}

// newDiscreteScale uses one color per step.
func newDiscreteScale(name string, steps ...string) *ColorScale {
	cs := &ColorScale{name: name, colorMap: make([]color.RGBA, len(steps)), discrete: true}
	for i, s := range steps {
		cs.colorMap[i] = toRGBA(mustHex(s))
	}
	return cs
}

// Name returns the name of the scale, e.g. "plasma"
func (cs *ColorScale) Name() string {
	return cs.name
}

// Len returns the number of distinct colors of the scale
func (cs *ColorScale) Len() int {
	return len(cs.colorMap)
}

// Discrete reports whether the scale has a fixed set of steps
func (cs *ColorScale) Discrete() bool {
	return cs.discrete
}

// Color returns the color of a normalised value. Values outside [0, 1] are clamped,
// NaN maps to the lowest color.
func (cs *ColorScale) Color(normalized float64) color.RGBA {
	if math.IsNaN(normalized) {
		return cs.colorMap[0]
	}

	n := len(cs.colorMap)
	normalized = math.Max(0, math.Min(1, normalized))

	var index int
	if cs.discrete {
		index = int(normalized * float64(n))
	} else {
		index = int(math.Round(normalized * float64(n-1)))
	}

	return cs.colorMap[min(index, n-1)]
}

func blend(keys []colorful.Color, t float64) colorful.Color {
	if len(keys) == 1 {
		return keys[0]
	}

	pos := t * float64(len(keys)-1)
	i := min(int(pos), len(keys)-2)

	return keys[i].BlendLuv(keys[i+1], pos-float64(i)).Clamped()
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Color scales approximating the well known perceptual color maps by a few stops.
var (
	plasmaScale = newGradientScale("plasma", DefaultScaleSize,
		"#0d0887", "#6a00a8", "#b12a90", "#e16462", "#fca636", "#f0f921")

	viridisScale = newGradientScale("viridis", DefaultScaleSize,
		"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725")

	infernoScale = newGradientScale("inferno", DefaultScaleSize,
		"#000004", "#420a68", "#932667", "#dd513a", "#fca50a", "#fcffa4")

	// 8 steps sampled from jet between 0.1 and 0.9
	gearScale = newDiscreteScale("jet8",
		"#0000e3", "#0048ff", "#00b4ff", "#29ffce", "#ceff29", "#ffc400", "#ff5900", "#e30000")

	brakeScale = newDiscreteScale("gray-red", "#808080", "#ff0000")
)
