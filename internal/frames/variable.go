package frames

import (
	"fmt"
	"strings"

	"github.com/roman-kulish/lap-telemetry/internal/telemetry"
)

const (
	Speed Variable = iota
	Throttle
	Gear
	Brake
	RPM
)

// Variable is a telemetry channel which can be overlaid on the track map.
type Variable uint8

type variableSpec struct {
	name  string
	unit  string
	value func(telemetry.Sample) float64
	scale *ColorScale
}

var variables = [...]variableSpec{
	Speed: {
		name:  "Speed",
		unit:  "km/h",
		value: func(s telemetry.Sample) float64 { return s.Speed },
		scale: plasmaScale,
	},
	Throttle: {
		name:  "Throttle",
		unit:  "%",
		value: func(s telemetry.Sample) float64 { return s.Throttle },
		scale: viridisScale,
	},
	Gear: {
		name:  "Gear",
		unit:  "Gear",
		value: func(s telemetry.Sample) float64 { return float64(s.Gear) },
		scale: gearScale,
	},
	Brake: {
		name:  "Brake",
		unit:  "On/Off",
		value: func(s telemetry.Sample) float64 { return s.Brake },
		scale: brakeScale,
	},
	RPM: {
		name:  "RPM",
		unit:  "RPM",
		value: func(s telemetry.Sample) float64 { return s.RPM },
		scale: infernoScale,
	},
}

// Variables returns all supported variables.
func Variables() []Variable {
	return []Variable{Speed, Throttle, Gear, Brake, RPM}
}

// ParseVariable accepts a variable name case-insensitively; "nGear" is an alias of Gear.
func ParseVariable(s string) (Variable, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "ngear" {
		return Gear, nil
	}

	for _, v := range Variables() {
		if strings.ToLower(v.String()) == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown variable: %q", s)
}

// Valid reports whether v is one of the supported variables.
func (v Variable) Valid() bool {
	return int(v) < len(variables)
}

func (v Variable) String() string {
	if !v.Valid() {
		return fmt.Sprintf("Variable(%d)", uint8(v))
	}
	return variables[v].name
}

// Unit returns the display unit, e.g. "km/h".
func (v Variable) Unit() string {
	if !v.Valid() {
		return ""
	}
	return variables[v].unit
}

// Label returns the name with the unit, e.g. "Speed (km/h)".
func (v Variable) Label() string {
	return fmt.Sprintf("%s (%s)", v, v.Unit())
}

// Value extracts the variable from a sample.
func (v Variable) Value(s telemetry.Sample) float64 {
	if !v.Valid() {
		return 0
	}
	return variables[v].value(s)
}

// Scale returns the color scale of the variable.
func (v Variable) Scale() *ColorScale {
	if !v.Valid() {
		return plasmaScale
	}
	return variables[v].scale
}
