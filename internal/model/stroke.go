package model

import (
	"fmt"
	"strconv"
)

// MinStrokePoints is the smallest number of points a committed stroke may have.
const MinStrokePoints = 2

// Color is a packed 24-bit RGB value.
type Color uint32

// ParseColor parses a "#RRGGBB" string. Hex digits are case-insensitive.
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return 0, fmt.Errorf("%w: %q", ErrColorFormat, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrColorFormat, s)
	}
	return Color(v), nil
}

// String returns the color as a lowercase "#rrggbb" string.
func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// RGB returns the three color channels.
func (c Color) RGB() (r, g, b int) {
	return int(c>>16) & 0xff, int(c>>8) & 0xff, int(c) & 0xff
}

// Point is one sample of a stroke. Every point of a stroke carries the
// stroke's color.
type Point struct {
	X     float32
	Y     float32
	Color Color
}

// Stroke is an ordered sequence of points in drawing order. Once committed to
// the canvas history a stroke is never modified.
type Stroke []Point

// Color returns the color of the stroke's first point, or 0 for an empty stroke.
func (s Stroke) Color() Color {
	if len(s) == 0 {
		return 0
	}
	return s[0].Color
}

// Committable reports whether the stroke has enough points to be committed.
func (s Stroke) Committable() bool {
	return len(s) >= MinStrokePoints
}
