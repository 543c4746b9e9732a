// Package simplify reduces raw pointer samples to a compact polyline before a
// stroke becomes part of the shared canvas history.
package simplify

import (
	"math"

	"github.com/shared-sketch/backend/internal/model"
)

// Tolerance is the maximum perpendicular deviation, in canvas units, that a
// dropped vertex may have from the simplified polyline.
const Tolerance = 4.0

// Stroke simplifies points with the Ramer-Douglas-Peucker algorithm using
// Tolerance. The first and last points are always kept, and every output point
// carries the color of the first input point. Inputs with fewer than two
// points are returned unchanged.
func Stroke(points model.Stroke) model.Stroke {
	return WithTolerance(points, Tolerance)
}

// WithTolerance is Stroke with an explicit tolerance. A non-positive tolerance
// keeps every vertex.
func WithTolerance(points model.Stroke, epsilon float64) model.Stroke {
	if len(points) < model.MinStrokePoints {
		return append(model.Stroke(nil), points...)
	}

	color := points[0].Color
	keep := rdp(points, epsilon)

	out := make(model.Stroke, 0, len(points))
	for i, p := range points {
		if keep[i] {
			out = append(out, model.Point{X: p.X, Y: p.Y, Color: color})
		}
	}
	return out
}

// rdp marks the vertices that survive simplification. It walks ranges with an
// explicit stack so long strokes cannot exhaust the goroutine stack.
func rdp(points model.Stroke, epsilon float64) []bool {
	n := len(points)
	keep := make([]bool, n)
	keep[0], keep[n-1] = true, true

	if epsilon <= 0 {
		for i := range keep {
			keep[i] = true
		}
		return keep
	}

	type span struct{ first, last int }
	stack := []span{{0, n - 1}}

	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.last-s.first < 2 {
			continue
		}

		a, b := vec(points[s.first]), vec(points[s.last])
		index, dmax := -1, 0.0
		for i := s.first + 1; i < s.last; i++ {
			// Strict comparison: on ties the earliest vertex wins, which keeps
			// the result stable when simplifying an already simplified stroke.
			if d := segmentDistance(vec(points[i]), a, b); d > dmax {
				index, dmax = i, d
			}
		}

		if index >= 0 && dmax > epsilon {
			keep[index] = true
			stack = append(stack, span{s.first, index}, span{index, s.last})
		}
	}

	return keep
}

type point2 struct{ x, y float64 }

func vec(p model.Point) point2 {
	return point2{float64(p.X), float64(p.Y)}
}

// segmentDistance returns the euclidean distance from p to the segment ab.
// A degenerate segment collapses to the distance between p and a.
func segmentDistance(p, a, b point2) float64 {
	dx, dy := b.x-a.x, b.y-a.y
	if dx == 0 && dy == 0 {
		return math.Hypot(p.x-a.x, p.y-a.y)
	}

	t := ((p.x-a.x)*dx + (p.y-a.y)*dy) / (dx*dx + dy*dy)
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}

	return math.Hypot(p.x-(a.x+t*dx), p.y-(a.y+t*dy))
}
