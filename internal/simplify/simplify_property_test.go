package simplify

import (
	"math"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shared-sketch/backend/internal/model"
)

func pointGen() gopter.Gen {
	return gopter.CombineGens(
		gen.Float32Range(-2000, 2000),
		gen.Float32Range(-2000, 2000),
		gen.UInt32Range(0, 0xffffff),
	).Map(func(values []interface{}) model.Point {
		return model.Point{
			X:     values[0].(float32),
			Y:     values[1].(float32),
			Color: model.Color(values[2].(uint32)),
		}
	})
}

// gridPointGen produces points on a coarse grid so that coincident and
// collinear samples show up often.
func gridPointGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 4),
		gen.IntRange(0, 4),
	).Map(func(values []interface{}) model.Point {
		return model.Point{
			X:     float32(values[0].(int) * 4),
			Y:     float32(values[1].(int) * 4),
			Color: 0x83769c,
		}
	})
}

func strokeGen(points gopter.Gen) gopter.Gen {
	return gen.SliceOf(points).SuchThat(func(v []model.Point) bool {
		return len(v) >= model.MinStrokePoints
	})
}

func closeTo(a, b float32) bool {
	return math.Abs(float64(a)-float64(b)) < 1e-6
}

func TestSimplifyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	for name, points := range map[string]gopter.Gen{"random": pointGen(), "grid": gridPointGen()} {
		properties.Property(name+": keeps at least two points and both endpoints", prop.ForAll(
			func(pts []model.Point) bool {
				out := Stroke(pts)
				if len(out) < model.MinStrokePoints || len(out) > len(pts) {
					return false
				}
				first, last := pts[0], pts[len(pts)-1]
				return closeTo(out[0].X, first.X) && closeTo(out[0].Y, first.Y) &&
					closeTo(out[len(out)-1].X, last.X) && closeTo(out[len(out)-1].Y, last.Y)
			},
			strokeGen(points),
		))

		properties.Property(name+": every point carries the first input color", prop.ForAll(
			func(pts []model.Point) bool {
				for _, p := range Stroke(pts) {
					if p.Color != pts[0].Color {
						return false
					}
				}
				return true
			},
			strokeGen(points),
		))

		properties.Property(name+": simplifying twice changes nothing", prop.ForAll(
			func(pts []model.Point) bool {
				once := Stroke(pts)
				return reflect.DeepEqual(Stroke(once), once)
			},
			strokeGen(points),
		))
	}

	properties.Property("fewer than two points is the identity", prop.ForAll(
		func(pts []model.Point) bool {
			out := Stroke(pts)
			if len(out) != len(pts) {
				return false
			}
			for i := range pts {
				if out[i] != pts[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(1, pointGen()),
	))

	properties.TestingRun(t)
}
