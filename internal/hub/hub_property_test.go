package hub

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shared-sketch/backend/internal/model"
)

// op is either a clear (0) or a stroke tagged with its value.
func opsGen() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 9))
}

func opMessage(op, seq int) Message {
	if op == 0 {
		return Clear{}
	}
	return NewLine{Stroke: model.Stroke{
		{X: float32(seq), Y: float32(op), Color: 0x29adff},
		{X: float32(seq), Y: float32(op + 10), Color: 0x29adff},
	}}
}

// describe reduces a notification to a comparable label.
func describe(msg Message) float32 {
	if nl, ok := msg.(NewLine); ok {
		return nl.Stroke[0].X
	}
	return -1
}

func collect(out <-chan Message, n int) []float32 {
	got := make([]float32, 0, n)
	timeout := time.After(5 * time.Second)
	for len(got) < n {
		select {
		case msg, ok := <-out:
			if !ok {
				return got
			}
			got = append(got, describe(msg))
		case <-timeout:
			return got
		}
	}
	return got
}

func TestHubOrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("clients connected throughout observe identical order", prop.ForAll(
		func(ops []int) bool {
			h := New(Config{})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go h.Run(ctx)

			outs := make([]chan Message, 2)
			for i := range outs {
				outs[i] = make(chan Message, len(ops)+1)
				if err := h.Submit(ctx, NewClient{ID: h.NewClientID("peer"), Out: outs[i], Gone: make(chan struct{})}); err != nil {
					return false
				}
			}

			// Two producers race; the hub picks the order.
			var wg sync.WaitGroup
			for p := 0; p < 2; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for i := p; i < len(ops); i += 2 {
						h.Submit(ctx, opMessage(ops[i], i))
					}
				}(p)
			}
			wg.Wait()

			a := collect(outs[0], len(ops))
			b := collect(outs[1], len(ops))
			return len(a) == len(ops) && reflect.DeepEqual(a, b)
		},
		opsGen(),
	))

	properties.Property("a late client only sees strokes committed after the last clear", prop.ForAll(
		func(ops []int) bool {
			h := New(Config{})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go h.Run(ctx)

			var want []float32
			for i, op := range ops {
				if err := h.Submit(ctx, opMessage(op, i)); err != nil {
					return false
				}
				if op == 0 {
					want = want[:0]
				} else {
					want = append(want, float32(i))
				}
			}

			out := make(chan Message, len(ops)+1)
			if err := h.Submit(ctx, NewClient{ID: h.NewClientID("late"), Out: out, Gone: make(chan struct{})}); err != nil {
				return false
			}
			if _, err := h.Stats(ctx); err != nil {
				return false
			}

			got := collect(out, len(want))
			return len(got) == len(want) && len(out) == 0 && (len(want) == 0 || reflect.DeepEqual(got, want))
		},
		opsGen(),
	))

	properties.TestingRun(t)
}
