// Package metrics renders hub counters in the Prometheus text exposition
// format.
package metrics

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/shared-sketch/backend/internal/hub"
)

const namespace = "sketch_"

// ContentType is the Content-Type of the exposition WriteText produces.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Families converts hub stats and the journal drop count into metric families.
func Families(s hub.Stats, journalDropped uint64) []*dto.MetricFamily {
	return []*dto.MetricFamily{
		gauge("clients", "Registered drawing clients.", float64(s.Clients)),
		gauge("history_strokes", "Strokes in the canvas history.", float64(s.Strokes)),
		gauge("history_points", "Points across all strokes in the canvas history.", float64(s.Points)),
		counter("hub_requests_total", "Requests processed by the hub.", float64(s.Requests)),
		counter("notifications_delivered_total", "Notifications queued to clients.", float64(s.Delivered)),
		counter("clients_pruned_total", "Clients dropped during a broadcast.", float64(s.Pruned)),
		counter("clears_total", "Canvas clears.", float64(s.Clears)),
		counter("journal_dropped_total", "Journal entries dropped because the queue was full.", float64(journalDropped)),
	}
}

// WriteText writes families in the text exposition format.
func WriteText(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}},
	}
}
