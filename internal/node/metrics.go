package node

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"

	"github.com/sweeney/motion-detector/internal/logic"
)

// Metrics holds the node's counters in a private set so several nodes can
// coexist in one process.
type Metrics struct {
	set *metrics.Set

	motionEvents     *metrics.Counter
	presenceWindows  *metrics.Counter
	relayActivations *metrics.Counter
	publishErrors    *metrics.Counter
	relayOnSeconds   *metrics.Summary
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	s := metrics.NewSet()
	return &Metrics{
		set:              s,
		motionEvents:     s.NewCounter("motion_events_total"),
		presenceWindows:  s.NewCounter("presence_windows_total"),
		relayActivations: s.NewCounter("relay_activations_total"),
		publishErrors:    s.NewCounter("publish_errors_total"),
		relayOnSeconds:   s.NewSummary("relay_on_seconds"),
	}
}

// WritePrometheus writes all metrics in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

func (m *Metrics) motion()        { m.motionEvents.Inc() }
func (m *Metrics) window()        { m.presenceWindows.Inc() }
func (m *Metrics) relayArmed()    { m.relayActivations.Inc() }
func (m *Metrics) publishFailed() { m.publishErrors.Inc() }

func (m *Metrics) relayReleased(held time.Duration) {
	m.relayOnSeconds.Update(held.Seconds())
}

func (m *Metrics) published(channel string) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`publish_total{channel=%q}`, channel)).Inc()
}

func (m *Metrics) sensorFailed(src logic.Source) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`sensor_errors_total{sensor=%q}`, src)).Inc()
}
