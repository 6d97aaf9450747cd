package scheduler

import (
	"time"

	"github.com/sweeney/motion-detector/internal/logic"
)

// Manual is a Scheduler driven by an explicit clock, for tests and replay.
// Events are dispatched synchronously and timers fire only during Advance.
type Manual struct {
	now   logic.Tick
	table table

	// Unhandled counts events posted with no registered handler.
	Unhandled int
}

// NewManual creates a Manual scheduler at tick zero.
func NewManual() *Manual {
	return &Manual{table: newTable()}
}

// Now implements Scheduler.
func (m *Manual) Now() logic.Tick { return m.now }

// Register implements Scheduler.
func (m *Manual) Register(id TaskID, fn func()) { m.table.register(id, fn) }

// PlanFromNow implements Scheduler.
func (m *Manual) PlanFromNow(id TaskID, d time.Duration) { m.table.planAt(id, m.now.Add(d)) }

// PlanAt implements Scheduler.
func (m *Manual) PlanAt(id TaskID, at logic.Tick) { m.table.planAt(id, at) }

// Cancel implements Scheduler.
func (m *Manual) Cancel(id TaskID) { m.table.cancel(id) }

// Planned implements Scheduler.
func (m *Manual) Planned(id TaskID) (logic.Tick, bool) { return m.table.planned(id) }

// Handle implements Scheduler.
func (m *Manual) Handle(src logic.Source, h Handler) { m.table.handlers[src] = h }

// Post dispatches ev immediately at the current tick.
func (m *Manual) Post(ev logic.Event) error {
	if !m.table.dispatch(ev) {
		m.Unhandled++
	}
	return nil
}

// Advance moves the clock forward by d, firing due slots in order. The clock
// is set to each slot's due tick before it runs.
func (m *Manual) Advance(d time.Duration) {
	m.AdvanceTo(m.now.Add(d))
}

// AdvanceTo moves the clock to t, firing due slots in order. Moving
// backwards is a no-op.
func (m *Manual) AdvanceTo(t logic.Tick) {
	for {
		due, ok := m.table.nextDue()
		if !ok || due > t {
			break
		}
		if due > m.now {
			m.now = due
		}
		for _, id := range m.table.due(m.now) {
			m.table.fire(id, m.now)
		}
	}
	if t > m.now {
		m.now = t
	}
}
