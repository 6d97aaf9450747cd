package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sweeney/motion-detector/internal/logic"
)

// ErrQueueFull is returned by Post when the event queue has no room.
var ErrQueueFull = errors.New("scheduler: event queue full")

// DefaultQueueSize is the event queue capacity used by NewLoop.
const DefaultQueueSize = 64

type call struct {
	fn   func()
	done chan struct{}
}

// Loop is the real-time scheduler: a single goroutine draining an event
// queue and firing timer slots against the monotonic clock.
type Loop struct {
	start  time.Time
	since  func(time.Time) time.Duration
	events chan logic.Event
	calls  chan call
	table  table
	logger *slog.Logger
}

// NewLoop creates a loop whose tick zero is the moment of creation.
func NewLoop(logger *slog.Logger, queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		start:  time.Now(),
		since:  time.Since,
		events: make(chan logic.Event, queueSize),
		calls:  make(chan call), // unbuffered: a received call runs at once
		table:  newTable(),
		logger: logger.With("component", "scheduler"),
	}
}

// Now returns the ticks elapsed since the loop was created.
func (l *Loop) Now() logic.Tick {
	return logic.Ticks(l.since(l.start))
}

// Register implements Scheduler.
func (l *Loop) Register(id TaskID, fn func()) { l.table.register(id, fn) }

// PlanFromNow implements Scheduler.
func (l *Loop) PlanFromNow(id TaskID, d time.Duration) { l.table.planAt(id, l.Now().Add(d)) }

// PlanAt implements Scheduler.
func (l *Loop) PlanAt(id TaskID, at logic.Tick) { l.table.planAt(id, at) }

// Cancel implements Scheduler.
func (l *Loop) Cancel(id TaskID) { l.table.cancel(id) }

// Planned implements Scheduler.
func (l *Loop) Planned(id TaskID) (logic.Tick, bool) { return l.table.planned(id) }

// Handle implements Scheduler.
func (l *Loop) Handle(src logic.Source, h Handler) { l.table.handlers[src] = h }

// Post enqueues an event without blocking. Safe for concurrent use; intended
// for driver callbacks. A full queue drops the event.
func (l *Loop) Post(ev logic.Event) error {
	select {
	case l.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Call runs fn on the loop goroutine and waits for it to finish.
// ctx bounds only the hand-over: once the loop has taken fn it runs to
// completion and Call returns nil, so an error always means fn did not run.
// Safe for concurrent use. Must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	c := call{fn: fn, done: make(chan struct{})}
	select {
	case l.calls <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-c.done
	return nil
}

// Run drains events, calls and due timers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if due, ok := l.table.nextDue(); ok {
			wait := (due - l.Now()).Duration()
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev := <-l.events:
			if !l.table.dispatch(ev) {
				l.logger.Warn("no handler for event", "source", ev.Source())
			}

		case c := <-l.calls:
			c.fn()
			close(c.done)

		case <-timerC:
			now := l.Now()
			for _, id := range l.table.due(now) {
				l.table.fire(id, now)
			}
		}

		if timer != nil {
			timer.Stop()
		}
	}
}
