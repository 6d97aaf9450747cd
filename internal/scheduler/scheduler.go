// Package scheduler provides the cooperative, single-consumer execution
// context the node runs in.
//
// Every handler and task runs on one goroutine, one at a time and to
// completion. Other goroutines only hand work to the loop through Post and
// Call. Register, Handle and the Plan methods must be called from the loop's
// own goroutine (or before Run starts).
package scheduler

import (
	"sort"
	"time"

	"github.com/sweeney/motion-detector/internal/logic"
)

// TaskID names a timer slot. A slot holds at most one pending firing.
type TaskID string

// Handler processes one event.
type Handler func(ev logic.Event)

// Scheduler is the tick source and timer service the node depends on.
type Scheduler interface {
	// Now returns the current tick.
	Now() logic.Tick

	// Register installs the function run when slot id fires.
	Register(id TaskID, fn func())

	// PlanFromNow fires id after d, replacing any pending firing.
	PlanFromNow(id TaskID, d time.Duration)

	// PlanAt fires id at tick at, replacing any pending firing.
	PlanAt(id TaskID, at logic.Tick)

	// Cancel drops the pending firing of id, if any.
	Cancel(id TaskID)

	// Planned returns the pending firing tick of id.
	Planned(id TaskID) (logic.Tick, bool)

	// Handle registers the handler for events from src.
	Handle(src logic.Source, h Handler)
}

type task struct {
	fn      func()
	due     logic.Tick
	planned bool
}

// table is the timer slot and handler bookkeeping shared by Loop and Manual.
type table struct {
	tasks    map[TaskID]*task
	handlers map[logic.Source]Handler
}

func newTable() table {
	return table{
		tasks:    make(map[TaskID]*task),
		handlers: make(map[logic.Source]Handler),
	}
}

func (t *table) register(id TaskID, fn func()) {
	if tk, ok := t.tasks[id]; ok {
		tk.fn = fn
		return
	}
	t.tasks[id] = &task{fn: fn}
}

func (t *table) planAt(id TaskID, at logic.Tick) {
	tk, ok := t.tasks[id]
	if !ok {
		tk = &task{}
		t.tasks[id] = tk
	}
	tk.due = at
	tk.planned = true
}

func (t *table) cancel(id TaskID) {
	if tk, ok := t.tasks[id]; ok {
		tk.planned = false
	}
}

func (t *table) planned(id TaskID) (logic.Tick, bool) {
	tk, ok := t.tasks[id]
	if !ok || !tk.planned {
		return 0, false
	}
	return tk.due, true
}

// nextDue returns the earliest pending firing.
func (t *table) nextDue() (logic.Tick, bool) {
	var (
		best  logic.Tick
		found bool
	)
	for _, tk := range t.tasks {
		if !tk.planned {
			continue
		}
		if !found || tk.due < best {
			best = tk.due
			found = true
		}
	}
	return best, found
}

// due returns the slots whose firing is at or before now, earliest first.
// Ties are broken by slot name so the order is deterministic.
func (t *table) due(now logic.Tick) []TaskID {
	var ids []TaskID
	for id, tk := range t.tasks {
		if tk.planned && tk.due <= now {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.tasks[ids[i]], t.tasks[ids[j]]
		if a.due != b.due {
			return a.due < b.due
		}
		return ids[i] < ids[j]
	})
	return ids
}

// fire runs id if it is still due at now. A task fired earlier in the same
// batch may have re-planned or cancelled it.
func (t *table) fire(id TaskID, now logic.Tick) {
	tk := t.tasks[id]
	if tk == nil || !tk.planned || tk.due > now {
		return
	}
	tk.planned = false
	if tk.fn != nil {
		tk.fn()
	}
}

func (t *table) dispatch(ev logic.Event) bool {
	h, ok := t.handlers[ev.Source()]
	if !ok {
		return false
	}
	h(ev)
	return true
}
