package node

import (
	"fmt"
	"time"

	"github.com/sweeney/motion-detector/internal/scheduler"
	"github.com/sweeney/motion-detector/internal/settings"
)

// propagations maps a field to the action run after its value was stored.
// Fields absent from the map are read on demand by their consumer.
var propagations = map[string]func(n *Node){
	settings.FieldPIRSensitivity:             (*Node).applySensitivity,
	settings.FieldPresenceInterval:           (*Node).applyPresenceInterval,
	settings.FieldTemperatureMeasureInterval: (*Node).applyTemperatureInterval,
	settings.FieldBatteryPublishInterval:     (*Node).applyBatteryInterval,
	settings.FieldMotionDetectorTimeout:      (*Node).applyRelayTimeout,
}

// Names returns the configuration field names in listing order.
func (n *Node) Names() []string {
	fs := settings.Fields()
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Get returns the command integer of a field.
func (n *Node) Get(name string) (int64, error) {
	f, ok := settings.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q", settings.ErrUnknownField, name)
	}
	return f.Get(&n.cfg), nil
}

// Format renders a field the way the command listing prints it.
func (n *Node) Format(name string) (string, error) {
	f, ok := settings.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", settings.ErrUnknownField, name)
	}
	return f.Format(&n.cfg), nil
}

// Set stores a field from its command integer and runs the field's
// propagation. Unknown names and invalid values leave every field unchanged.
// The change is not persisted until Persist.
func (n *Node) Set(name string, v int64) error {
	f, ok := settings.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", settings.ErrUnknownField, name)
	}
	if err := f.Set(&n.cfg, v); err != nil {
		return err
	}

	if apply, ok := propagations[name]; ok {
		apply(n)
	}
	n.log.Info("config set", "field", name, "value", f.Format(&n.cfg))
	n.changed()
	return nil
}

// Persist saves the live configuration.
func (n *Node) Persist() error {
	if err := n.store.Save(settings.SchemaVersion, n.cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	n.log.Info("config saved")
	return nil
}

// Reset restores the compiled-in defaults, writes them to the store and
// propagates every field.
func (n *Node) Reset() error {
	n.cfg = settings.Defaults()
	err := n.store.Reset(settings.SchemaVersion, n.cfg)
	n.applyAll()
	n.log.Info("config reset to defaults")
	n.changed()
	if err != nil {
		return fmt.Errorf("reset config: %w", err)
	}
	return nil
}

func (n *Node) applyAll() {
	n.applySensitivity()
	n.applyPresenceInterval()
	n.applyTemperatureInterval()
	n.applyBatteryInterval()
	n.applyRelayTimeout()
}

func (n *Node) applySensitivity() {
	if n.pir == nil {
		return
	}
	if err := n.pir.SetSensitivity(n.cfg.PIRSensitivity); err != nil {
		n.log.Warn("PIR sensitivity update failed", "error", err)
	}
}

func (n *Node) applyPresenceInterval() {
	if n.cfg.PresenceWindowInterval == 0 {
		n.sched.Cancel(TaskPresence)
		return
	}
	n.sched.PlanFromNow(TaskPresence, n.cfg.PresenceWindowInterval)
}

func (n *Node) applyTemperatureInterval() {
	if n.thermo == nil {
		return
	}
	n.planSampling(TaskTemperature, n.cfg.TemperatureMeasureInterval)
}

func (n *Node) applyBatteryInterval() {
	if n.battery == nil {
		return
	}
	n.planSampling(TaskBattery, n.cfg.BatteryPublishInterval)
}

func (n *Node) applyRelayTimeout() {
	if deadline, ok := n.relay.Retime(n.sched.Now(), n.cfg.MotionDetectorTimeout); ok {
		n.sched.PlanAt(TaskRelayTimeout, deadline)
	}
}

// planSampling re-arms a sampling slot. A zero interval stops sampling.
func (n *Node) planSampling(id scheduler.TaskID, interval time.Duration) {
	if interval == 0 {
		n.sched.Cancel(id)
		return
	}
	n.sched.PlanFromNow(id, interval)
}
