// Package node wires the presence, throttling and relay logic to the
// scheduler, the publish sink and the hardware.
//
// A Node owns all mutable application state. Every method must be called from
// the scheduler's goroutine; the node takes no locks.
package node

import (
	"log/slog"

	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/scheduler"
	"github.com/sweeney/motion-detector/internal/sensor"
	"github.com/sweeney/motion-detector/internal/settings"
	"github.com/sweeney/motion-detector/internal/store"
)

// Timer slots used by the node.
const (
	TaskPresence     scheduler.TaskID = "presence"
	TaskRelayTimeout scheduler.TaskID = "relay-timeout"
	TaskTemperature  scheduler.TaskID = "temperature"
	TaskBattery      scheduler.TaskID = "battery"
)

// Sink publishes values. Delivery is best effort; errors are logged and dropped.
type Sink interface {
	PublishValue(channel string, typ logic.ValueType, value float64) error
	PublishEventCount(kind logic.CountKind, count uint32) error
}

// Actuator drives the relay output.
type Actuator interface {
	SetOutput(on bool) error
}

// PIRDriver accepts sensitivity changes.
type PIRDriver interface {
	SetSensitivity(s settings.Sensitivity) error
}

// Options configures a Node. Scheduler, Sink and Store are required.
type Options struct {
	Scheduler scheduler.Scheduler
	Sink      Sink
	Store     store.Store
	Relay     Actuator        // optional
	PIR       PIRDriver       // optional
	Thermo    sensor.Reader   // optional; no sampling task when nil
	Battery   sensor.Reader   // optional; no sampling task when nil
	Logger    *slog.Logger    // optional
	Metrics   *Metrics        // optional
	OnChange  func(st Status) // optional; called after every handler
}

// Node is the application state of the motion detector.
type Node struct {
	cfg settings.Configuration

	sched   scheduler.Scheduler
	sink    Sink
	store   store.Store
	relayIO Actuator
	pir     PIRDriver
	thermo  sensor.Reader
	battery sensor.Reader
	log     *slog.Logger
	metrics *Metrics
	notify  func(st Status)

	temperatureLimiter logic.RateLimiter
	pirLimiter         logic.RateLimiter
	presence           *logic.Presence
	relay              logic.Relay

	pirEventCount uint16
	lastWindow    logic.Window
	relayOnAt     logic.Tick
	temperature   *float64
	voltage       *float64
}

// New creates a node holding the compiled-in defaults. Call Start to load the
// stored configuration and arm the timers.
func New(opts Options) *Node {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics()
	}
	return &Node{
		cfg:      settings.Defaults(),
		sched:    opts.Scheduler,
		sink:     opts.Sink,
		store:    opts.Store,
		relayIO:  opts.Relay,
		pir:      opts.PIR,
		thermo:   opts.Thermo,
		battery:  opts.Battery,
		log:      logger.With("component", "node"),
		metrics:  m,
		notify:   opts.OnChange,
		presence: logic.NewPresence(),

		lastWindow: logic.Window{State: logic.PresenceInactive},
	}
}

// Start loads the configuration, registers handlers and timer slots and
// propagates every setting to its consumer.
func (n *Node) Start() {
	cfg, err := n.store.Load(settings.SchemaVersion, settings.Defaults())
	if err != nil {
		n.log.Warn("config load failed, using defaults", "error", err)
	}
	n.cfg = cfg

	n.sched.Handle(logic.SourcePIR, func(logic.Event) { n.HandleMotion() })
	n.sched.Handle(logic.SourceTemperature, func(ev logic.Event) {
		t := ev.(logic.Temperature)
		n.HandleTemperature(t.Celsius, t.Err)
	})
	n.sched.Handle(logic.SourceBattery, func(ev logic.Event) {
		b := ev.(logic.Battery)
		n.HandleBattery(b.Voltage, b.Err)
	})
	n.sched.Handle(logic.SourceButton, func(ev logic.Event) {
		n.HandleButton(ev.(logic.Button).Kind)
	})

	n.sched.Register(TaskPresence, n.presenceTask)
	n.sched.Register(TaskRelayTimeout, n.relayTimeoutTask)
	n.sched.Register(TaskTemperature, n.temperatureTask)
	n.sched.Register(TaskBattery, n.batteryTask)

	n.applyAll()

	n.log.Info("node started",
		"presence_interval", n.cfg.PresenceWindowInterval,
		"enter_threshold", n.cfg.EnterThreshold,
		"leave_threshold", n.cfg.LeaveThreshold,
		"relay_enabled", n.cfg.MotionRelayEnabled)
	n.changed()
}

// Config returns a copy of the live configuration.
func (n *Node) Config() settings.Configuration {
	return n.cfg
}

func (n *Node) changed() {
	if n.notify != nil {
		n.notify(n.Status())
	}
}

func (n *Node) publishValue(channel string, typ logic.ValueType, v float64) {
	n.metrics.published(channel)
	if err := n.sink.PublishValue(channel, typ, v); err != nil {
		n.metrics.publishFailed()
		n.log.Warn("publish failed", "channel", channel, "error", err)
	}
}

func (n *Node) publishCount(kind logic.CountKind, count uint32) {
	n.metrics.published(string(kind))
	if err := n.sink.PublishEventCount(kind, count); err != nil {
		n.metrics.publishFailed()
		n.log.Warn("publish failed", "channel", kind, "error", err)
	}
}
