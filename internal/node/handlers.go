package node

import (
	"github.com/sweeney/motion-detector/internal/logic"
)

// HandleMotion processes one raw PIR pulse: it feeds the presence window,
// publishes the lifetime event count when the interval gate allows, and arms
// the relay.
func (n *Node) HandleMotion() {
	n.pirEventCount++
	n.presence.Motion()
	n.metrics.motion()

	n.log.Debug("PIR event", "count", n.pirEventCount)

	now := n.sched.Now()
	if n.pirLimiter.OfferCount(float64(n.pirEventCount), now, n.cfg.PIRPublishMinInterval) {
		n.publishCount(logic.CountPIRMotion, uint32(n.pirEventCount))
		n.log.Info("PIR event published", "count", n.pirEventCount)
	}

	if n.cfg.MotionRelayEnabled {
		n.armRelay()
	}

	n.changed()
}

// HandleTemperature processes a thermometer sample. A failed read skips the
// cycle.
func (n *Node) HandleTemperature(celsius float64, err error) {
	if err != nil {
		n.metrics.sensorFailed(logic.SourceTemperature)
		n.log.Debug("temperature read failed", "error", err)
		return
	}
	n.temperature = &celsius

	if n.temperatureLimiter.Offer(celsius, n.sched.Now(), n.cfg.TemperaturePublishInterval, n.cfg.TemperaturePublishValueChange) {
		n.publishValue(logic.ChannelTemperature, logic.ValueFloat, celsius)
	}
	n.changed()
}

// HandleBattery publishes every valid battery sample; the sampling interval
// is the publish interval.
func (n *Node) HandleBattery(voltage float64, err error) {
	if err != nil {
		n.metrics.sensorFailed(logic.SourceBattery)
		n.log.Debug("battery read failed", "error", err)
		return
	}
	n.voltage = &voltage
	n.publishValue(logic.ChannelBattery, logic.ValueFloat, voltage)
	n.changed()
}

// HandleButton handles the local control input. A hold cycles the PIR
// sensitivity and saves the configuration.
func (n *Node) HandleButton(kind logic.ButtonKind) {
	switch kind {
	case logic.ButtonClick:
		n.log.Info("button click")

	case logic.ButtonHold:
		n.cfg.PIRSensitivity = n.cfg.PIRSensitivity.Next()
		n.applySensitivity()
		if err := n.Persist(); err != nil {
			n.log.Warn("config save failed", "error", err)
		}
		n.log.Info("PIR sensitivity changed", "sensitivity", n.cfg.PIRSensitivity)
		n.changed()
	}
}

func (n *Node) armRelay() {
	if !n.relay.On() {
		n.relayOnAt = n.sched.Now()
		n.metrics.relayArmed()
	}
	deadline := n.relay.Trigger(n.sched.Now(), n.cfg.MotionDetectorTimeout)
	n.setRelayOutput(true)
	n.sched.PlanAt(TaskRelayTimeout, deadline)
	n.log.Debug("relay on", "deadline", deadline)
}

func (n *Node) setRelayOutput(on bool) {
	if n.relayIO == nil {
		return
	}
	if err := n.relayIO.SetOutput(on); err != nil {
		n.log.Warn("relay output failed", "on", on, "error", err)
	}
}

func (n *Node) relayTimeoutTask() {
	if n.relay.Expire() {
		n.setRelayOutput(false)
		n.metrics.relayReleased((n.sched.Now() - n.relayOnAt).Duration())
		n.log.Debug("relay off")
		n.changed()
	}
}

func (n *Node) presenceTask() {
	interval := n.cfg.PresenceWindowInterval
	if interval == 0 {
		return
	}

	w := n.presence.Evaluate(n.cfg.EnterThreshold, n.cfg.LeaveThreshold)
	n.lastWindow = w
	n.metrics.window()

	n.publishValue(logic.ChannelPresenceState, logic.ValueInt, float64(w.State.Int()))
	n.publishValue(logic.ChannelPresenceEvents, logic.ValueInt, float64(w.Count))

	if w.Changed {
		n.log.Info("presence changed", "state", w.State, "count", w.Count)
	} else {
		n.log.Debug("presence", "state", w.State, "count", w.Count)
	}

	n.sched.PlanFromNow(TaskPresence, interval)
	n.changed()
}

func (n *Node) temperatureTask() {
	if n.thermo == nil {
		return
	}
	v, err := n.thermo.Read()
	n.HandleTemperature(v, err)
	n.planSampling(TaskTemperature, n.cfg.TemperatureMeasureInterval)
}

func (n *Node) batteryTask() {
	if n.battery == nil {
		return
	}
	v, err := n.battery.Read()
	n.HandleBattery(v, err)
	n.planSampling(TaskBattery, n.cfg.BatteryPublishInterval)
}
