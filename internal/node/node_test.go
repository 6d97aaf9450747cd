package node

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/scheduler"
	"github.com/sweeney/motion-detector/internal/sensor"
	"github.com/sweeney/motion-detector/internal/settings"
	"github.com/sweeney/motion-detector/internal/store"
)

type publishedValue struct {
	Channel string
	Type    logic.ValueType
	Value   float64
	At      logic.Tick
}

type recordingSink struct {
	sched  scheduler.Scheduler
	values []publishedValue
	counts []uint32
	err    error
}

func (s *recordingSink) PublishValue(channel string, typ logic.ValueType, value float64) error {
	if s.err != nil {
		return s.err
	}
	s.values = append(s.values, publishedValue{channel, typ, value, s.sched.Now()})
	return nil
}

func (s *recordingSink) PublishEventCount(kind logic.CountKind, count uint32) error {
	if s.err != nil {
		return s.err
	}
	s.counts = append(s.counts, count)
	return nil
}

func (s *recordingSink) channel(name string) []publishedValue {
	var out []publishedValue
	for _, v := range s.values {
		if v.Channel == name {
			out = append(out, v)
		}
	}
	return out
}

type fakeRelay struct {
	writes []bool
}

func (r *fakeRelay) SetOutput(on bool) error {
	r.writes = append(r.writes, on)
	return nil
}

func (r *fakeRelay) on() bool {
	return len(r.writes) > 0 && r.writes[len(r.writes)-1]
}

type fakePIR struct {
	levels []settings.Sensitivity
}

func (p *fakePIR) SetSensitivity(s settings.Sensitivity) error {
	p.levels = append(p.levels, s)
	return nil
}

type harness struct {
	node    *Node
	sched   *scheduler.Manual
	sink    *recordingSink
	store   *store.Memory
	relay   *fakeRelay
	pir     *fakePIR
	metrics *Metrics
}

type harnessOption func(o *Options)

func withSensors(thermo, battery sensor.Reader) harnessOption {
	return func(o *Options) {
		o.Thermo = thermo
		o.Battery = battery
	}
}

func newHarness(t *testing.T, tune func(c *settings.Configuration), opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		sched:   scheduler.NewManual(),
		store:   store.NewMemory(),
		relay:   &fakeRelay{},
		pir:     &fakePIR{},
		metrics: NewMetrics(),
	}
	h.sink = &recordingSink{sched: h.sched}

	if tune != nil {
		cfg := settings.Defaults()
		tune(&cfg)
		require.NoError(t, h.store.Save(settings.SchemaVersion, cfg))
	}

	o := Options{
		Scheduler: h.sched,
		Sink:      h.sink,
		Store:     h.store,
		Relay:     h.relay,
		PIR:       h.pir,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   h.metrics,
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.node = New(o)
	h.node.Start()
	return h
}

func (h *harness) motion(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, h.sched.Post(logic.Motion{}))
	}
}

func TestScenarioA_PresenceHysteresis(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.EnterThreshold = 4
		c.LeaveThreshold = 2
		c.PresenceWindowInterval = 2 * time.Minute
	})

	for _, count := range []int{1, 4, 3, 2, 5, 2} {
		h.motion(t, count)
		h.sched.Advance(2 * time.Minute)
	}

	var states, counts []float64
	for _, v := range h.sink.channel(logic.ChannelPresenceState) {
		assert.Equal(t, logic.ValueInt, v.Type)
		states = append(states, v.Value)
	}
	for _, v := range h.sink.channel(logic.ChannelPresenceEvents) {
		counts = append(counts, v.Value)
	}
	assert.Equal(t, []float64{0, 1, 1, 0, 1, 0}, states)
	assert.Equal(t, []float64{1, 4, 3, 2, 5, 2}, counts)
}

func TestPresenceWindowPeriodicity(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PresenceWindowInterval = 30 * time.Second
	})

	h.sched.Advance(2 * time.Minute)

	windows := h.sink.channel(logic.ChannelPresenceState)
	require.Len(t, windows, 4)
	for i, w := range windows {
		assert.Equal(t, logic.Ticks(time.Duration(i+1)*30*time.Second), w.At)
	}
}

func TestPresenceDisabled(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PresenceWindowInterval = 0
	})

	_, planned := h.sched.Planned(TaskPresence)
	assert.False(t, planned)

	h.motion(t, 10)
	h.sched.Advance(time.Hour)

	assert.Empty(t, h.sink.channel(logic.ChannelPresenceState))
	assert.Equal(t, 10, h.node.Status().PendingCount)
}

func TestPresenceIntervalReconfigure(t *testing.T) {
	h := newHarness(t, nil)

	h.sched.Advance(time.Minute)
	require.NoError(t, h.node.Set(settings.FieldPresenceInterval, 30))

	at, planned := h.sched.Planned(TaskPresence)
	require.True(t, planned)
	assert.Equal(t, logic.Ticks(90*time.Second), at)

	h.sched.Advance(30 * time.Second)
	assert.Len(t, h.sink.channel(logic.ChannelPresenceState), 1)

	require.NoError(t, h.node.Set(settings.FieldPresenceInterval, 0))
	_, planned = h.sched.Planned(TaskPresence)
	assert.False(t, planned)

	h.sched.Advance(time.Hour)
	assert.Len(t, h.sink.channel(logic.ChannelPresenceState), 1)
}

func TestScenarioB_RelayExtendsOnRetrigger(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.MotionDetectorTimeout = 600 * time.Second
		c.PresenceWindowInterval = 0
	})

	h.motion(t, 1)
	at, planned := h.sched.Planned(TaskRelayTimeout)
	require.True(t, planned)
	assert.Equal(t, logic.Tick(600000), at)
	assert.True(t, h.relay.on())

	h.sched.AdvanceTo(500000)
	h.motion(t, 1)
	at, _ = h.sched.Planned(TaskRelayTimeout)
	assert.Equal(t, logic.Tick(1100000), at)

	h.sched.AdvanceTo(600000)
	assert.True(t, h.relay.on())
	assert.True(t, h.node.Status().Relay)

	h.sched.AdvanceTo(1099999)
	assert.True(t, h.relay.on())

	h.sched.AdvanceTo(1100000)
	assert.False(t, h.relay.on())
	assert.False(t, h.node.Status().Relay)
	assert.Equal(t, []bool{true, true, false}, h.relay.writes)
}

func TestMotionTimeoutRetime(t *testing.T) {
	t.Run("armed", func(t *testing.T) {
		h := newHarness(t, nil)

		h.motion(t, 1)
		h.sched.Advance(100 * time.Second)
		require.NoError(t, h.node.Set(settings.FieldMotionDetectorTimeout, 60))

		at, planned := h.sched.Planned(TaskRelayTimeout)
		require.True(t, planned)
		assert.Equal(t, logic.Ticks(160*time.Second), at)
	})

	t.Run("idle", func(t *testing.T) {
		h := newHarness(t, nil)

		require.NoError(t, h.node.Set(settings.FieldMotionDetectorTimeout, 60))

		_, planned := h.sched.Planned(TaskRelayTimeout)
		assert.False(t, planned)
		assert.Empty(t, h.relay.writes)
	})
}

// Turning the relay feature off leaves an active output running until its
// pending deadline.
func TestRelayDisableKeepsActiveOutput(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.MotionDetectorTimeout = time.Minute
	})

	h.motion(t, 1)
	require.NoError(t, h.node.Set(settings.FieldMotionRelayEnabled, 0))
	assert.True(t, h.relay.on())

	h.sched.Advance(30 * time.Second)
	h.motion(t, 1)
	at, planned := h.sched.Planned(TaskRelayTimeout)
	require.True(t, planned)
	assert.Equal(t, logic.Ticks(time.Minute), at, "motion must not re-arm a disabled relay")

	h.sched.Advance(30 * time.Second)
	assert.False(t, h.relay.on())
}

func TestRelayDisabledNeverArms(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.MotionRelayEnabled = false
	})

	h.motion(t, 5)

	assert.Empty(t, h.relay.writes)
	_, planned := h.sched.Planned(TaskRelayTimeout)
	assert.False(t, planned)
}

func TestScenarioC_TemperatureThrottle(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.TemperaturePublishInterval = 900 * time.Second
		c.TemperaturePublishValueChange = 0.2
		c.PresenceWindowInterval = 0
	})

	h.node.HandleTemperature(21.0, nil)
	h.sched.AdvanceTo(10000)
	h.node.HandleTemperature(21.1, nil)
	h.sched.AdvanceTo(20000)
	h.node.HandleTemperature(21.3, nil)
	h.sched.AdvanceTo(919999)
	h.node.HandleTemperature(21.35, nil)
	h.sched.AdvanceTo(920000)
	h.node.HandleTemperature(21.35, nil)

	got := h.sink.channel(logic.ChannelTemperature)
	require.Len(t, got, 3)
	assert.Equal(t, logic.Tick(0), got[0].At)
	assert.Equal(t, 21.0, got[0].Value)
	assert.Equal(t, logic.Tick(20000), got[1].At)
	assert.Equal(t, 21.3, got[1].Value)
	assert.Equal(t, logic.Tick(920000), got[2].At)
	assert.Equal(t, logic.ValueFloat, got[2].Type)
}

func TestSensorFailureSkipsPublish(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.sched.Post(logic.Temperature{Err: sensor.ErrNoValue}))
	require.NoError(t, h.sched.Post(logic.Battery{Err: sensor.ErrNoValue}))

	assert.Empty(t, h.sink.values)
	st := h.node.Status()
	assert.False(t, st.TemperatureValid)
	assert.False(t, st.BatteryValid)

	var buf bytes.Buffer
	h.metrics.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `sensor_errors_total{sensor="temperature"} 1`)
	assert.Contains(t, buf.String(), `sensor_errors_total{sensor="battery"} 1`)
}

func TestSamplingTasks(t *testing.T) {
	thermo := sensor.NewFakeReader(20.0, 20.1, 23.0)
	battery := sensor.NewFakeReader(3.01, 3.0)
	h := newHarness(t, func(c *settings.Configuration) {
		c.TemperatureMeasureInterval = 5 * time.Second
		c.BatteryPublishInterval = time.Minute
		c.PresenceWindowInterval = 0
	}, withSensors(thermo, battery))

	h.sched.Advance(15 * time.Second)
	assert.Equal(t, 3, thermo.Reads)
	temps := h.sink.channel(logic.ChannelTemperature)
	require.Len(t, temps, 2)
	assert.Equal(t, 20.0, temps[0].Value)
	assert.Equal(t, 23.0, temps[1].Value)

	h.sched.Advance(45 * time.Second)
	volts := h.sink.channel(logic.ChannelBattery)
	require.Len(t, volts, 1)
	assert.Equal(t, 3.01, volts[0].Value)

	h.sched.Advance(time.Minute)
	assert.Len(t, h.sink.channel(logic.ChannelBattery), 2, "battery publishes every sample")

	require.NoError(t, h.node.Set(settings.FieldTemperatureMeasureInterval, 0))
	reads := thermo.Reads
	h.sched.Advance(time.Hour)
	assert.Equal(t, reads, thermo.Reads)

	require.NoError(t, h.node.Set(settings.FieldTemperatureMeasureInterval, 10))
	at, planned := h.sched.Planned(TaskTemperature)
	require.True(t, planned)
	assert.Equal(t, h.sched.Now().Add(10*time.Second), at)
}

func TestPIRCountRateLimited(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PIRPublishMinInterval = time.Minute
	})

	h.motion(t, 1)
	h.sched.Advance(10 * time.Second)
	h.motion(t, 1)
	h.sched.AdvanceTo(logic.Ticks(time.Minute))
	h.motion(t, 1)

	assert.Equal(t, []uint32{1, 3}, h.sink.counts)
	assert.Equal(t, uint16(3), h.node.Status().PIREventCount)
}

func TestPIRCountPublishDisabled(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PIRPublishMinInterval = 0
	})

	h.motion(t, 3)
	h.sched.Advance(time.Hour)
	h.motion(t, 1)

	assert.Empty(t, h.sink.counts)
}

func TestPIREventCountWraps(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PIRPublishMinInterval = 0
	})
	h.node.pirEventCount = 65535

	h.motion(t, 1)

	assert.Equal(t, uint16(0), h.node.Status().PIREventCount)
}

func TestScenarioD_UnknownFieldLeavesConfig(t *testing.T) {
	h := newHarness(t, nil)
	before := h.node.Config()
	plannedBefore, _ := h.sched.Planned(TaskPresence)

	err := h.node.Set("Presence Window", 30)
	require.ErrorIs(t, err, settings.ErrUnknownField)

	assert.Equal(t, before, h.node.Config())
	plannedAfter, _ := h.sched.Planned(TaskPresence)
	assert.Equal(t, plannedBefore, plannedAfter)

	_, err = h.node.Get("presence interval")
	assert.ErrorIs(t, err, settings.ErrUnknownField)
	_, err = h.node.Format("")
	assert.ErrorIs(t, err, settings.ErrUnknownField)
}

func TestSetInvalidValue(t *testing.T) {
	h := newHarness(t, nil)
	before := h.node.Config()

	err := h.node.Set(settings.FieldPIRSensitivity, 7)
	require.ErrorIs(t, err, settings.ErrInvalidValue)

	assert.Equal(t, before, h.node.Config())
	assert.Len(t, h.pir.levels, 1, "only the start-up propagation")
}

func TestGetAndFormat(t *testing.T) {
	h := newHarness(t, nil)

	v, err := h.node.Get(settings.FieldPresenceInterval)
	require.NoError(t, err)
	assert.Equal(t, int64(120), v)

	require.NoError(t, h.node.Set(settings.FieldTemperaturePublishValueChange, 5))
	s, err := h.node.Format(settings.FieldTemperaturePublishValueChange)
	require.NoError(t, err)
	assert.Equal(t, "0.5", s)

	names := h.node.Names()
	require.Len(t, names, len(settings.Fields()))
	assert.Equal(t, settings.FieldPIRSensitivity, names[0])
}

func TestSensitivityPropagation(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, []settings.Sensitivity{settings.SensitivityMedium}, h.pir.levels)

	require.NoError(t, h.node.Set(settings.FieldPIRSensitivity, 3))

	assert.Equal(t, settings.SensitivityVeryHigh, h.pir.levels[len(h.pir.levels)-1])
	assert.Equal(t, 0, h.store.Saves, "set does not persist")
}

func TestPersistAndReset(t *testing.T) {
	h := newHarness(t, nil)
	savesAtStart := h.store.Saves

	require.NoError(t, h.node.Set(settings.FieldPresenceEnterThreshold, 9))
	require.NoError(t, h.node.Persist())
	require.NotNil(t, h.store.Record)
	assert.Equal(t, 9, h.store.Record.EnterThreshold)
	assert.Equal(t, savesAtStart+1, h.store.Saves)

	require.NoError(t, h.node.Set(settings.FieldPresenceInterval, 10))
	h.sched.Advance(5 * time.Second)
	require.NoError(t, h.node.Reset())

	assert.Equal(t, settings.Defaults(), h.node.Config())
	assert.Equal(t, 1, h.store.Resets)
	assert.Equal(t, settings.Defaults(), *h.store.Record)

	at, planned := h.sched.Planned(TaskPresence)
	require.True(t, planned)
	assert.Equal(t, h.sched.Now().Add(2*time.Minute), at)
}

func TestPersistError(t *testing.T) {
	h := newHarness(t, nil)
	h.store.SaveError = errors.New("flash busy")

	err := h.node.Persist()
	require.Error(t, err)
	assert.ErrorIs(t, err, h.store.SaveError)

	err = h.node.Reset()
	require.Error(t, err)
	assert.Equal(t, settings.Defaults(), h.node.Config(), "defaults are live even when the store fails")
}

func TestStartLoadsStoredConfig(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PresenceWindowInterval = 45 * time.Second
	})

	at, planned := h.sched.Planned(TaskPresence)
	require.True(t, planned)
	assert.Equal(t, logic.Ticks(45*time.Second), at)
}

func TestStartFallsBackToDefaults(t *testing.T) {
	st := store.NewMemory()
	st.LoadError = errors.New("corrupt record")
	sched := scheduler.NewManual()

	n := New(Options{
		Scheduler: sched,
		Sink:      &recordingSink{sched: sched},
		Store:     st,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	n.Start()

	assert.Equal(t, settings.Defaults(), n.Config())
}

func TestButtonHoldCyclesSensitivity(t *testing.T) {
	h := newHarness(t, func(c *settings.Configuration) {
		c.PIRSensitivity = settings.SensitivityVeryHigh
	})
	saves := h.store.Saves

	require.NoError(t, h.sched.Post(logic.Button{Kind: logic.ButtonHold}))

	assert.Equal(t, settings.SensitivityLow, h.node.Config().PIRSensitivity)
	assert.Equal(t, settings.SensitivityLow, h.pir.levels[len(h.pir.levels)-1])
	assert.Equal(t, saves+1, h.store.Saves)

	require.NoError(t, h.sched.Post(logic.Button{Kind: logic.ButtonClick}))
	assert.Equal(t, settings.SensitivityLow, h.node.Config().PIRSensitivity)
}

func TestPublishFailureIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.sink.err = errors.New("broker unreachable")

	h.motion(t, 1)
	h.sched.Advance(2 * time.Minute)

	assert.True(t, h.relay.on(), "handler continues after a failed publish")

	var buf bytes.Buffer
	h.metrics.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), "publish_errors_total 3")
	assert.Contains(t, buf.String(), "motion_events_total 1")
}

func TestOnChangeReceivesStatus(t *testing.T) {
	sched := scheduler.NewManual()
	var last Status
	calls := 0

	n := New(Options{
		Scheduler: sched,
		Sink:      &recordingSink{sched: sched},
		Store:     store.NewMemory(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnChange: func(st Status) {
			last = st
			calls++
		},
	})
	n.Start()
	require.Equal(t, 1, calls)

	require.NoError(t, sched.Post(logic.Motion{}))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, last.PendingCount)
	assert.True(t, last.Relay)
	assert.Equal(t, logic.Ticks(10*time.Minute), last.RelayDeadline)

	n.HandleTemperature(19.5, nil)
	assert.True(t, last.TemperatureValid)
	assert.Equal(t, 19.5, last.Temperature)
}

func TestMultiSink(t *testing.T) {
	sched := scheduler.NewManual()
	good := &recordingSink{sched: sched}
	bad := &recordingSink{sched: sched, err: errors.New("down")}
	other := &recordingSink{sched: sched}

	m := MultiSink{good, bad, other}

	err := m.PublishValue(logic.ChannelBattery, logic.ValueFloat, 3.0)
	require.ErrorIs(t, err, bad.err)
	assert.Len(t, good.values, 1)
	assert.Len(t, other.values, 1)

	require.ErrorIs(t, m.PublishEventCount(logic.CountPIRMotion, 4), bad.err)
	assert.Equal(t, []uint32{4}, other.counts)

	assert.NoError(t, MultiSink{good}.PublishEventCount(logic.CountPIRMotion, 5))
}
