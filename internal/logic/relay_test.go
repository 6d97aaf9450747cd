package logic

import (
	"testing"
	"time"
)

func TestRelayIdle(t *testing.T) {
	var r Relay
	if r.On() {
		t.Error("relay should be off initially")
	}
	if _, ok := r.Deadline(); ok {
		t.Error("idle relay should have no deadline")
	}
	if r.Expire() {
		t.Error("expiring an idle relay should report false")
	}
}

func TestRelayScenarioB(t *testing.T) {
	var r Relay
	timeout := 600000 * time.Millisecond

	if d := r.Trigger(0, timeout); d != 600000 {
		t.Errorf("expected deadline 600000, got %d", d)
	}
	if d := r.Trigger(500000, timeout); d != 1100000 {
		t.Errorf("expected deadline 1100000 after retrigger, got %d", d)
	}
	if !r.On() {
		t.Error("relay should be on while armed")
	}

	d, ok := r.Deadline()
	if !ok || d != 1100000 {
		t.Errorf("Deadline: got (%d, %v), want (1100000, true)", d, ok)
	}

	if !r.Expire() {
		t.Error("expire should turn the relay off")
	}
	if r.On() {
		t.Error("relay should be off after expiry")
	}
}

func TestRelayRetriggerNeverShortens(t *testing.T) {
	var r Relay
	timeout := 10 * time.Second

	for _, now := range []Tick{0, 1, 2500, 9999, 10000, 40000} {
		d := r.Trigger(now, timeout)
		if d != now+Ticks(timeout) {
			t.Errorf("trigger at %d: deadline %d, want %d", now, d, now+Ticks(timeout))
		}
	}
}

func TestRelayRetime(t *testing.T) {
	var r Relay

	if _, ok := r.Retime(100, time.Second); ok {
		t.Error("retime while idle must not arm the relay")
	}
	if r.On() {
		t.Error("retime while idle must leave relay off")
	}

	r.Trigger(0, time.Minute)
	d, ok := r.Retime(1000, 5*time.Second)
	if !ok {
		t.Fatal("retime while on should succeed")
	}
	if d != 6000 {
		t.Errorf("expected deadline 6000, got %d", d)
	}
}

func TestTickConversions(t *testing.T) {
	if Ticks(1500*time.Millisecond) != 1500 {
		t.Errorf("Ticks(1.5s) = %d", Ticks(1500*time.Millisecond))
	}
	if Tick(2000).Duration() != 2*time.Second {
		t.Errorf("Tick(2000).Duration() = %v", Tick(2000).Duration())
	}
	if Tick(100).Add(time.Second) != 1100 {
		t.Errorf("Tick(100).Add(1s) = %d", Tick(100).Add(time.Second))
	}
	if PresenceActive.Int() != 1 || PresenceInactive.Int() != 0 {
		t.Error("presence int encoding wrong")
	}
}
