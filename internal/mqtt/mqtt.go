// Package mqtt provides MQTT publishing with abstraction for testing.
//
// Values are published as plain numeric payloads under the node's topic
// prefix, one topic per channel. Lifecycle events go to <prefix>/system as
// JSON. AT command lines received on <prefix>/atci/request are answered on
// <prefix>/atci/response.
package mqtt

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/sweeney/motion-detector/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "node/motion-detector"

// Topic suffixes below the node prefix.
const (
	suffixSystem   = "system"
	suffixRequest  = "atci/request"
	suffixResponse = "atci/response"
)

// Topics is the resolved topic layout of one node.
type Topics struct {
	Prefix string
}

// Value returns the topic for a published channel.
func (t Topics) Value(channel string) string { return t.Prefix + "/" + channel }

// System returns the lifecycle event topic.
func (t Topics) System() string { return t.Prefix + "/" + suffixSystem }

// Request returns the topic AT command lines are received on.
func (t Topics) Request() string { return t.Prefix + "/" + suffixRequest }

// Response returns the topic AT command responses are published on.
func (t Topics) Response() string { return t.Prefix + "/" + suffixResponse }

// Publisher publishes node values and lifecycle events to MQTT. It satisfies
// node.Sink.
type Publisher interface {
	// PublishValue sends one channel value.
	// Returns error if publishing fails (should not crash the process).
	PublishValue(channel string, typ logic.ValueType, value float64) error

	// PublishEventCount sends an event counter.
	PublishEventCount(kind logic.CountKind, count uint32) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// CommandHandler executes one AT command line and returns the full response.
type CommandHandler func(line string) string

// CommandSource delivers remote AT command lines.
type CommandSource interface {
	HandleCommands(h CommandHandler) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// FormatValue renders a channel value as its MQTT payload. Integer channels
// carry no decimal point.
func FormatValue(typ logic.ValueType, v float64) []byte {
	if typ == logic.ValueInt {
		return strconv.AppendInt(nil, int64(v), 10)
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64)
}

// FormatCount renders an event counter payload.
func FormatCount(count uint32) []byte {
	return strconv.AppendUint(nil, uint64(count), 10)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
