package mqtt

import (
	"sync"

	"github.com/sweeney/motion-detector/internal/logic"
)

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload string
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	mu      sync.Mutex
	topics  Topics
	handler CommandHandler

	// Messages contains every value and counter publish, in order.
	Messages []Message

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Responses contains the AT responses produced by Command.
	Responses []string

	// PublishError, if set, will be returned by PublishValue and PublishEventCount.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher using DefaultPrefix.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{topics: Topics{Prefix: DefaultPrefix}}
}

// PublishValue records the value.
func (f *FakePublisher) PublishValue(channel string, typ logic.ValueType, value float64) error {
	return f.record(f.topics.Value(channel), FormatValue(typ, value))
}

// PublishEventCount records the counter.
func (f *FakePublisher) PublishEventCount(kind logic.CountKind, count uint32) error {
	return f.record(f.topics.Value(string(kind)), FormatCount(count))
}

func (f *FakePublisher) record(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Topic: topic, Payload: string(payload)})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// HandleCommands registers the handler Command delivers to.
func (f *FakePublisher) HandleCommands(h CommandHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	return nil
}

// Command simulates a request arriving on the AT request topic and returns
// the response. It returns "" when no handler is registered.
func (f *FakePublisher) Command(line string) string {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return ""
	}

	resp := h(line)
	f.mu.Lock()
	f.Responses = append(f.Responses, resp)
	f.mu.Unlock()
	return resp
}

// Payloads returns the payloads published on one topic.
func (f *FakePublisher) Payloads(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, m.Payload)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages and scripted errors.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Responses = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
