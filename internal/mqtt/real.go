package mqtt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/motion-detector/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// outboundSize bounds data publishes waiting for the network.
	outboundSize = 64
)

var (
	// ErrOutboundFull is returned when a data publish is dropped because
	// the outbound queue is full.
	ErrOutboundFull = errors.New("outbound queue full")

	// ErrClosed is returned by publishes after Close.
	ErrClosed = errors.New("publisher closed")
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string // "motion-detector-<random>" when empty
	Prefix   string // DefaultPrefix when empty
	Username string
	Password string
	QoS      byte
	Logger   *slog.Logger
}

// outbound is one queued data publish.
type outbound struct {
	topic   string
	payload []byte
}

// RealPublisher publishes to an actual MQTT broker.
//
// Value and counter publishes never wait for the broker: they are queued and
// handed to paho by a drain goroutine, and delivery errors are only logged.
// Lifecycle events and command responses wait for their token.
type RealPublisher struct {
	client paho.Client
	topics Topics
	qos    byte
	log    *slog.Logger

	out       chan outbound
	done      chan struct{}
	drained   chan struct{}
	closeOnce sync.Once

	connectedOnce atomic.Bool

	mu      sync.Mutex
	handler CommandHandler
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker retains an offline SHUTDOWN event as the last will.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	p := newPublisher(o)
	opts, err := clientOptions(o, p.topics)
	if err != nil {
		return nil, err
	}
	opts.SetOnConnectHandler(p.onConnect)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("connection lost", "error", err)
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	go p.drain()
	return p, nil
}

func newPublisher(o Options) *RealPublisher {
	p := &RealPublisher{
		topics:  Topics{Prefix: o.Prefix},
		qos:     o.QoS,
		log:     o.Logger,
		out:     make(chan outbound, outboundSize),
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	if p.topics.Prefix == "" {
		p.topics.Prefix = DefaultPrefix
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	p.log = p.log.With("component", "mqtt")
	return p
}

func clientOptions(o Options, topics Topics) (*paho.ClientOptions, error) {
	clientID := o.ClientID
	if clientID == "" {
		clientID = "motion-detector-" + uuid.NewString()[:8]
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false). // command handlers wait on the loop and on their response token
		SetBinaryWill(topics.System(), will, 1, true)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	return opts, nil
}

// onConnect runs on every (re)connection. Subscriptions do not survive a
// clean session, so the command topic is subscribed again each time.
func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		if err := p.subscribe(h); err != nil {
			p.log.Warn("command subscribe failed", "error", err)
		}
	}

	if !p.connectedOnce.CompareAndSwap(false, true) {
		p.log.Info("reconnected")
		go func() {
			if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
				p.log.Warn("publish reconnected event failed", "error", err)
			}
		}()
	}
}

// HandleCommands subscribes to the AT request topic. Each request payload is
// passed to h and the result published on the response topic.
func (p *RealPublisher) HandleCommands(h CommandHandler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	return p.subscribe(h)
}

func (p *RealPublisher) subscribe(h CommandHandler) error {
	token := p.client.Subscribe(p.topics.Request(), 1, func(_ paho.Client, msg paho.Message) {
		resp := h(string(msg.Payload()))
		if err := p.publish(p.topics.Response(), 1, false, []byte(resp)); err != nil {
			p.log.Warn("publish command response failed", "error", err)
		}
	})
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.topics.Request(), err)
	}
	return nil
}

// PublishValue queues a channel value for the MQTT broker.
func (p *RealPublisher) PublishValue(channel string, typ logic.ValueType, value float64) error {
	return p.enqueue(p.topics.Value(channel), FormatValue(typ, value))
}

// PublishEventCount queues an event counter for the MQTT broker.
func (p *RealPublisher) PublishEventCount(kind logic.CountKind, count uint32) error {
	return p.enqueue(p.topics.Value(string(kind)), FormatCount(count))
}

// enqueue never blocks. A full queue drops the message.
func (p *RealPublisher) enqueue(topic string, payload []byte) error {
	select {
	case <-p.done:
		return fmt.Errorf("publish %s: %w", topic, ErrClosed)
	default:
	}
	select {
	case p.out <- outbound{topic: topic, payload: payload}:
		return nil
	default:
		return fmt.Errorf("publish %s: %w", topic, ErrOutboundFull)
	}
}

// drain hands queued data publishes to paho in order until Close.
func (p *RealPublisher) drain() {
	defer close(p.drained)
	for {
		select {
		case <-p.done:
			return
		case m := <-p.out:
			token := p.client.Publish(m.topic, p.qos, false, m.payload)
			go p.watch(m.topic, token)
		}
	}
}

// watch logs a data publish that fails or is not acknowledged in time.
func (p *RealPublisher) watch(topic string, token paho.Token) {
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warn("publish not acknowledged", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(p.topics.System(), 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops the drain goroutine and disconnects from the broker. Queued
// data publishes that were not yet handed to paho are dropped.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.drained
		p.client.Disconnect(1000) // 1 second timeout
	})
	return nil
}
