// Package influx mirrors published node values into InfluxDB.
//
// Writes are non-blocking and batched by the client library; failures are
// reported asynchronously through the error callback and never reach the
// node's publish path.
package influx

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/motion-detector/internal/config"
	"github.com/sweeney/motion-detector/internal/logic"
)

// Measurement is the InfluxDB measurement every point is written to.
const Measurement = "motion_detector"

const connectTimeout = 10 * time.Second

// pointWriter is the subset of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Client is a node.Sink that writes to InfluxDB.
type Client struct {
	client influxdb2.Client
	writer pointWriter
	nodeID string
	now    func() time.Time

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect pings the server and opens the batched write API.
func Connect(cfg config.InfluxDBConfig, nodeID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushMs := cfg.FlushInterval
	if flushMs <= 0 {
		flushMs = 10000
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushMs)))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := newClient(writeAPI, nodeID, time.Now)
	c.client = client

	go func() {
		for err := range writeAPI.Errors() {
			c.mu.RLock()
			cb := c.onError
			c.mu.RUnlock()
			if cb != nil {
				cb(err)
			}
		}
	}()

	return c, nil
}

func newClient(w pointWriter, nodeID string, now func() time.Time) *Client {
	return &Client{
		writer:    w,
		nodeID:    nodeID,
		now:       now,
		connected: true,
	}
}

// SetOnError installs the callback for asynchronous write failures.
func (c *Client) SetOnError(cb func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = cb
}

// PublishValue implements node.Sink. Integer values are written as integer
// fields so downstream queries keep their type.
func (c *Client) PublishValue(channel string, typ logic.ValueType, value float64) error {
	var field interface{} = value
	if typ == logic.ValueInt {
		field = int64(value)
	}
	return c.write(channel, field)
}

// PublishEventCount implements node.Sink.
func (c *Client) PublishEventCount(kind logic.CountKind, count uint32) error {
	return c.write(string(kind), int64(count))
}

func (c *Client) write(channel string, value interface{}) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	c.writer.WritePoint(write.NewPoint(
		Measurement,
		map[string]string{
			"node":    c.nodeID,
			"channel": channel,
		},
		map[string]interface{}{
			"value": value,
		},
		c.now(),
	))
	return nil
}

// IsConnected reports whether the client accepts writes.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Flush sends pending points. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writer.Flush()
}

// Close flushes pending points and releases the client.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()

	c.writer.Flush()
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
