package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/motion-detector/internal/atci"
	"github.com/sweeney/motion-detector/internal/mqtt"
	"github.com/sweeney/motion-detector/internal/node"
	"github.com/sweeney/motion-detector/internal/scheduler"
	"github.com/sweeney/motion-detector/internal/status"
)

// commandTimeout bounds how long a remote AT command waits for the loop.
const commandTimeout = 5 * time.Second

// statusRefresh is how often connection and network state are re-read for
// the status tracker.
const statusRefresh = 10 * time.Second

// daemon ties the scheduler loop to the outer surfaces: MQTT commands, the
// status tracker and lifecycle events.
type daemon struct {
	log       *slog.Logger
	loop      *scheduler.Loop
	node      *node.Node
	atci      *atci.Interpreter
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus // optional
	tracker   *status.Tracker
	timeout   time.Duration
}

// command executes one AT command line on the loop goroutine and returns the
// response text. ERROR from a timeout means the line was never executed.
// It is safe for concurrent use.
func (d *daemon) command(line string) string {
	timeout := d.timeout
	if timeout == 0 {
		timeout = commandTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var (
		buf     bytes.Buffer
		execErr error
	)
	if err := d.loop.Call(ctx, func() { execErr = d.atci.Execute(&buf, line) }); err != nil {
		d.log.Warn("command not executed", "line", line, "error", err)
		return atci.Error + "\n"
	}
	if execErr != nil {
		d.log.Info("command failed", "line", line, "error", execErr)
	} else {
		d.log.Debug("command executed", "line", line)
	}
	return buf.String()
}

// refresh re-reads the state the node does not report itself.
func (d *daemon) refresh() {
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}
}

// statusJSON renders the current status for the console.
func (d *daemon) statusJSON() []byte {
	d.refresh()
	return status.FormatJSON(d.tracker.Snapshot())
}

// publishLifecycle sends a retained STARTUP or SHUTDOWN event carrying a full
// status snapshot.
func (d *daemon) publishLifecycle(event, reason string) {
	d.refresh()
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.log.Warn("failed to publish system event", "event", event, "error", err)
		return
	}
	d.log.Info("published system event", "event", event, "reason", reason)
}

// serve runs the scheduler loop until a signal arrives or ctx is cancelled,
// then stops the loop and publishes the shutdown event.
func (d *daemon) serve(ctx context.Context, sig <-chan os.Signal) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()

	loopErr := make(chan error, 1)
	go func() { loopErr <- d.loop.Run(loopCtx) }()

	ticker := time.NewTicker(statusRefresh)
	defer ticker.Stop()

	var reason string
	for reason == "" {
		select {
		case s := <-sig:
			d.log.Info("received signal, shutting down", "signal", s)
			reason = signalName(s)
		case <-ctx.Done():
			d.log.Info("shutdown requested")
			reason = "QUIT"
		case err := <-loopErr:
			return err
		case <-ticker.C:
			d.refresh()
		}
	}

	stopLoop()
	if err := <-loopErr; err != nil {
		d.log.Warn("scheduler loop stopped with error", "error", err)
	}
	d.publishLifecycle("SHUTDOWN", reason)
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
