// Command motion-detector reads a PIR sensor, debounces presence, drives a
// relay on motion and publishes node values to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/motion-detector/internal/atci"
	"github.com/sweeney/motion-detector/internal/config"
	"github.com/sweeney/motion-detector/internal/console"
	"github.com/sweeney/motion-detector/internal/gpio"
	"github.com/sweeney/motion-detector/internal/influx"
	"github.com/sweeney/motion-detector/internal/logging"
	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/mqtt"
	"github.com/sweeney/motion-detector/internal/node"
	"github.com/sweeney/motion-detector/internal/scheduler"
	"github.com/sweeney/motion-detector/internal/sensor"
	"github.com/sweeney/motion-detector/internal/status"
	"github.com/sweeney/motion-detector/internal/store"
	"github.com/sweeney/motion-detector/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	configPath  string
	broker      string
	httpAddr    string
	console     bool
	printConfig bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file (empty for defaults)")
	flag.StringVar(&f.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&f.httpAddr, "http", "", `HTTP status address (overrides config, "off" disables)`)
	flag.BoolVar(&f.console, "console", false, "Run the interactive console on the terminal")
	flag.BoolVar(&f.printConfig, "print-config", false, "Print the effective configuration and exit")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies command-line overrides.
func loadConfig(f flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.broker != "" {
		cfg.MQTT.Broker = f.broker
	}
	switch f.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func run(f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	if f.printConfig {
		data, err := cfg.Redacted().YAML()
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
		return nil
	}

	var (
		con    *console.Console
		logOut io.Writer
	)
	if f.console {
		con, err = console.New()
		if err != nil {
			return err
		}
		defer con.Close()
		logOut = con.Stdout()
	}

	logger := newLogger(cfg, logOut)
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	loop := scheduler.NewLoop(logger, 0)

	prefix := cfg.TopicPrefix()
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Prefix:   prefix,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		QoS:      byte(cfg.MQTT.QoS),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	sinks := node.MultiSink{publisher}
	influxURL := ""
	if cfg.InfluxDB.Enabled {
		ic, err := influx.Connect(cfg.InfluxDB, cfg.Node.ID)
		if err != nil {
			// Telemetry mirror is optional; MQTT stays the primary sink.
			logger.Warn("influxdb unavailable", "url", cfg.InfluxDB.URL, "error", err)
		} else {
			ic.SetOnError(func(err error) {
				logger.Warn("influxdb write failed", "error", err)
			})
			defer ic.Close()
			sinks = append(sinks, ic)
			influxURL = cfg.InfluxDB.URL
		}
	}

	post := func(ev logic.Event) {
		if err := loop.Post(ev); err != nil {
			logger.Warn("input event dropped", "source", ev.Source(), "error", err)
		}
	}

	metrics := node.NewMetrics()
	opts := node.Options{
		Scheduler: loop,
		Sink:      sinks,
		Store:     st,
		Logger:    logger,
		Metrics:   metrics,
	}

	if cfg.GPIO.Enabled {
		dev, err := gpio.NewRealDevice(gpio.Lines{
			Chip:   cfg.GPIO.Chip,
			PIR:    cfg.GPIO.PIRLine,
			Button: cfg.GPIO.ButtonLine,
			Relay:  cfg.GPIO.RelayLine,
		}, gpio.Handlers{
			Motion: func() { post(logic.Motion{}) },
			Button: func(kind logic.ButtonKind) { post(logic.Button{Kind: kind}) },
		})
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer dev.Close()
		opts.Relay = dev
		opts.PIR = dev
	} else {
		logger.Info("gpio disabled, inputs only from console")
	}
	if cfg.Sensors.TemperaturePath != "" {
		opts.Thermo = sensor.NewTemperature(cfg.Sensors.TemperaturePath)
	}
	if cfg.Sensors.BatteryPath != "" {
		opts.Battery = sensor.NewBattery(cfg.Sensors.BatteryPath, cfg.Sensors.BatteryScale)
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		NodeID:   cfg.Node.ID,
		Broker:   cfg.MQTT.Broker,
		Prefix:   prefix,
		HTTPAddr: cfg.HTTP.Addr,
		WSBroker: resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker),
		Store:    st.Path(),
		InfluxDB: influxURL,
		GPIO:     cfg.GPIO.Enabled,
	})
	opts.OnChange = tracker.Update

	n := node.New(opts)
	// The loop is not running yet, so Start may touch node state here.
	n.Start()

	d := &daemon{
		log:       logger.With("component", "daemon"),
		loop:      loop,
		node:      n,
		atci:      atci.New(n),
		publisher: publisher,
		conn:      publisher,
		tracker:   tracker,
	}

	if err := publisher.HandleCommands(d.command); err != nil {
		logger.Warn("remote commands unavailable", "error", err)
	}

	d.publishLifecycle("STARTUP", "")

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, web.WithMetrics(metrics), web.WithCommands(d.command))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if con != nil {
		go con.Run(ctx, cancel, console.Backend{
			Command: d.command,
			Status:  d.statusJSON,
			Inject:  loop.Post,
		})
	}

	logger.Info("started",
		"node", cfg.Node.ID,
		"broker", cfg.MQTT.Broker,
		"prefix", prefix,
		"gpio", cfg.GPIO.Enabled,
		"version", version)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return d.serve(ctx, sigCh)
}

// newLogger builds the daemon logger. With a console attached, records go
// through out so they do not tear the prompt.
func newLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	if out != nil {
		return logging.NewWithWriter(out, cfg.Logging, version)
	}
	return logging.New(cfg.Logging, version)
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty or
// "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "" || ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		slog.Warn("ws_broker: cannot parse broker", "broker", broker, "error", err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
