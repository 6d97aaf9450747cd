package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/motion-detector/internal/settings"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	NodeID        string           `json:"node_id"`
	Ready         bool             `json:"ready"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	Presence      PresenceJSON     `json:"presence"`
	Relay         RelayJSON        `json:"relay"`
	Temperature   *float64         `json:"temperature,omitempty"`
	Battery       *float64         `json:"battery_voltage,omitempty"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Network       *NetworkJSON     `json:"network,omitempty"`
	Settings      map[string]int64 `json:"settings"`
	Config        ConfigJSON       `json:"config"`
}

// PresenceJSON reports the debounced presence state.
type PresenceJSON struct {
	State         string `json:"state"`
	WindowCount   int    `json:"window_count"`
	PendingCount  int    `json:"pending_count"`
	PIREventCount uint16 `json:"pir_event_count"`
}

// RelayJSON reports the relay output.
type RelayJSON struct {
	On          bool  `json:"on"`
	RemainingMs int64 `json:"remaining_ms,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Prefix    string `json:"prefix"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker   string `json:"broker"`
	HTTPAddr string `json:"http_addr"`
	WSBroker string `json:"ws_broker,omitempty"`
	Store    string `json:"store"`
	InfluxDB string `json:"influxdb,omitempty"`
	GPIO     bool   `json:"gpio"`
}

func buildInner(snap Snapshot) StatusInner {
	n := snap.Node
	state := string(n.Presence)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		NodeID:        snap.Config.NodeID,
		Ready:         snap.Started,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Presence: PresenceJSON{
			State:         state,
			WindowCount:   n.WindowCount,
			PendingCount:  n.PendingCount,
			PIREventCount: n.PIREventCount,
		},
		Relay: RelayJSON{On: n.Relay},
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Prefix:    snap.Config.Prefix,
		},
		Settings: make(map[string]int64),
		Config: ConfigJSON{
			Broker:   snap.Config.Broker,
			HTTPAddr: snap.Config.HTTPAddr,
			WSBroker: snap.Config.WSBroker,
			Store:    snap.Config.Store,
			InfluxDB: snap.Config.InfluxDB,
			GPIO:     snap.Config.GPIO,
		},
	}
	if n.Relay && n.RelayDeadline > n.Tick {
		inner.Relay.RemainingMs = int64(n.RelayDeadline - n.Tick)
	}
	if n.TemperatureValid {
		v := n.Temperature
		inner.Temperature = &v
	}
	if n.BatteryValid {
		v := n.Battery
		inner.Battery = &v
	}
	for _, f := range settings.Fields() {
		inner.Settings[f.Name] = f.Get(&n.Config)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
