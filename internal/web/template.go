package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/motion-detector/internal/settings"
	"github.com/sweeney/motion-detector/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Motion Detector {{.Config.NodeID}}</title>
<style>
body { font-family: ui-monospace, monospace; max-width: 640px; margin: 1.5em auto; padding: 0 1em; color: #222; }
h1 { font-size: 1.3em; border-bottom: 2px solid #444; padding-bottom: 0.3em; }
h2 { font-size: 1.05em; margin-top: 1.4em; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 3px 6px; border-bottom: 1px dotted #ccc; }
th { width: 45%; font-weight: normal; color: #555; }
.on, .connected { color: #1a7f37; font-weight: bold; }
.off { color: #999; }
.unknown { color: #bf8700; }
.disconnected { color: #cf222e; }
#live-dot { display: inline-block; width: 0.6em; height: 0.6em; border-radius: 50%; margin-left: 0.5em; background: #bf8700; }
#live-dot.ok { background: #1a7f37; }
#live-dot.err { background: #cf222e; }
</style>
</head>
<body>
<h1>Motion Detector {{.Config.NodeID}}{{if .Config.WSBroker}}<span id="live-dot" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Presence</th><td id="presence" class="{{if eq (stateOrUnknown (printf "%s" .Node.Presence)) "ACTIVE"}}on{{else if eq (stateOrUnknown (printf "%s" .Node.Presence)) "INACTIVE"}}off{{else}}unknown{{end}}">{{stateOrUnknown (printf "%s" .Node.Presence)}}</td></tr>
<tr><th>Last window</th><td id="window-count">{{.Node.WindowCount}} events</td></tr>
<tr><th>Current window</th><td>{{.Node.PendingCount}} events</td></tr>
<tr><th>PIR events</th><td id="pir-count">{{.Node.PIREventCount}}</td></tr>
<tr><th>Relay</th><td class="{{if .Node.Relay}}on{{else}}off{{end}}">{{if .Node.Relay}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{if .Node.TemperatureValid}}{{printf "%.2f" .Node.Temperature}} &deg;C{{else}}-{{end}}</td></tr>
<tr><th>Battery</th><td>{{if .Node.BatteryValid}}{{printf "%.3f" .Node.Battery}} V{{else}}-{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Started}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Settings</h2>
<table>
{{range .Settings}}<tr><th>{{.Name}}</th><td>{{.Value}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.Prefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>GPIO</th><td>{{if .Config.GPIO}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>Store</th><td>{{.Config.Store}}</td></tr>
{{if .Config.InfluxDB}}<tr><th>InfluxDB</th><td>{{.Config.InfluxDB}}</td></tr>{{end}}
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var prefix = "{{.Config.Prefix}}/";
  var dot = document.getElementById("live-dot");
  var fields = {
    "presence/-/state": function(v) {
      var el = document.getElementById("presence");
      var state = v === "1" ? "ACTIVE" : "INACTIVE";
      el.textContent = state;
      el.className = state === "ACTIVE" ? "on" : "off";
    },
    "presence/-/events": function(v) {
      document.getElementById("window-count").textContent = v + " events";
    },
    "pir/-/event-count": function(v) {
      document.getElementById("pir-count").textContent = v;
    },
    "thermometer/0:1/temperature": function(v) {
      document.getElementById("temperature").textContent = parseFloat(v).toFixed(2) + " °C";
    }
  };

  function setDot(cls, title) {
    dot.className = cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });
  client.on("connect", function() {
    setDot("ok", "live");
    Object.keys(fields).forEach(function(k) { client.subscribe(prefix + k); });
  });
  client.on("reconnect", function() { setDot("", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });
  client.on("message", function(t, payload) {
    var fn = fields[t.substring(prefix.length)];
    if (fn) {
      fn(payload.toString());
    }
  });
})();
</script>
{{end}}
</body>
</html>
`

type settingRow struct {
	Name  string
	Value string
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Settings []settingRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	for _, f := range settings.Fields() {
		data.Settings = append(data.Settings, settingRow{Name: f.Name, Value: f.Format(&snap.Node.Config)})
	}
	indexTmpl.Execute(w, data)
}
