package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/node"
	"github.com/sweeney/motion-detector/internal/settings"
	"github.com/sweeney/motion-detector/internal/status"
)

type fakeMetrics struct{}

func (fakeMetrics) WritePrometheus(w io.Writer) {
	fmt.Fprintln(w, `motion_events_total 3`)
}

func newTestServer(t *testing.T, opts ...Option) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		NodeID:   "hall",
		Broker:   "tcp://192.168.1.200:1883",
		Prefix:   "node/hall",
		HTTPAddr: ":8080",
		GPIO:     true,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func activeStatus() node.Status {
	return node.Status{
		Presence:         logic.PresenceActive,
		WindowCount:      6,
		PIREventCount:    17,
		TemperatureValid: true,
		Temperature:      19.25,
		Config:           settings.Defaults(),
	}
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(activeStatus())
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Presence.State != "ACTIVE" {
		t.Errorf("Presence.State: got %q, want ACTIVE", sj.Status.Presence.State)
	}
	if sj.Status.Presence.PIREventCount != 17 {
		t.Errorf("PIREventCount: got %d, want 17", sj.Status.Presence.PIREventCount)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
}

func TestJSONUnknownStateBeforeStart(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	json.NewDecoder(resp.Body).Decode(&sj)

	if sj.Status.Presence.State != "UNKNOWN" {
		t.Errorf("Presence before start: got %q, want UNKNOWN", sj.Status.Presence.State)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.Update(activeStatus())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{"Motion Detector hall", "ACTIVE", "19.25", settings.FieldPresenceEnterThreshold} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "mqtt.min.js") {
		t.Error("live script should be omitted without a websocket broker")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, WithMetrics(fakeMetrics{}))

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "motion_events_total 3") {
		t.Errorf("unexpected metrics body: %s", body)
	}
}

func TestMetricsEndpointWithNodeMetrics(t *testing.T) {
	ts, _ := newTestServer(t, WithMetrics(node.NewMetrics()))

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "motion_events_total 0") {
		t.Errorf("unexpected metrics body: %s", body)
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestCommandEndpoint(t *testing.T) {
	var lines []string
	ts, _ := newTestServer(t, WithCommands(func(line string) string {
		lines = append(lines, line)
		return "OK\r\n"
	}))

	resp, err := http.Post(ts.URL+"/atci", "text/plain", strings.NewReader("AT&W\r\n"))
	if err != nil {
		t.Fatalf("POST /atci: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK\r\n" {
		t.Errorf("body: got %q", body)
	}
	if len(lines) != 1 || lines[0] != "AT&W" {
		t.Errorf("handler saw %q", lines)
	}
}

func TestCommandEndpointRejectsGet(t *testing.T) {
	ts, _ := newTestServer(t, WithCommands(func(string) string { return "OK\r\n" }))

	resp, err := http.Get(ts.URL + "/atci")
	if err != nil {
		t.Fatalf("GET /atci: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	resp1, _ := http.Get(ts.URL + "/index.json")
	var sj1 status.StatusJSON
	json.NewDecoder(resp1.Body).Decode(&sj1)
	resp1.Body.Close()
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	tr.Update(activeStatus())
	tr.SetMQTTConnected(true)

	resp2, _ := http.Get(ts.URL + "/index.json")
	var sj2 status.StatusJSON
	json.NewDecoder(resp2.Body).Decode(&sj2)
	resp2.Body.Close()

	if !sj2.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if sj2.Status.Presence.State != "ACTIVE" {
		t.Errorf("Presence: got %q, want ACTIVE", sj2.Status.Presence.State)
	}
}
