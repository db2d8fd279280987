package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sensord/internal/logic"
)

func testSensors() []logic.SensorState {
	return []logic.SensorState{
		{
			Name:      "hall",
			Kind:      logic.KindMotion,
			State:     logic.StateActive,
			Value:     1,
			Changed:   time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC),
			Counts:    logic.EventCounts{Activated: 3, Deactivated: 2},
			Baselined: true,
		},
		{Name: "garage", Kind: logic.KindDistance},
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Chip: "gpiochip0", Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Chip != "gpiochip0" {
		t.Errorf("Config.Chip: got %q", snap.Config.Chip)
	}
	if snap.Config.HTTPPort != ":80" {
		t.Errorf("Config.HTTPPort: got %q, want %q", snap.Config.HTTPPort, ":80")
	}
	if snap.Baselined {
		t.Error("expected Baselined=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.Sensors) != 0 {
		t.Errorf("expected no sensors initially, got %d", len(snap.Sensors))
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(testSensors(), true, logic.EventCounts{Activated: 3, Deactivated: 2})

	snap := tr.Snapshot()
	if len(snap.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(snap.Sensors))
	}
	if snap.Sensors[0].State != logic.StateActive {
		t.Errorf("hall: got %q, want ACTIVE", snap.Sensors[0].State)
	}
	if !snap.Baselined {
		t.Error("expected Baselined=true")
	}
	if snap.Counts.Activated != 3 {
		t.Errorf("Counts.Activated: got %d, want 3", snap.Counts.Activated)
	}
}

func TestSnapshotSensorLookup(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(testSensors(), false, logic.EventCounts{})
	snap := tr.Snapshot()

	got, ok := snap.Sensor("garage")
	if !ok || got.Kind != logic.KindDistance {
		t.Errorf("Sensor(garage) = %+v, %v", got, ok)
	}
	if _, ok := snap.Sensor("attic"); ok {
		t.Error("unknown sensor should not be found")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	sensors := testSensors()
	tr.Update(sensors, true, logic.EventCounts{})

	snap1 := tr.Snapshot()
	sensors[0].State = logic.StateInactive
	tr.Update([]logic.SensorState{{Name: "other"}}, false, logic.EventCounts{})

	if snap1.Sensors[0].State != logic.StateActive {
		t.Error("snapshot should be a copy; sensor state was modified")
	}
	if len(snap1.Sensors) != 2 {
		t.Error("snapshot should be a copy; sensors were replaced")
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Sensors:       testSensors(),
		Baselined:     true,
		Counts:        logic.EventCounts{Activated: 3, Deactivated: 2, Held: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config: Config{
			Chip:        "gpiochip0",
			ConfigPath:  "/etc/sensord.yaml",
			HeartbeatMs: 900000,
			Broker:      "tcp://localhost:1883",
			HTTPPort:    ":80",
			WSEnabled:   true,
			BootID:      "b00t",
		},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if !s.Ready {
		t.Error("expected Ready=true")
	}
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Activated != 3 || s.Counts.Deactivated != 2 || s.Counts.Held != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if s.BootID != "b00t" {
		t.Errorf("BootID: got %q", s.BootID)
	}
	if s.Config.ConfigPath != "/etc/sensord.yaml" || !s.Config.WSEnabled {
		t.Errorf("Config: got %+v", s.Config)
	}
	if len(s.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(s.Sensors))
	}
	hall := s.Sensors[0]
	if hall.Name != "hall" || hall.Kind != "motion" || hall.State != "ACTIVE" || hall.Value != 1 {
		t.Errorf("hall: got %+v", hall)
	}
	if hall.Changed != "2026-01-01T00:05:00Z" {
		t.Errorf("hall changed: got %q", hall.Changed)
	}
	if hall.Counts.Activated != 3 {
		t.Errorf("hall counts: got %+v", hall.Counts)
	}
	// Event and Reason should be omitted
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty Event/Reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		Sensors:   testSensors(),
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	garage := parsed.Status.Sensors[1]
	if garage.State != "UNKNOWN" {
		t.Errorf("garage: got %q, want UNKNOWN", garage.State)
	}
	if garage.Changed != "" {
		t.Errorf("garage changed: got %q, want empty", garage.Changed)
	}
}

func TestFormatJSONNoSensorsIsEmptyArray(t *testing.T) {
	snap := Snapshot{StartTime: time.Now(), Now: time.Now()}

	var raw map[string]map[string]interface{}
	json.Unmarshal(FormatJSON(snap), &raw)
	sensors, ok := raw["status"]["sensors"].([]interface{})
	if !ok || len(sensors) != 0 {
		t.Errorf("sensors: got %#v, want []", raw["status"]["sensors"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Sensors:   testSensors(),
		Baselined: true,
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	var raw map[string]interface{}
	json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(testSensors(), true, logic.EventCounts{Activated: i})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
