// Package status keeps the daemon state shown on the web page and carried in
// MQTT system events. The run loop writes it; HTTP handlers read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensord/internal/logic"
)

// NetworkInfo describes the host's uplink as reported by the environment.
// It mirrors the fields of the mqtt package's network payload; status does
// not import mqtt.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config is the subset of daemon settings echoed back to clients.
type Config struct {
	Chip        string
	ConfigPath  string
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	WSEnabled   bool   // /ws streams live events
	BootID      string // changes on every start
}

// Snapshot is a copy of the tracked state. Holding one never blocks writers.
type Snapshot struct {
	Sensors       []logic.SensorState
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Sensor looks up a sensor by name.
func (s Snapshot) Sensor(name string) (logic.SensorState, bool) {
	for _, st := range s.Sensors {
		if st.Name == name {
			return st, true
		}
	}
	return logic.SensorState{}, false
}

type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{}
	t.snap.StartTime = startTime
	t.snap.Config = cfg
	return t
}

// Update replaces the per-sensor view with a copy of sensors. The run loop
// calls it after every ledger change.
func (t *Tracker) Update(sensors []logic.SensorState, baselined bool, counts logic.EventCounts) {
	own := append([]logic.SensorState(nil), sensors...)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Sensors, t.snap.Baselined, t.snap.Counts = own, baselined, counts
}

func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.MQTTConnected = connected
}

// SetNetwork records the uplink; nil clears it.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Network = info
}

// Snapshot copies the current state and stamps it with the time of the call.
// The Sensors slice is shared with the tracker but never written in place.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
