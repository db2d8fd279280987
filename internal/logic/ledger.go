package logic

import "time"

// Ledger tracks the last known state of every sensor, counts events and
// schedules heartbeats. It is driven from a single goroutine (the daemon's
// run loop) and is not safe for concurrent use.
type Ledger struct {
	sensors       map[string]*SensorState
	order         []string
	counts        EventCounts
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewLedger creates an empty ledger. The startTime is used for calculating
// uptime in heartbeat events.
func NewLedger(startTime time.Time) *Ledger {
	return &Ledger{
		sensors:       make(map[string]*SensorState),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Register adds a sensor. Registering an existing name is a no-op.
func (l *Ledger) Register(name string, kind Kind) {
	if _, ok := l.sensors[name]; ok {
		return
	}
	l.sensors[name] = &SensorState{Name: name, Kind: kind}
	l.order = append(l.order, name)
}

// Observe records the current state of a sensor without counting an event.
// The first observation of a sensor establishes its baseline.
func (l *Ledger) Observe(name string, active bool, value float64, now time.Time) {
	s, ok := l.sensors[name]
	if !ok {
		return
	}
	st := StateOf(active)
	if s.State != st {
		s.Changed = now
	}
	s.State = st
	s.Value = value
	s.Baselined = true
}

// Record applies an event. It returns false for events from unknown sensors
// or events that do not change state (duplicates), which should not be
// published.
func (l *Ledger) Record(e Event) bool {
	s, ok := l.sensors[e.Sensor]
	if !ok {
		return false
	}

	switch e.Type {
	case EventActivated, EventDeactivated:
		st := StateOf(e.Type == EventActivated)
		if s.Baselined && s.State == st {
			return false
		}
		s.State = st
		s.Changed = e.Timestamp
		s.Baselined = true
	case EventHeld:
	default:
		return false
	}
	s.Value = e.Value

	switch e.Type {
	case EventActivated:
		s.Counts.Activated++
		l.counts.Activated++
	case EventDeactivated:
		s.Counts.Deactivated++
		l.counts.Deactivated++
	case EventHeld:
		s.Counts.Held++
		l.counts.Held++
	}
	return true
}

// IsBaselined returns whether every registered sensor has a known state.
func (l *Ledger) IsBaselined() bool {
	if len(l.order) == 0 {
		return false
	}
	for _, name := range l.order {
		if !l.sensors[name].Baselined {
			return false
		}
	}
	return true
}

// Sensors returns a copy of every sensor state in registration order.
func (l *Ledger) Sensors() []SensorState {
	out := make([]SensorState, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, *l.sensors[name])
	}
	return out
}

// Sensor returns the state of a single sensor.
func (l *Ledger) Sensor(name string) (SensorState, bool) {
	s, ok := l.sensors[name]
	if !ok {
		return SensorState{}, false
	}
	return *s, true
}

// EventCountsSnapshot returns the totals across all sensors.
func (l *Ledger) EventCountsSnapshot() EventCounts {
	return l.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (l *Ledger) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !l.IsBaselined() {
		return nil
	}

	if now.Sub(l.lastHeartbeat) < interval {
		return nil
	}

	l.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(l.startTime),
		Counts:    l.counts,
	}
}
