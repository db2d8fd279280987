// Package logic contains pure logic for sensor state tracking.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of a sensor.
type State string

const (
	StateActive   State = "ACTIVE"
	StateInactive State = "INACTIVE"
)

// StateOf converts an is-active boolean to a State.
func StateOf(active bool) State {
	if active {
		return StateActive
	}
	return StateInactive
}

// EventType represents a sensor transition event.
type EventType string

const (
	EventActivated   EventType = "ACTIVATED"
	EventDeactivated EventType = "DEACTIVATED"
	EventHeld        EventType = "HELD"
)

// Kind names the sensor flavour an event came from.
type Kind string

const (
	KindDigital  Kind = "digital"
	KindSmoothed Kind = "smoothed"
	KindButton   Kind = "button"
	KindMotion   Kind = "motion"
	KindLine     Kind = "line"
	KindLight    Kind = "light"
	KindDistance Kind = "distance"
)

// Event represents a sensor transition to be published.
type Event struct {
	Timestamp time.Time
	Sensor    string
	Kind      Kind
	Type      EventType
	State     State
	// Value is the smoothed reading at the time of the event: the window
	// mean for smoothed sensors, metres for distance sensors, 0 or 1 for
	// digital inputs.
	Value float64
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Activated   int
	Deactivated int
	Held        int
}

// Total returns the number of events of all types.
func (c EventCounts) Total() int {
	return c.Activated + c.Deactivated + c.Held
}

// SensorState is the last known state of a single sensor.
type SensorState struct {
	Name      string
	Kind      Kind
	State     State // empty until the first observation
	Value     float64
	Changed   time.Time
	Counts    EventCounts
	Baselined bool
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
