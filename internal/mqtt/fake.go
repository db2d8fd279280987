package mqtt

import (
	"github.com/sweeney/sensord/internal/logic"
)

// FakePublisher is an in-memory Publisher. Each sensor event is kept
// alongside the topic and payload the real client would have sent, so tests
// can check routing and encoding without a broker.
type FakePublisher struct {
	Events   []logic.Event
	Topics   []string // parallel to Events
	Payloads [][]byte // parallel to Events

	SystemEvents   []SystemEvent
	SystemPayloads [][]byte // parallel to SystemEvents

	// Failures to inject. Nothing is recorded while set.
	PublishError       error
	PublishSystemError error

	Connected bool // returned by IsConnected
	Closed    bool
}

func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Topics = append(f.Topics, TopicFor(event.Sensor))
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// LastSystem returns the most recent system event, if any.
func (f *FakePublisher) LastSystem() (SystemEvent, bool) {
	if len(f.SystemEvents) == 0 {
		return SystemEvent{}, false
	}
	return f.SystemEvents[len(f.SystemEvents)-1], true
}

func (f *FakePublisher) IsConnected() bool { return f.Connected }

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
