package mqtt

import (
	"testing"
)

func TestOfflineQueueEmptyDrain(t *testing.T) {
	q := newOfflineQueue(10)
	got, dropped := q.drain()
	if got != nil || dropped != 0 {
		t.Errorf("expected nothing from empty drain, got %d items, %d dropped", len(got), dropped)
	}
}

func TestOfflineQueuePushAndDrain(t *testing.T) {
	q := newOfflineQueue(10)
	for i := 0; i < 5; i++ {
		q.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got, _ := q.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	// Second drain should be empty
	if got2, _ := q.drain(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestOfflineQueueOverflowDropsOldest(t *testing.T) {
	q := newOfflineQueue(5)

	// Push 8 items (0..7); the queue keeps the most recent 5 (3..7)
	for i := 0; i < 8; i++ {
		q.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got, dropped := q.drain()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	if dropped != 3 {
		t.Errorf("expected 3 dropped, got %d", dropped)
	}
	for i := range got {
		want := byte(i + 3)
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}

	// The drop count resets with the drain.
	q.push(bufferedMsg{topic: "t"})
	if _, dropped := q.drain(); dropped != 0 {
		t.Errorf("expected 0 dropped after drain, got %d", dropped)
	}
}

func TestOfflineQueueRetainedReplacesSameTopic(t *testing.T) {
	q := newOfflineQueue(10)
	q.push(bufferedMsg{topic: "sensord/system", payload: []byte("startup"), retained: true})
	q.push(bufferedMsg{topic: "sensord/hall/events", payload: []byte("a")})
	q.push(bufferedMsg{topic: "sensord/system", payload: []byte("heartbeat")})
	q.push(bufferedMsg{topic: "sensord/system", payload: []byte("shutdown"), retained: true})

	got, _ := q.drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	want := []string{"a", "heartbeat", "shutdown"}
	for i, w := range want {
		if string(got[i].payload) != w {
			t.Errorf("item %d: got %s, want %s", i, got[i].payload, w)
		}
	}
}

func TestOfflineQueueRetainedKeepsOtherTopics(t *testing.T) {
	q := newOfflineQueue(10)
	q.push(bufferedMsg{topic: "a", payload: []byte("1"), retained: true})
	q.push(bufferedMsg{topic: "b", payload: []byte("2"), retained: true})

	if q.len() != 2 {
		t.Errorf("expected 2 queued, got %d", q.len())
	}
}

func TestOfflineQueueMultipleCycles(t *testing.T) {
	q := newOfflineQueue(5)

	for i := 0; i < 3; i++ {
		q.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	if got, _ := q.drain(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	for i := 10; i < 14; i++ {
		q.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got, _ := q.drain()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		want := byte(10 + i)
		if msg.payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestOfflineQueuePreservesFields(t *testing.T) {
	q := newOfflineQueue(10)
	q.push(bufferedMsg{
		topic:    "sensord/test",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got, _ := q.drain()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "sensord/test" {
		t.Errorf("topic: got %s, want sensord/test", got[0].topic)
	}
	if string(got[0].payload) != `{"test":true}` {
		t.Errorf("payload: got %s", got[0].payload)
	}
	if got[0].qos != 1 {
		t.Errorf("qos: got %d, want 1", got[0].qos)
	}
	if !got[0].retained {
		t.Error("retained: got false, want true")
	}
}
