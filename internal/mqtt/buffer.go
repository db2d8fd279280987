package mqtt

import "github.com/rs/zerolog/log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue holds messages published while the broker is unreachable.
// When full the oldest message is dropped. A retained message replaces any
// retained message already queued for the same topic, since the broker
// would only keep the last one.
// Not safe for concurrent use; the caller synchronizes.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // messages lost to overflow since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{capacity: capacity}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range q.msgs {
			if m.retained && m.topic == msg.topic {
				q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
				break
			}
		}
	}
	if len(q.msgs) == q.capacity {
		if q.dropped == 0 {
			log.Warn().Int("capacity", q.capacity).Msg("mqtt: offline queue full, dropping oldest")
		}
		q.msgs[0] = bufferedMsg{}
		q.msgs = q.msgs[1:]
		q.dropped++
	}
	q.msgs = append(q.msgs, msg)
}

// drain returns the queued messages oldest first and how many were dropped,
// and empties the queue.
func (q *offlineQueue) drain() ([]bufferedMsg, int) {
	msgs, dropped := q.msgs, q.dropped
	q.msgs = nil
	q.dropped = 0
	return msgs, dropped
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
