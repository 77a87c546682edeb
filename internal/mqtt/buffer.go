package mqtt

import "slices"

// bufferedMsg is a serialized message waiting for the broker.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool

	// snapshot marks a message that carries the whole daemon status, so a
	// newer snapshot on the same topic and retain flag replaces it.
	snapshot bool
}

// outbox holds messages published while the broker is unreachable, in
// publish order. Controller events are a history and queue up to capacity,
// dropping the oldest. Status snapshots only matter in their latest form and
// are coalesced.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	pending  []bufferedMsg
	capacity int // controller events only
	events   int
	dropped  int
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

func (o *outbox) push(m bufferedMsg) {
	if m.snapshot {
		o.pending = slices.DeleteFunc(o.pending, func(p bufferedMsg) bool {
			return p.snapshot && p.topic == m.topic && p.retained == m.retained
		})
		o.pending = append(o.pending, m)
		return
	}

	if o.events == o.capacity {
		i := slices.IndexFunc(o.pending, func(p bufferedMsg) bool { return !p.snapshot })
		o.pending = slices.Delete(o.pending, i, i+1)
		o.events--
		if o.dropped == 0 {
			log.WithField("capacity", o.capacity).Warn("offline buffer full, dropping oldest events")
		}
		o.dropped++
	}
	o.pending = append(o.pending, m)
	o.events++
}

// drain returns the pending messages oldest first and how many events were
// dropped since the last drain, then empties the outbox.
func (o *outbox) drain() ([]bufferedMsg, int) {
	msgs, dropped := o.pending, o.dropped
	o.pending = nil
	o.events = 0
	o.dropped = 0
	return msgs, dropped
}

func (o *outbox) len() int {
	return len(o.pending)
}
