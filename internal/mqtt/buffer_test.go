package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/touchwake/internal/touchwake"
)

var outboxTopics = NewTopics("tablet")

func eventMsg(t *testing.T, typ touchwake.EventType, delay time.Duration) bufferedMsg {
	t.Helper()
	payload, err := FormatPayload(touchwake.Event{
		Time:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Type:  typ,
		State: touchwake.State{Enabled: true, Delay: delay},
	})
	if err != nil {
		t.Fatalf("FormatPayload: %v", err)
	}
	return bufferedMsg{topic: outboxTopics.Events, payload: payload}
}

func systemMsg(t *testing.T, event string, retained bool) bufferedMsg {
	t.Helper()
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: event})
	if err != nil {
		t.Fatalf("FormatSystemPayload: %v", err)
	}
	return bufferedMsg{topic: outboxTopics.System, payload: payload, qos: 1, retained: retained, snapshot: true}
}

// eventOf decodes the event name from an events or system payload.
func eventOf(t *testing.T, m bufferedMsg) string {
	t.Helper()
	if m.snapshot {
		var p SystemPayload
		if err := json.Unmarshal(m.payload, &p); err != nil {
			t.Fatalf("decode system payload: %v", err)
		}
		return p.System.Event
	}
	var p Payload
	if err := json.Unmarshal(m.payload, &p); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	return p.TouchWake.Event
}

func drainedEvents(t *testing.T, msgs []bufferedMsg) []string {
	t.Helper()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = eventOf(t, m)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestOutboxEmptyDrain(t *testing.T) {
	o := newOutbox(10)
	msgs, dropped := o.drain()
	if msgs != nil || dropped != 0 {
		t.Errorf("expected nothing from empty drain, got %d msgs, %d dropped", len(msgs), dropped)
	}
}

func TestOutboxKeepsEventOrder(t *testing.T) {
	o := newOutbox(10)
	for _, typ := range []touchwake.EventType{
		touchwake.EventSuspend, touchwake.EventWake, touchwake.EventWakeDone, touchwake.EventResume,
	} {
		o.push(eventMsg(t, typ, touchwake.DefaultDelay))
	}

	msgs, dropped := o.drain()
	want := []string{"SUSPEND", "WAKE", "WAKE_DONE", "RESUME"}
	if got := drainedEvents(t, msgs); !equal(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
	if dropped != 0 {
		t.Errorf("dropped: got %d", dropped)
	}
	if o.len() != 0 {
		t.Errorf("outbox should be empty after drain, len %d", o.len())
	}
}

func TestOutboxDropsOldestEvents(t *testing.T) {
	o := newOutbox(3)
	for _, typ := range []touchwake.EventType{
		touchwake.EventPowerKeyPress, touchwake.EventPowerKeyRelease,
		touchwake.EventSuspend, touchwake.EventTouchOff, touchwake.EventResume,
	} {
		o.push(eventMsg(t, typ, touchwake.DefaultDelay))
	}

	msgs, dropped := o.drain()
	want := []string{"SUSPEND", "TOUCH_OFF", "RESUME"}
	if got := drainedEvents(t, msgs); !equal(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
	if dropped != 2 {
		t.Errorf("dropped: got %d, want 2", dropped)
	}

	// The counter resets with the drain.
	o.push(eventMsg(t, touchwake.EventSuspend, 0))
	if _, dropped := o.drain(); dropped != 0 {
		t.Errorf("dropped after reset: got %d", dropped)
	}
}

func TestOutboxCoalescesSnapshots(t *testing.T) {
	o := newOutbox(10)
	o.push(systemMsg(t, "STARTUP", true))
	o.push(systemMsg(t, "HEARTBEAT", false))
	o.push(eventMsg(t, touchwake.EventSuspend, touchwake.DefaultDelay))
	o.push(systemMsg(t, "HEARTBEAT", false))
	o.push(eventMsg(t, touchwake.EventResume, touchwake.DefaultDelay))
	o.push(systemMsg(t, "HEARTBEAT", false))

	msgs, _ := o.drain()
	// Only the newest heartbeat survives; the retained STARTUP is kept
	// because a heartbeat is not retained.
	want := []string{"STARTUP", "SUSPEND", "RESUME", "HEARTBEAT"}
	if got := drainedEvents(t, msgs); !equal(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
}

func TestOutboxRetainedSnapshotReplaced(t *testing.T) {
	o := newOutbox(10)
	o.push(systemMsg(t, "STARTUP", true))
	o.push(systemMsg(t, "SHUTDOWN", true))

	msgs, _ := o.drain()
	if got := drainedEvents(t, msgs); !equal(got, []string{"SHUTDOWN"}) {
		t.Errorf("drained %v, want [SHUTDOWN]", got)
	}
	if !msgs[0].retained || msgs[0].qos != 1 {
		t.Errorf("retain/qos lost: %+v", msgs[0])
	}
}

func TestOutboxSnapshotsDoNotCountAgainstCapacity(t *testing.T) {
	o := newOutbox(2)
	o.push(eventMsg(t, touchwake.EventSuspend, touchwake.DefaultDelay))
	o.push(systemMsg(t, "STARTUP", true))
	o.push(systemMsg(t, "HEARTBEAT", false))
	o.push(eventMsg(t, touchwake.EventTouchOff, touchwake.DefaultDelay))
	o.push(eventMsg(t, touchwake.EventResume, touchwake.DefaultDelay))

	msgs, dropped := o.drain()
	want := []string{"STARTUP", "HEARTBEAT", "TOUCH_OFF", "RESUME"}
	if got := drainedEvents(t, msgs); !equal(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
	if dropped != 1 {
		t.Errorf("dropped: got %d, want 1", dropped)
	}
}

func TestOutboxPreservesEventPayload(t *testing.T) {
	o := newOutbox(4)
	o.push(eventMsg(t, touchwake.EventSettings, 1500*time.Millisecond))

	msgs, _ := o.drain()
	var p Payload
	if err := json.Unmarshal(msgs[0].payload, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.TouchWake.DelayMs != 1500 || !p.TouchWake.Enabled {
		t.Errorf("payload changed in the outbox: %+v", p.TouchWake)
	}
	if msgs[0].topic != "tablet/events" || msgs[0].retained {
		t.Errorf("event routing: %+v", msgs[0])
	}
}
