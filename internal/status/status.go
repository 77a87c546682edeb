// Package status provides a thread-safe status tracker for the touchwake daemon.
// It is read by the HTTP handlers and the heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/touchwake/internal/touchwake"
)

// Config contains daemon configuration for display.
type Config struct {
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
	TouchDevice    string
	PowerKeyDevice string
	Digitizer      string
	WakeLock       string
	SuspendSource  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         touchwake.State
	LastEvent     touchwake.EventType
	LastEventTime time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record stores the state carried by a controller event.
func (t *Tracker) Record(ev touchwake.Event) {
	t.mu.Lock()
	t.snap.State = ev.State
	t.snap.LastEvent = ev.Type
	t.snap.LastEventTime = ev.Time
	t.mu.Unlock()
}

// SetState stores a controller state without changing the last event.
// Called from runLoop on every heartbeat.
func (t *Tracker) SetState(s touchwake.State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
