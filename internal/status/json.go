package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Mode          string     `json:"mode"`
	Enabled       bool       `json:"enabled"`
	Suspended     bool       `json:"suspended"`
	KeepAwake     bool       `json:"keep_awake"`
	TimedOut      bool       `json:"timed_out"`
	TouchDisabled bool       `json:"touch_disabled"`
	WakeInFlight  bool       `json:"wake_in_flight"`
	WakeLockHeld  bool       `json:"wake_lock_held"`
	TimerPending  bool       `json:"timer_pending"`
	DelayMs       int64      `json:"delay_ms"`
	LastEvent     string     `json:"last_event,omitempty"`
	LastEventTime string     `json:"last_event_time,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Suspends       int `json:"suspends"`
	Resumes        int `json:"resumes"`
	TouchOffs      int `json:"touch_offs"`
	Wakes          int `json:"wakes"`
	DroppedTouches int `json:"dropped_touches"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPAddr       string `json:"http_addr"`
	TouchDevice    string `json:"touch_device,omitempty"`
	PowerKeyDevice string `json:"powerkey_device,omitempty"`
	Digitizer      string `json:"digitizer"`
	WakeLock       string `json:"wakelock"`
	SuspendSource  string `json:"suspend_source"`
}

func buildInner(snap Snapshot) StatusInner {
	s := snap.State
	inner := StatusInner{
		Mode:          string(s.Mode()),
		Enabled:       s.Enabled,
		Suspended:     s.Suspended,
		KeepAwake:     s.KeepAwake,
		TimedOut:      s.TimedOut,
		TouchDisabled: s.TouchDisabled,
		WakeInFlight:  s.WakeInFlight,
		WakeLockHeld:  s.WakeLockHeld,
		TimerPending:  s.TimerPending,
		DelayMs:       s.Delay.Milliseconds(),
		LastEvent:     string(snap.LastEvent),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Suspends:       s.Counts.Suspends,
			Resumes:        s.Counts.Resumes,
			TouchOffs:      s.Counts.TouchOffs,
			Wakes:          s.Counts.Wakes,
			DroppedTouches: s.Counts.DroppedTouches,
		},
		Config: ConfigJSON{
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			TouchDevice:    snap.Config.TouchDevice,
			PowerKeyDevice: snap.Config.PowerKeyDevice,
			Digitizer:      snap.Config.Digitizer,
			WakeLock:       snap.Config.WakeLock,
			SuspendSource:  snap.Config.SuspendSource,
		},
	}
	if !snap.LastEventTime.IsZero() {
		inner.LastEventTime = snap.LastEventTime.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
