// Package mqtt publishes controller transitions and accepts remote commands
// over MQTT, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/touchwake/internal/touchwake"
)

var log = logrus.WithField("component", "mqtt")

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "touchwake"

// Topics holds the topic names derived from a prefix.
type Topics struct {
	Events    string // controller transitions
	System    string // daemon lifecycle
	Power     string // inbound suspend/resume commands
	SetPrefix string // inbound attribute writes: SetPrefix + "<attr>"
}

// NewTopics derives the topic set for prefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:    prefix + "/events",
		System:    prefix + "/system",
		Power:     prefix + "/cmd/power",
		SetPrefix: prefix + "/set/",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event touchwake.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	TouchWake EventPayload `json:"touchwake"`
}

// EventPayload contains the transition details.
type EventPayload struct {
	Timestamp    string `json:"timestamp"`
	Event        string `json:"event"`
	Mode         string `json:"mode"`
	Enabled      bool   `json:"enabled"`
	Suspended    bool   `json:"suspended"`
	KeepAwake    bool   `json:"keep_awake"`
	TimedOut     bool   `json:"timed_out"`
	DelayMs      int64  `json:"delay_ms"`
	WakeInFlight bool   `json:"wake_in_flight"`
}

// FormatPayload creates the JSON payload for a controller transition.
func FormatPayload(event touchwake.Event) ([]byte, error) {
	s := event.State
	payload := Payload{
		TouchWake: EventPayload{
			Timestamp:    event.Time.UTC().Format(time.RFC3339),
			Event:        string(event.Type),
			Mode:         string(s.Mode()),
			Enabled:      s.Enabled,
			Suspended:    s.Suspended,
			KeepAwake:    s.KeepAwake,
			TimedOut:     s.TimedOut,
			DelayMs:      s.Delay.Milliseconds(),
			WakeInFlight: s.WakeInFlight,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// CommandHandler applies inbound commands. *touchwake.Controller implements it.
type CommandHandler interface {
	Suspend()
	Resume()
	WriteAttr(name, text string) error
}

// ErrUnknownCommand is returned for a message that matches no command.
var ErrUnknownCommand = errors.New("mqtt: unknown command")

// HandleCommand dispatches one inbound message. The power topic accepts
// "suspend" or "resume"; set topics pass the payload to WriteAttr unchanged.
func HandleCommand(topics Topics, topic string, payload []byte, h CommandHandler) error {
	switch {
	case topic == topics.Power:
		switch strings.ToLower(strings.TrimSpace(string(payload))) {
		case "suspend":
			h.Suspend()
		case "resume":
			h.Resume()
		default:
			return fmt.Errorf("%w: power %q", ErrUnknownCommand, payload)
		}
		return nil
	case strings.HasPrefix(topic, topics.SetPrefix):
		attr := strings.TrimPrefix(topic, topics.SetPrefix)
		if err := h.WriteAttr(attr, string(payload)); err != nil {
			return fmt.Errorf("set %s: %w", attr, err)
		}
		return nil
	}
	return fmt.Errorf("%w: topic %s", ErrUnknownCommand, topic)
}

// Discard is the Publisher used when no broker is configured.
type Discard struct{}

func (Discard) Publish(touchwake.Event) error   { return nil }
func (Discard) PublishSystem(SystemEvent) error { return nil }
func (Discard) Close() error                    { return nil }
func (Discard) IsConnected() bool               { return false }
