// Package mqtt publishes torch events to an MQTT broker and accepts remote
// commands, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

// TopicState is the MQTT topic for torch on/off transitions.
const TopicState = "torchd/torch/state"

// TopicPattern is the MQTT topic for strobe, SOS and timer changes.
const TopicPattern = "torchd/torch/pattern"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "torchd/torch/system"

// TopicCommand is the MQTT topic the daemon subscribes to for commands.
const TopicCommand = "torchd/torch/command"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a torch transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(c flash.Change) error

	// PublishPattern sends a pattern start or end to the broker.
	PublishPattern(c pattern.Change) error

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
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "NOTICE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Message    string // notice text (NOTICE only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a torch transition.
type Payload struct {
	Torch TorchPayload `json:"torch"`
}

// TorchPayload contains the torch transition details.
type TorchPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source"`
	State     string `json:"state"`
}

// EventName returns TORCH_ON or TORCH_OFF.
func EventName(on bool) string {
	if on {
		return "TORCH_ON"
	}
	return "TORCH_OFF"
}

// FormatPayload creates the JSON payload for a torch transition.
func FormatPayload(c flash.Change) ([]byte, error) {
	state := "OFF"
	if c.On {
		state = "ON"
	}
	payload := Payload{
		Torch: TorchPayload{
			Timestamp: c.Time.UTC().Format(time.RFC3339),
			Event:     EventName(c.On),
			Source:    string(c.Source),
			State:     state,
		},
	}
	return json.Marshal(payload)
}

// PatternPayload represents the MQTT message payload for a pattern change.
type PatternPayload struct {
	Pattern PatternPayloadInner `json:"pattern"`
}

// PatternPayloadInner contains the pattern change details.
type PatternPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Kind      string `json:"kind"`
	Active    bool   `json:"active"`
	Deadline  string `json:"deadline,omitempty"`
}

// FormatPatternPayload creates the JSON payload for a pattern change.
func FormatPatternPayload(c pattern.Change) ([]byte, error) {
	inner := PatternPayloadInner{
		Timestamp: c.Time.UTC().Format(time.RFC3339),
		Kind:      string(c.Kind),
		Active:    c.Active,
	}
	if !c.Deadline.IsZero() {
		inner.Deadline = c.Deadline.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(PatternPayload{Pattern: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED, NOTICE) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
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
			Message:   event.Message,
		},
	}
	return json.Marshal(payload)
}

// NoticeEvent converts a flash notice into a NOTICE system event.
func NoticeEvent(n flash.Notice) SystemEvent {
	ev := SystemEvent{
		Timestamp: n.Time,
		Event:     "NOTICE",
		Message:   n.Message,
	}
	if n.Err != nil {
		ev.Reason = n.Err.Error()
	}
	return ev
}

// Discard is a Publisher that drops everything. Used when no broker is set.
type Discard struct{}

func (Discard) Publish(flash.Change) error          { return nil }
func (Discard) PublishPattern(pattern.Change) error { return nil }
func (Discard) PublishSystem(SystemEvent) error     { return nil }
func (Discard) Close() error                        { return nil }
func (Discard) IsConnected() bool                   { return false }
