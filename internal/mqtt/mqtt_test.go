package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

func TestFormatPayload(t *testing.T) {
	c := flash.Change{
		On:     true,
		Source: flash.SourceShake,
		Time:   time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
	}

	payload, err := FormatPayload(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Torch.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Torch.Timestamp)
	}
	if parsed.Torch.Event != "TORCH_ON" {
		t.Errorf("unexpected event: %s", parsed.Torch.Event)
	}
	if parsed.Torch.Source != "shake" {
		t.Errorf("unexpected source: %s", parsed.Torch.Source)
	}
	if parsed.Torch.State != "ON" {
		t.Errorf("unexpected state: %s", parsed.Torch.State)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	c := flash.Change{
		On:     false,
		Source: flash.SourceTimer,
		Time:   time.Date(2026, 2, 2, 22, 18, 17, 0, time.UTC),
	}

	payload, err := FormatPayload(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"torch":{"timestamp":"2026-02-02T22:18:17Z","event":"TORCH_OFF","source":"timer","state":"OFF"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadAllSources(t *testing.T) {
	sources := []flash.Source{
		flash.SourceManual, flash.SourceStrobe, flash.SourceSOS,
		flash.SourceTimer, flash.SourceShake, flash.SourceShutdown,
	}
	for _, src := range sources {
		t.Run(string(src), func(t *testing.T) {
			payload, err := FormatPayload(flash.Change{On: true, Source: src, Time: time.Now()})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var parsed Payload
			json.Unmarshal(payload, &parsed)
			if parsed.Torch.Source != string(src) {
				t.Errorf("source: got %q, want %q", parsed.Torch.Source, src)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	c := flash.Change{On: true, Time: time.Date(2026, 2, 3, 12, 0, 0, 0, loc)}

	payload, _ := FormatPayload(c)

	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Torch.Timestamp != "2026-02-03T10:00:00Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Torch.Timestamp)
	}
}

func TestFormatPatternPayload(t *testing.T) {
	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	payload, err := FormatPatternPayload(pattern.Change{Kind: pattern.KindSOS, Active: true, Time: at})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := `{"pattern":{"timestamp":"2026-02-03T10:00:00Z","kind":"sos","active":true}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPatternPayloadTimerDeadline(t *testing.T) {
	at := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	payload, _ := FormatPatternPayload(pattern.Change{
		Kind:     pattern.KindTimer,
		Active:   true,
		Deadline: at.Add(5 * time.Second),
		Time:     at,
	})

	var parsed PatternPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Pattern.Deadline != "2026-02-03T10:00:05Z" {
		t.Errorf("deadline: got %q", parsed.Pattern.Deadline)
	}
}

func TestTopics(t *testing.T) {
	topics := map[string]string{
		TopicState:   "torchd/torch/state",
		TopicPattern: "torchd/torch/pattern",
		TopicSystem:  "torchd/torch/system",
		TopicCommand: "torchd/torch/command",
	}
	for got, want := range topics {
		if got != want {
			t.Errorf("unexpected topic: got %s, want %s", got, want)
		}
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadReconnected(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestNoticeEvent(t *testing.T) {
	at := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	ev := NoticeEvent(flash.Notice{Message: flash.NoticeAccessFailed, Err: errors.New("EBUSY"), Time: at})

	payload, _ := FormatSystemPayload(ev)
	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"NOTICE","reason":"EBUSY","message":"Failed to access flashlight"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestNoticeEventNoError(t *testing.T) {
	ev := NoticeEvent(flash.Notice{Message: flash.NoticeNoFlash, Time: time.Now()})
	if ev.Reason != "" {
		t.Errorf("reason: got %q, want empty", ev.Reason)
	}
	if ev.Message != flash.NoticeNoFlash {
		t.Errorf("message: got %q", ev.Message)
	}
}

func TestDiscard(t *testing.T) {
	var p Publisher = Discard{}
	if err := p.Publish(flash.Change{On: true}); err != nil {
		t.Errorf("Publish: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Errorf("PublishSystem: %v", err)
	}
	if (Discard{}).IsConnected() {
		t.Error("Discard should never report connected")
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	c := flash.Change{On: true, Source: flash.SourceManual, Time: time.Now()}
	if err := f.Publish(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Changes()) != 1 {
		t.Fatalf("expected 1 change, got %d", len(f.Changes()))
	}
	if len(f.Payloads()) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads()))
	}
	if f.Changes()[0] != c {
		t.Error("change mismatch")
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("test error")

	if err := f.Publish(flash.Change{}); err == nil {
		t.Error("expected error")
	}
	if err := f.PublishPattern(pattern.Change{}); err == nil {
		t.Error("expected error")
	}
	if len(f.Changes()) != 0 || len(f.Patterns()) != 0 {
		t.Error("nothing should be recorded on error")
	}
}

func TestFakePublisherRecordsRetainedFlag(t *testing.T) {
	f := NewFakePublisher()

	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true})
	f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "HEARTBEAT"})

	events := f.SystemEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 system events, got %d", len(events))
	}
	if !events[0].Retained {
		t.Error("first event should have Retained=true")
	}
	if events[1].Retained {
		t.Error("second event should have Retained=false")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(flash.Change{})
	f.PublishPattern(pattern.Change{})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Changes()) != 0 || len(f.Patterns()) != 0 || len(f.SystemEvents()) != 0 {
		t.Error("expected empty recordings after reset")
	}
	if f.Closed() {
		t.Error("expected Closed=false after reset")
	}
	if f.IsConnected() {
		t.Error("expected Connected=false after reset")
	}
}
