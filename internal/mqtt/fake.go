package mqtt

import (
	"sync"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

// FakePublisher records published events for test assertions.
// Safe for concurrent use; bus subscribers publish from their own goroutines.
type FakePublisher struct {
	mu sync.Mutex

	changes        []flash.Change
	payloads       [][]byte
	patterns       []pattern.Change
	systemEvents   []SystemEvent
	systemPayloads [][]byte
	closed         bool

	// PublishError, if set, will be returned by Publish and PublishPattern.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the torch transition.
func (f *FakePublisher) Publish(c flash.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(c)
	if err != nil {
		return err
	}
	f.changes = append(f.changes, c)
	f.payloads = append(f.payloads, payload)
	return nil
}

// PublishPattern records the pattern change.
func (f *FakePublisher) PublishPattern(c pattern.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.patterns = append(f.patterns, c)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.systemEvents = append(f.systemEvents, event)
	f.systemPayloads = append(f.systemPayloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Changes returns a copy of the recorded torch transitions.
func (f *FakePublisher) Changes() []flash.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]flash.Change(nil), f.changes...)
}

// Payloads returns a copy of the recorded torch payloads.
func (f *FakePublisher) Payloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.payloads...)
}

// Patterns returns a copy of the recorded pattern changes.
func (f *FakePublisher) Patterns() []pattern.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pattern.Change(nil), f.patterns...)
}

// SystemEvents returns a copy of the recorded system events.
func (f *FakePublisher) SystemEvents() []SystemEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SystemEvent(nil), f.systemEvents...)
}

// SystemPayloads returns a copy of the recorded system payloads.
func (f *FakePublisher) SystemPayloads() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.systemPayloads...)
}

// Closed reports whether Close was called.
func (f *FakePublisher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = nil
	f.payloads = nil
	f.patterns = nil
	f.systemEvents = nil
	f.systemPayloads = nil
	f.closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
