package torch

import (
	"fmt"
	"sync"
)

// Call records a single SetTorchMode invocation.
type Call struct {
	ID DeviceID
	On bool
}

// FakePlatform is a test double that records torch mode changes.
// Safe for concurrent use.
type FakePlatform struct {
	mu sync.Mutex

	// IDs is the device list returned by Devices.
	IDs []DeviceID

	// Flash marks which devices report HasFlash.
	Flash map[DeviceID]bool

	// DevicesError, if set, will be returned by Devices.
	DevicesError error

	// SetError, if set, will be returned by SetTorchMode.
	SetError error

	calls  []Call
	state  map[DeviceID]bool
	closed bool
}

// NewFakePlatform creates a FakePlatform with one flash-capable device per id.
func NewFakePlatform(ids ...DeviceID) *FakePlatform {
	f := &FakePlatform{
		IDs:   ids,
		Flash: make(map[DeviceID]bool),
		state: make(map[DeviceID]bool),
	}
	for _, id := range ids {
		f.Flash[id] = true
	}
	return f
}

// Devices returns the configured ids.
func (f *FakePlatform) Devices() ([]DeviceID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DevicesError != nil {
		return nil, f.DevicesError
	}
	return append([]DeviceID(nil), f.IDs...), nil
}

// HasFlash reports the configured flash capability.
func (f *FakePlatform) HasFlash(id DeviceID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Flash[id]
}

// SetTorchMode records the call and the resulting state.
func (f *FakePlatform) SetTorchMode(id DeviceID, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	if !f.Flash[id] {
		return fmt.Errorf("device %q has no flash", id)
	}
	f.calls = append(f.calls, Call{ID: id, On: on})
	f.state[id] = on
	return nil
}

// Close marks the platform as closed.
func (f *FakePlatform) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// SetFailure sets or clears the error returned by SetTorchMode.
func (f *FakePlatform) SetFailure(err error) {
	f.mu.Lock()
	f.SetError = err
	f.mu.Unlock()
}

// Calls returns a copy of the recorded SetTorchMode calls.
func (f *FakePlatform) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Lit reports the last state written to the device.
func (f *FakePlatform) Lit(id DeviceID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[id]
}

// Closed reports whether Close was called.
func (f *FakePlatform) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded calls and state.
func (f *FakePlatform) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.state = make(map[DeviceID]bool)
	f.closed = false
	f.SetError = nil
	f.mu.Unlock()
}
