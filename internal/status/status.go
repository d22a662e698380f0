// Package status provides a thread-safe status tracker for the torchd daemon.
// It is read by HTTP handlers, the terminal UI and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Platform        string
	StrobeMs        int64
	ShakeThreshold  float64
	ShakeCooldownMs int64
	ShakeMode       string
	SensorPollMs    int64 // 0 = shake detection disabled
	HeartbeatMs     int64
	Broker          string
	HTTPPort        string
	WSBroker        string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Counts aggregates activity counters from every component.
type Counts struct {
	Torch    flash.Counts
	Patterns pattern.Counts
	Shakes   int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value copy, safe to use after the lock is released.
type Snapshot struct {
	FlashOn       bool
	Strobing      bool
	SOSActive     bool
	TimerDeadline time.Time // zero when no timer is pending
	DeviceID      string
	HasDevice     bool
	LastChange    flash.Change
	LastNotice    *flash.Notice
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// TimerRemaining returns the time left on the pending timer, or 0.
func (s Snapshot) TimerRemaining() time.Duration {
	if s.TimerDeadline.IsZero() || !s.TimerDeadline.After(s.Now) {
		return 0
	}
	return s.TimerDeadline.Sub(s.Now)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// SetDevice records the flash device chosen at startup.
func (t *Tracker) SetDevice(id string, ok bool) {
	t.mu.Lock()
	t.snap.DeviceID = id
	t.snap.HasDevice = ok
	t.mu.Unlock()
}

// TorchChanged records a torch transition.
func (t *Tracker) TorchChanged(c flash.Change) {
	t.mu.Lock()
	t.snap.FlashOn = c.On
	t.snap.LastChange = c
	t.mu.Unlock()
}

// PatternChanged records a pattern starting or ending.
func (t *Tracker) PatternChanged(c pattern.Change) {
	t.mu.Lock()
	switch c.Kind {
	case pattern.KindStrobe:
		t.snap.Strobing = c.Active
	case pattern.KindSOS:
		t.snap.SOSActive = c.Active
	case pattern.KindTimer:
		if c.Active {
			t.snap.TimerDeadline = c.Deadline
		} else {
			t.snap.TimerDeadline = time.Time{}
		}
	}
	t.mu.Unlock()
}

// Notify records the most recent notice.
func (t *Tracker) Notify(n flash.Notice) {
	t.mu.Lock()
	t.snap.LastNotice = &n
	t.mu.Unlock()
}

// UpdateCounts replaces the torch and pattern counters.
func (t *Tracker) UpdateCounts(torch flash.Counts, patterns pattern.Counts) {
	t.mu.Lock()
	t.snap.Counts.Torch = torch
	t.snap.Counts.Patterns = patterns
	t.mu.Unlock()
}

// ShakeDetected counts a shake.
func (t *Tracker) ShakeDetected() {
	t.mu.Lock()
	t.snap.Counts.Shakes++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
