// Package events fans torch, pattern and notice events out to subscribers.
package events

import (
	"time"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

// Event type constants for kelindar/event.
const (
	TypeTorch uint32 = iota + 1
	TypeNotice
	TypePattern
	TypeShake
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TorchEvent is published on every torch state transition.
type TorchEvent struct {
	flash.Change
}

// Type returns the event type identifier for TorchEvent.
func (e TorchEvent) Type() uint32 { return TypeTorch }

// NoticeEvent carries a user-visible notice.
type NoticeEvent struct {
	flash.Notice
}

// Type returns the event type identifier for NoticeEvent.
func (e NoticeEvent) Type() uint32 { return TypeNotice }

// PatternEvent is published when a strobe, SOS or timer starts or ends.
type PatternEvent struct {
	pattern.Change
}

// Type returns the event type identifier for PatternEvent.
func (e PatternEvent) Type() uint32 { return TypePattern }

// ShakeEvent is published for every detected shake.
type ShakeEvent struct {
	Time time.Time
}

// Type returns the event type identifier for ShakeEvent.
func (e ShakeEvent) Type() uint32 { return TypeShake }
