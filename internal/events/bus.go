package events

import (
	"time"

	"github.com/kelindar/event"

	"github.com/sweeney/torchd/internal/flash"
	"github.com/sweeney/torchd/internal/pattern"
)

// Bus wraps a kelindar/event dispatcher. It satisfies flash.Notifier,
// flash.Observer and pattern.Observer so the controller and scheduler can
// publish without knowing who listens.
//
// Delivery is asynchronous and ordered per subscriber.
type Bus struct {
	dispatcher *event.Dispatcher
	now        func() time.Time
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
		now:        time.Now,
	}
}

// Publish publishes an event to all subscribers of its type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case TorchEvent:
		event.Publish(b.dispatcher, e)
	case NoticeEvent:
		event.Publish(b.dispatcher, e)
	case PatternEvent:
		event.Publish(b.dispatcher, e)
	case ShakeEvent:
		event.Publish(b.dispatcher, e)
	}
}

// OnTorch subscribes to torch transitions. Returns an unsubscribe function.
func (b *Bus) OnTorch(h func(TorchEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnNotice subscribes to notices.
func (b *Bus) OnNotice(h func(NoticeEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnPattern subscribes to pattern changes.
func (b *Bus) OnPattern(h func(PatternEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// OnShake subscribes to shake detections.
func (b *Bus) OnShake(h func(ShakeEvent)) func() {
	return event.Subscribe(b.dispatcher, h)
}

// TorchChanged implements flash.Observer.
func (b *Bus) TorchChanged(c flash.Change) {
	b.Publish(TorchEvent{Change: c})
}

// Notify implements flash.Notifier.
func (b *Bus) Notify(n flash.Notice) {
	b.Publish(NoticeEvent{Notice: n})
}

// PatternChanged implements pattern.Observer.
func (b *Bus) PatternChanged(c pattern.Change) {
	b.Publish(PatternEvent{Change: c})
}

// Shake publishes a ShakeEvent stamped with the current time. Suitable as
// the onShake callback of motion.NewTrigger.
func (b *Bus) Shake() {
	b.Publish(ShakeEvent{Time: b.now()})
}
