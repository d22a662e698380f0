package pattern

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/torchd/internal/flash"
)

// DefaultStrobeInterval is the time between strobe toggles.
const DefaultStrobeInterval = 300 * time.Millisecond

// SOSGap is the dark interval after every SOS element.
const SOSGap = 200 * time.Millisecond

// SOSPattern holds the on-durations of the SOS sequence, one per element.
var SOSPattern = []time.Duration{
	200 * time.Millisecond, 200 * time.Millisecond, 200 * time.Millisecond,
	600 * time.Millisecond, 200 * time.Millisecond, 600 * time.Millisecond,
	200 * time.Millisecond, 200 * time.Millisecond, 200 * time.Millisecond,
}

// TimerPresets are the auto-off durations offered by the user interfaces.
var TimerPresets = []time.Duration{5 * time.Second, 10 * time.Second, 30 * time.Second}

// ErrInvalidDuration is returned for non-positive timer durations.
var ErrInvalidDuration = errors.New("pattern: duration must be positive")

// Kind names a scheduled pattern.
type Kind string

const (
	KindStrobe Kind = "strobe"
	KindSOS    Kind = "sos"
	KindTimer  Kind = "timer"
)

// Change reports a pattern starting or ending.
type Change struct {
	Kind     Kind
	Active   bool
	Deadline time.Time // timer only, zero otherwise
	Time     time.Time
}

// Observer receives pattern changes.
type Observer interface {
	PatternChanged(c Change)
}

// Torch is the part of the flash controller the scheduler drives.
type Torch interface {
	Set(ctx context.Context, on bool, src flash.Source) error
	Toggle(ctx context.Context, src flash.Source) (bool, error)
	State() bool
}

// Counts tracks pattern runs since startup.
type Counts struct {
	StrobeRuns  int
	SOSRuns     int
	TimersFired int
}

func sourceFor(k Kind) flash.Source {
	switch k {
	case KindStrobe:
		return flash.SourceStrobe
	case KindSOS:
		return flash.SourceSOS
	default:
		return flash.SourceTimer
	}
}
