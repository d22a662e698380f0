// Package motion turns accelerometer samples into shake triggers.
package motion

import (
	"fmt"
	"time"
)

// Detector tracks threshold crossings across successive samples.
type Detector struct {
	threshold float64
	cooldown  time.Duration
	mode      Mode

	above       bool
	fired       bool
	lastTrigger time.Time
	counts      Counts
}

// NewDetector creates a shake detector. A zero cooldown disables it.
func NewDetector(threshold float64, cooldown time.Duration, mode Mode) *Detector {
	if mode == "" {
		mode = ModeEdge
	}
	return &Detector{
		threshold: threshold,
		cooldown:  cooldown,
		mode:      mode,
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeEdge, ModeLevel:
		return Mode(s), nil
	case "":
		return ModeEdge, nil
	}
	return "", fmt.Errorf("unknown shake mode %q (want edge or level)", s)
}

// Process takes a new sample and reports whether it should toggle the torch.
func (d *Detector) Process(s Sample, now time.Time) bool {
	d.counts.Samples++

	over := s.Magnitude() > d.threshold
	wasAbove := d.above
	d.above = over

	if !over {
		return false
	}
	if d.mode == ModeEdge && wasAbove {
		// Still the same shake
		return false
	}
	if d.cooldown > 0 && d.fired && now.Sub(d.lastTrigger) < d.cooldown {
		d.counts.Suppressed++
		return false
	}

	d.fired = true
	d.lastTrigger = now
	d.counts.Shakes++
	return true
}

// Above reports whether the last sample exceeded the threshold.
func (d *Detector) Above() bool {
	return d.above
}

// Counts returns a copy of the detector counters.
func (d *Detector) Counts() Counts {
	return d.counts
}

// Threshold returns the configured threshold.
func (d *Detector) Threshold() float64 {
	return d.threshold
}
