package motion

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/torchd/internal/flash"
)

// Reader reads accelerometer samples.
type Reader interface {
	// Read returns the current acceleration in m/s².
	Read() (Sample, error)

	// Close releases sensor resources.
	Close() error
}

// Toggler is the flash controller operation the trigger invokes.
type Toggler interface {
	Toggle(ctx context.Context, src flash.Source) (bool, error)
}

// Trigger polls a Reader, runs samples through a Detector and toggles the
// torch on every shake.
type Trigger struct {
	reader   Reader
	detector *Detector
	torch    Toggler
	onShake  func()
	failing  bool
}

// NewTrigger wires a reader and detector to the torch. onShake, if non-nil,
// runs after every detected shake.
func NewTrigger(r Reader, d *Detector, t Toggler, onShake func()) *Trigger {
	return &Trigger{reader: r, detector: d, torch: t, onShake: onShake}
}

// Poll reads one sample and toggles the torch if it completes a shake.
// Returns true if the torch was toggled. Read errors are logged once per
// streak and otherwise ignored.
func (t *Trigger) Poll(ctx context.Context, now time.Time) bool {
	s, err := t.reader.Read()
	if err != nil {
		if !t.failing {
			log.Printf("motion: sensor read error: %v", err)
			t.failing = true
		}
		return false
	}
	if t.failing {
		log.Printf("motion: sensor recovered")
		t.failing = false
	}

	if !t.detector.Process(s, now) {
		return false
	}

	log.Printf("motion: shake detected (magnitude=%.1f)", s.Magnitude())
	if t.onShake != nil {
		t.onShake()
	}
	if _, err := t.torch.Toggle(ctx, flash.SourceShake); err != nil {
		return false
	}
	return true
}

// Detector returns the trigger's detector.
func (t *Trigger) Detector() *Detector {
	return t.detector
}

// Close closes the underlying reader.
func (t *Trigger) Close() error {
	return t.reader.Close()
}
