//go:build linux

package torch

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOPlatform drives a torch LED wired to a single GPIO output line.
type GPIOPlatform struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	id   DeviceID
}

// NewGPIOPlatform requests the given line as an output, initially off.
// With activeLow set, a logical ON drives the line low.
func NewGPIOPlatform(chipName string, pin int, activeLow bool) (*GPIOPlatform, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0), gpiocdev.WithConsumer("torchd")}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := chip.RequestLine(pin, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request torch pin %d: %w", pin, err)
	}

	return &GPIOPlatform{
		chip: chip,
		line: line,
		id:   DeviceID(fmt.Sprintf("%s:%d", chipName, pin)),
	}, nil
}

// Devices returns the single configured line.
func (p *GPIOPlatform) Devices() ([]DeviceID, error) {
	return []DeviceID{p.id}, nil
}

// HasFlash reports true for the configured line only.
func (p *GPIOPlatform) HasFlash(id DeviceID) bool {
	return id == p.id
}

// SetTorchMode drives the line to the logical state.
func (p *GPIOPlatform) SetTorchMode(id DeviceID, on bool) error {
	if id != p.id {
		return fmt.Errorf("unknown device %q", id)
	}
	v := 0
	if on {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("set torch pin: %w", err)
	}
	return nil
}

// Close turns the torch off and releases GPIO resources.
// The line is reconfigured to input with pull-down (Pi boot default) so the
// LED driver is not left powered across a reboot.
func (p *GPIOPlatform) Close() error {
	var errs []error

	if p.line != nil {
		if err := p.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear torch pin: %w", err))
		}
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure torch pin: %w", err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close torch pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
