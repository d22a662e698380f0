// Package torch provides flash LED control with hardware abstraction.
// The real implementations drive a GPIO output line through the Linux GPIO
// character device, or a LED class device under /sys/class/leds.
// The fake implementation allows testing without hardware.
package torch

import (
	"errors"
	"fmt"
)

// DeviceID identifies a light-emitting device on the platform.
type DeviceID string

// Platform enumerates light-emitting devices and switches their torch mode.
type Platform interface {
	// Devices lists every device the platform knows about, flash-capable or not.
	Devices() ([]DeviceID, error)

	// HasFlash reports whether the device can be driven as a torch.
	HasFlash(id DeviceID) bool

	// SetTorchMode turns the torch on the given device on or off.
	SetTorchMode(id DeviceID, on bool) error

	// Close releases hardware resources. The torch is left off.
	Close() error
}

// Default GPIO line (BCM numbering on a Raspberry Pi header).
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 17
)

// ErrNoFlash is returned by FindFlash when no flash-capable device exists.
var ErrNoFlash = errors.New("torch: no flash-capable device")

// FindFlash returns the first flash-capable device reported by the platform.
func FindFlash(p Platform) (DeviceID, error) {
	ids, err := p.Devices()
	if err != nil {
		return "", fmt.Errorf("list devices: %w", err)
	}
	for _, id := range ids {
		if p.HasFlash(id) {
			return id, nil
		}
	}
	return "", ErrNoFlash
}
