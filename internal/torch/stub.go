//go:build !linux

package torch

import "errors"

// GPIOPlatform is not available on non-Linux platforms.
type GPIOPlatform struct{}

// NewGPIOPlatform returns an error on non-Linux platforms.
func NewGPIOPlatform(chipName string, pin int, activeLow bool) (*GPIOPlatform, error) {
	return nil, errors.New("torch: gpio not supported on this platform (requires Linux)")
}

// Devices is not implemented on non-Linux platforms.
func (p *GPIOPlatform) Devices() ([]DeviceID, error) {
	return nil, errors.New("torch: gpio not supported")
}

// HasFlash always reports false.
func (p *GPIOPlatform) HasFlash(id DeviceID) bool {
	return false
}

// SetTorchMode is not implemented on non-Linux platforms.
func (p *GPIOPlatform) SetTorchMode(id DeviceID, on bool) error {
	return errors.New("torch: gpio not supported")
}

// Close is a no-op on non-Linux platforms.
func (p *GPIOPlatform) Close() error {
	return nil
}
