package torch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultLEDRoot is the Linux LED class directory.
const DefaultLEDRoot = "/sys/class/leds"

// SysfsPlatform drives LED class devices (e.g. "white:flash") through their
// brightness attribute. Flash capability is inferred from the device name or
// the presence of a flash_brightness attribute (LED flash class devices).
type SysfsPlatform struct {
	root string
}

// NewSysfsPlatform creates a platform rooted at the given LED class directory.
// An empty root uses DefaultLEDRoot.
func NewSysfsPlatform(root string) *SysfsPlatform {
	if root == "" {
		root = DefaultLEDRoot
	}
	return &SysfsPlatform{root: root}
}

// Devices lists LED class devices in name order.
func (s *SysfsPlatform) Devices() ([]DeviceID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read led class: %w", err)
	}
	ids := make([]DeviceID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, DeviceID(e.Name()))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HasFlash reports whether the device looks like a flash or torch LED.
func (s *SysfsPlatform) HasFlash(id DeviceID) bool {
	name := strings.ToLower(string(id))
	if strings.Contains(name, "flash") || strings.Contains(name, "torch") {
		return true
	}
	_, err := os.Stat(filepath.Join(s.root, string(id), "flash_brightness"))
	return err == nil
}

// SetTorchMode writes max_brightness (or 1) for on and 0 for off.
func (s *SysfsPlatform) SetTorchMode(id DeviceID, on bool) error {
	dir := filepath.Join(s.root, string(id))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("led %q not found at %s", id, dir)
	}

	value := "0"
	if on {
		value = s.maxBrightness(dir)
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(value), 0644); err != nil {
		return fmt.Errorf("set led brightness: %w", err)
	}
	return nil
}

func (s *SysfsPlatform) maxBrightness(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return "1"
	}
	v := strings.TrimSpace(string(data))
	if v == "" || v == "0" {
		return "1"
	}
	return v
}

// Close is a no-op; LED class devices need no release. Callers turn the
// torch off before closing.
func (s *SysfsPlatform) Close() error {
	return nil
}
