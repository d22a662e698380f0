package motion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIORoot is where the Linux industrial I/O subsystem lists devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

// IIOReader reads an accelerometer through its IIO sysfs attributes:
// in_accel_{x,y,z}_raw scaled by in_accel_scale (or per-axis scales).
type IIOReader struct {
	dir   string
	scale [3]float64
}

var axes = [3]string{"x", "y", "z"}

// FindIIOAccel returns the first IIO device under root exposing raw
// acceleration for all three axes.
func FindIIOAccel(root string) (string, error) {
	if root == "" {
		root = DefaultIIORoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("read iio devices: %w", err)
	}
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		if hasAccel(dir) {
			return dir, nil
		}
	}
	return "", errors.New("no iio accelerometer found")
}

func hasAccel(dir string) bool {
	for _, a := range axes {
		if _, err := os.Stat(filepath.Join(dir, "in_accel_"+a+"_raw")); err != nil {
			return false
		}
	}
	return true
}

// NewIIOReader opens the accelerometer at dir and reads its scale once.
func NewIIOReader(dir string) (*IIOReader, error) {
	if !hasAccel(dir) {
		return nil, fmt.Errorf("%s: no in_accel_{x,y,z}_raw attributes", dir)
	}
	r := &IIOReader{dir: dir}

	shared, sharedErr := readFloat(filepath.Join(dir, "in_accel_scale"))
	for i, a := range axes {
		s, err := readFloat(filepath.Join(dir, "in_accel_"+a+"_scale"))
		switch {
		case err == nil:
			r.scale[i] = s
		case sharedErr == nil:
			r.scale[i] = shared
		default:
			r.scale[i] = 1
		}
	}
	return r, nil
}

// Read returns the current acceleration in m/s².
func (r *IIOReader) Read() (Sample, error) {
	var v [3]float64
	for i, a := range axes {
		raw, err := readFloat(filepath.Join(r.dir, "in_accel_"+a+"_raw"))
		if err != nil {
			return Sample{}, fmt.Errorf("read %s axis: %w", a, err)
		}
		v[i] = raw * r.scale[i]
	}
	return Sample{X: v[0], Y: v[1], Z: v[2]}, nil
}

// Close is a no-op; sysfs attributes are opened per read.
func (r *IIOReader) Close() error {
	return nil
}

func readFloat(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return f, nil
}
