package motion

import "errors"

// Resting is a device lying still: gravity on Z and nothing else.
var Resting = Sample{Z: 9.81}

// errNoSamples is returned by a FakeReader with an empty script.
var errNoSamples = errors.New("motion: fake reader has no samples")

// FakeReader is a scripted accelerometer. Each Read consumes the next
// sample; once the script runs out the device holds its last reading, the
// way a real sensor keeps reporting wherever it was left.
type FakeReader struct {
	Samples []Sample

	// ReadError, if set, fails every Read without consuming a sample.
	ReadError error

	Closed bool

	pos   int
	reads int
}

// NewFakeReader creates a FakeReader playing samples in order.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
func (f *FakeReader) Read() (Sample, error) {
	f.reads++
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}
	if len(f.Samples) == 0 {
		return Sample{}, errNoSamples
	}

	s := f.Samples[f.pos]
	if f.pos < len(f.Samples)-1 {
		f.pos++
	}
	return s, nil
}

// Append extends the script.
func (f *FakeReader) Append(samples ...Sample) {
	f.Samples = append(f.Samples, samples...)
}

// Reads reports how many times Read was called, failed reads included.
func (f *FakeReader) Reads() int {
	return f.reads
}

// Close marks the sensor released.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset replays the script from the start.
func (f *FakeReader) Reset() {
	f.pos = 0
	f.reads = 0
}
