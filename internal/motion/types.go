package motion

import "math"

// DefaultThreshold is the shake magnitude, in m/s², that must be exceeded.
const DefaultThreshold = 12.0

// Mode selects how samples above the threshold trigger.
type Mode string

const (
	// ModeEdge triggers once per crossing from at-or-below to above.
	ModeEdge Mode = "edge"
	// ModeLevel triggers on every sample above the threshold.
	ModeLevel Mode = "level"
)

// Sample is a single 3-axis acceleration reading in m/s².
type Sample struct {
	X, Y, Z float64
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func (s Sample) Magnitude() float64 {
	return math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
}

// Counts tracks detector activity since startup.
type Counts struct {
	Samples    int
	Shakes     int
	Suppressed int // crossings dropped by the cooldown
}
