package kinematics

import "github.com/samber/lo"

// Bounds is an opt-in acceleration clamp. Vehicles without Bounds apply the
// car-following result unchanged.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"` // m/s², negative for braking
	Max float64 `json:"max" yaml:"max"` // m/s²
}

// DefaultBounds returns the AccelMin/AccelMax clamp.
func DefaultBounds() Bounds {
	return Bounds{Min: AccelMin, Max: AccelMax}
}

// Apply clamps a into [Min, Max].
func (b Bounds) Apply(a float64) float64 {
	return lo.Clamp(a, b.Min, b.Max)
}
