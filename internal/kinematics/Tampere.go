package kinematics

import "math"

// TampereModelName is the JSON discriminator string for the Tampere model.
const TampereModelName = "tampere"

// Default Tampere gains.
const (
	DefaultC1 = 0.5 // speed-difference gain
	DefaultC2 = 0.5 // spacing-error gain
	DefaultC3 = 0.5 // free-flow gain
)

// Tampere implements CarFollowingModel with the Tampere switching rule: a vehicle
// applies whichever of the congested and free-flow terms is smaller.
//
// JSON discriminator: "model": "tampere"
type Tampere struct {
	C1 float64 `json:"c1" yaml:"c1"` // speed-difference gain
	C2 float64 `json:"c2" yaml:"c2"` // spacing-error gain
	C3 float64 `json:"c3" yaml:"c3"` // free-flow gain
}

// DefaultTampere returns a Tampere model with all gains at 0.5.
func DefaultTampere() Tampere {
	return Tampere{C1: DefaultC1, C2: DefaultC2, C3: DefaultC3}
}

func (t Tampere) Name() string { return TampereModelName }

// CongestedTerm is c1·Δv + c2·(s − s_d): feedback toward the desired following distance.
func (t Tampere) CongestedTerm(s Situation) float64 {
	return t.C1*s.SpeedGap + t.C2*(s.Spacing-DesiredSpacing(s.Speed))
}

// FreeTerm is c3·(v_d − v): feedback toward the aspirational speed.
func (t Tampere) FreeTerm(speed, vDesired float64) float64 {
	return t.C3 * (vDesired - speed)
}

func (t Tampere) Acceleration(s Situation, vDesired float64) float64 {
	return math.Min(t.CongestedTerm(s), t.FreeTerm(s.Speed, vDesired))
}
