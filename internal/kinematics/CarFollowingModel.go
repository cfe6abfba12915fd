// Package kinematics defines the CarFollowingModel interface for longitudinal vehicle
// behaviour in a single-lane stream, the traffic constants shared by every vehicle,
// and the built-in Tampere switching law.
//
// Adding a new car-following law requires only implementing CarFollowingModel and
// registering its discriminator in the engine package; the vehicle and platoon
// packages never need to change.
package kinematics

// Traffic-flow constants shared by every vehicle.
const (
	FreeFlowSpeed  = 25.0 // default free-flow speed, m/s
	ShockwaveSpeed = 6.25 // shockwave speed, m/s
	JamDensity     = 0.16 // jam density, veh/m

	// TimeStep is the integration step, derived from the shockwave speed and jam density.
	TimeStep = 1 / (ShockwaveSpeed * JamDensity) // seconds

	// AccelMax and AccelMin are only enforced for vehicles that opt in to Bounds.
	AccelMax = 0.5  // m/s²
	AccelMin = -0.5 // m/s²
)

// Situation is everything a car-following law may read about one vehicle at the start
// of a tick. All values come from committed (end of previous step) state.
type Situation struct {
	Speed    float64 // own committed speed, m/s
	SpeedGap float64 // leader speed minus own speed, m/s; 0 without a leader
	Spacing  float64 // leader position minus own position, m; 0 without a leader
}

// CarFollowingModel is the contract every car-following law must satisfy.
type CarFollowingModel interface {
	// Name returns the discriminator string used in simulation input.
	Name() string

	// Acceleration returns the acceleration (m/s²) the vehicle applies for the next
	// tick given its situation and the caller's aspirational speed vDesired.
	Acceleration(s Situation, vDesired float64) float64
}

// MinSpacing returns the minimum bumper-to-bumper spacing, 1/JamDensity (m).
func MinSpacing() float64 { return 1 / JamDensity }

// DesiredSpacing returns the spacing a vehicle travelling at v wants to keep to its
// leader: the minimum spacing plus v/(w·kx).
func DesiredSpacing(v float64) float64 {
	return MinSpacing() + v/(ShockwaveSpeed*JamDensity)
}

// Advance integrates one step of length dt under constant acceleration a, updating the
// speed first and then the position with the new speed.
// Returns (new position, new speed).
func Advance(x, v, a, dt float64) (newX, newV float64) {
	newV = v + a*dt
	newX = x + newV*dt
	return newX, newV
}
