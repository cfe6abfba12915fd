// Package vehicle defines the point-mass Vehicle of a single-lane platoon and its
// per-tick state update.
//
// A vehicle keeps a committed state (xLast, vLast, aLast) and a proposed
// acceleration a. The tentative next position and speed are derived from the
// committed state and a; they only become authoritative on the next ShiftState.
// Followers read their leader's committed state exclusively.
package vehicle

import (
	"github.com/cxd309/tampere-platoon/internal/kinematics"
)

// Role selects how a vehicle obtains its acceleration.
type Role string

const (
	// RoleControlled vehicles take their acceleration from an external controller.
	RoleControlled Role = "controlled"
	// RoleFollower vehicles derive their acceleration from the car-following law.
	RoleFollower Role = "follower"
)

// Vehicle is one point-mass vehicle on a 1-D road.
type Vehicle struct {
	id     ID
	role   Role
	model  kinematics.CarFollowingModel
	bounds *kinematics.Bounds

	xLast float64 // committed position, m
	vLast float64 // committed speed, m/s
	aLast float64 // committed acceleration, m/s²

	a       float64 // acceleration proposed for the next step, m/s²
	control float64 // external control acceleration, m/s²

	// leader is not owned by the follower; the owner of both guarantees no cycles.
	leader *Vehicle
}

// Option configures a Vehicle at construction.
type Option func(*Vehicle)

// WithCoefficients sets the Tampere gains c1 (speed difference), c2 (spacing) and
// c3 (free flow).
func WithCoefficients(c1, c2, c3 float64) Option {
	return func(v *Vehicle) {
		v.model = kinematics.Tampere{C1: c1, C2: c2, C3: c3}
	}
}

// WithModel sets an arbitrary car-following model.
func WithModel(m kinematics.CarFollowingModel) Option {
	return func(v *Vehicle) {
		v.model = m
	}
}

// WithLeader sets the vehicle ahead.
func WithLeader(leader *Vehicle) Option {
	return func(v *Vehicle) {
		v.leader = leader
	}
}

// WithRole overrides the default role, which is RoleControlled for ID 0 and
// RoleFollower otherwise.
func WithRole(r Role) Option {
	return func(v *Vehicle) {
		v.role = r
	}
}

// WithBounds clamps the car-following acceleration into b.
func WithBounds(b kinematics.Bounds) Option {
	return func(v *Vehicle) {
		v.bounds = &b
	}
}

// New creates a vehicle at position x0 (m) with speed v0 (m/s) and zero acceleration,
// taking its ID from ids.
func New(ids *IDCounter, x0, v0 float64, opts ...Option) *Vehicle {
	v := &Vehicle{
		id:    ids.Next(),
		model: kinematics.DefaultTampere(),
		xLast: x0,
		vLast: v0,
	}
	if v.id == 0 {
		v.role = RoleControlled
	} else {
		v.role = RoleFollower
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vehicle) ID() ID                              { return v.id }
func (v *Vehicle) Role() Role                          { return v.role }
func (v *Vehicle) IsControlled() bool                  { return v.role == RoleControlled }
func (v *Vehicle) Model() kinematics.CarFollowingModel { return v.model }

// Leader returns the vehicle ahead, or nil.
func (v *Vehicle) Leader() *Vehicle { return v.leader }

// SetLeader rebinds the vehicle ahead. Passing nil makes the vehicle leaderless.
func (v *Vehicle) SetLeader(leader *Vehicle) { v.leader = leader }

func (v *Vehicle) XLast() float64   { return v.xLast }
func (v *Vehicle) VLast() float64   { return v.vLast }
func (v *Vehicle) ALast() float64   { return v.aLast }
func (v *Vehicle) A() float64       { return v.a }
func (v *Vehicle) Control() float64 { return v.control }

// Traffic constants, exposed per vehicle for callers that expect them there.
func (v *Vehicle) FreeFlowSpeed() float64  { return kinematics.FreeFlowSpeed }
func (v *Vehicle) ShockwaveSpeed() float64 { return kinematics.ShockwaveSpeed }
func (v *Vehicle) JamDensity() float64     { return kinematics.JamDensity }
func (v *Vehicle) MinSpacing() float64     { return kinematics.MinSpacing() }

// V returns the tentative next speed implied by the proposed acceleration.
func (v *Vehicle) V() float64 {
	return v.vLast + v.a*kinematics.TimeStep
}

// X returns the tentative next position implied by the proposed acceleration.
func (v *Vehicle) X() float64 {
	x, _ := kinematics.Advance(v.xLast, v.vLast, v.a, kinematics.TimeStep)
	return x
}

// SpeedGap is the leader's committed speed minus this vehicle's, or 0 without a leader.
func (v *Vehicle) SpeedGap() float64 {
	if v.leader == nil {
		return 0
	}
	return v.leader.vLast - v.vLast
}

// Spacing is the leader's committed position minus this vehicle's, or 0 without a leader.
func (v *Vehicle) Spacing() float64 {
	if v.leader == nil {
		return 0
	}
	return v.leader.xLast - v.xLast
}

// DesiredSpacing is the spacing this vehicle wants at its committed speed.
func (v *Vehicle) DesiredSpacing() float64 {
	return kinematics.DesiredSpacing(v.vLast)
}

func (v *Vehicle) situation() kinematics.Situation {
	return kinematics.Situation{
		Speed:    v.vLast,
		SpeedGap: v.SpeedGap(),
		Spacing:  v.Spacing(),
	}
}

// CongestedAcceleration returns the car-following term of the Tampere law with this
// vehicle's gains. Vehicles using another model still get the Tampere default term.
func (v *Vehicle) CongestedAcceleration() float64 {
	return v.tampere().CongestedTerm(v.situation())
}

// FreeAcceleration returns the free-flow term toward vDesired.
func (v *Vehicle) FreeAcceleration(vDesired float64) float64 {
	return v.tampere().FreeTerm(v.vLast, vDesired)
}

func (v *Vehicle) tampere() kinematics.Tampere {
	if t, ok := v.model.(kinematics.Tampere); ok {
		return t
	}
	return kinematics.DefaultTampere()
}

// CarFollowing sets the proposed acceleration: the control value for a controlled
// vehicle, the car-following law otherwise.
func (v *Vehicle) CarFollowing(vDesired float64) {
	if v.IsControlled() {
		v.a = v.control
		return
	}
	a := v.model.Acceleration(v.situation(), vDesired)
	if v.bounds != nil {
		a = v.bounds.Apply(a)
	}
	v.a = a
}

// ShiftState commits the tentative state: position and speed advance by one step
// under the proposed acceleration, which becomes the committed acceleration.
func (v *Vehicle) ShiftState() {
	x, speed := kinematics.Advance(v.xLast, v.vLast, v.a, kinematics.TimeStep)
	v.xLast = x
	v.vLast = speed
	v.aLast = v.a
}

// SetControl stores the external control acceleration. Only controlled vehicles use it.
func (v *Vehicle) SetControl(control float64) {
	v.control = control
}

// Step advances the vehicle one tick: commit the previous proposal, store control,
// then recompute the proposed acceleration from the committed state.
func (v *Vehicle) Step(vDesired, control float64) {
	v.ShiftState()
	v.SetControl(control)
	v.CarFollowing(vDesired)
}

// State is a point-in-time snapshot of a Vehicle.
type State struct {
	VehicleID    ID      `json:"vehicle_id" yaml:"vehicle_id"`
	Role         Role    `json:"role" yaml:"role"`
	LeaderID     *ID     `json:"leader_id,omitempty" yaml:"leader_id,omitempty"`
	Position     float64 `json:"position" yaml:"position"`         // m
	Speed        float64 `json:"speed" yaml:"speed"`               // m/s
	Acceleration float64 `json:"acceleration" yaml:"acceleration"` // committed, m/s²
	Proposed     float64 `json:"proposed" yaml:"proposed"`         // acceleration for the next step, m/s²
	Spacing      float64 `json:"spacing" yaml:"spacing"`           // m
	SpeedGap     float64 `json:"speed_gap" yaml:"speed_gap"`       // m/s
}

// Snapshot returns the current committed state of the vehicle.
func (v *Vehicle) Snapshot() State {
	s := State{
		VehicleID:    v.id,
		Role:         v.role,
		Position:     v.xLast,
		Speed:        v.vLast,
		Acceleration: v.aLast,
		Proposed:     v.a,
		Spacing:      v.Spacing(),
		SpeedGap:     v.SpeedGap(),
	}
	if v.leader != nil {
		id := v.leader.id
		s.LeaderID = &id
	}
	return s
}
