// Package platoon owns a single-lane chain of vehicles: vehicle 0 at the head,
// each later vehicle following the one in front of it.
//
// A Platoon tick has two passes:
//
//  1. Commit pass - every vehicle shifts its proposed state into its committed state.
//
//  2. Law pass - every vehicle recomputes its proposed acceleration from the freshly
//     committed states of itself and its leader.
//
// Because the law pass only reads committed state, the result of a tick does not
// depend on the order vehicles are visited in either pass.
package platoon

import (
	"github.com/cxd309/tampere-platoon/internal/vehicle"
)

// DesiredSpeedFunc returns the aspirational speed (m/s) of a vehicle for the current tick.
type DesiredSpeedFunc func(v *vehicle.Vehicle) float64

// UniformDesiredSpeed gives every vehicle the same aspirational speed.
func UniformDesiredSpeed(speed float64) DesiredSpeedFunc {
	return func(*vehicle.Vehicle) float64 { return speed }
}

// Platoon is an arena of vehicles linked head to tail.
type Platoon struct {
	ids      *vehicle.IDCounter
	vehicles []*vehicle.Vehicle
	byID     map[vehicle.ID]*vehicle.Vehicle
}

// New creates an empty platoon that assigns IDs from ids.
func New(ids *vehicle.IDCounter) *Platoon {
	return &Platoon{
		ids:  ids,
		byID: make(map[vehicle.ID]*vehicle.Vehicle),
	}
}

// Add creates a vehicle at x0 (m) with speed v0 (m/s) behind the current tail.
// The first vehicle added has no leader.
func (p *Platoon) Add(x0, v0 float64, opts ...vehicle.Option) *vehicle.Vehicle {
	if tail := p.Tail(); tail != nil {
		opts = append([]vehicle.Option{vehicle.WithLeader(tail)}, opts...)
	}
	v := vehicle.New(p.ids, x0, v0, opts...)
	p.vehicles = append(p.vehicles, v)
	p.byID[v.ID()] = v
	return v
}

// Vehicles returns the vehicles head first. The slice must not be modified.
func (p *Platoon) Vehicles() []*vehicle.Vehicle { return p.vehicles }

func (p *Platoon) Len() int { return len(p.vehicles) }

// Head returns the first vehicle, or nil for an empty platoon.
func (p *Platoon) Head() *vehicle.Vehicle {
	if len(p.vehicles) == 0 {
		return nil
	}
	return p.vehicles[0]
}

// Tail returns the last vehicle, or nil for an empty platoon.
func (p *Platoon) Tail() *vehicle.Vehicle {
	if len(p.vehicles) == 0 {
		return nil
	}
	return p.vehicles[len(p.vehicles)-1]
}

// Get looks a vehicle up by ID.
func (p *Platoon) Get(id vehicle.ID) (*vehicle.Vehicle, bool) {
	v, ok := p.byID[id]
	return v, ok
}

// Step advances every vehicle by one tick. control is handed to every vehicle but
// only controlled vehicles use it.
func (p *Platoon) Step(control float64, desired DesiredSpeedFunc) {
	for _, v := range p.vehicles {
		v.ShiftState()
	}
	for _, v := range p.vehicles {
		v.SetControl(control)
		v.CarFollowing(desired(v))
	}
}

// Snapshot returns the state of every vehicle, head first.
func (p *Platoon) Snapshot() []vehicle.State {
	out := make([]vehicle.State, len(p.vehicles))
	for i, v := range p.vehicles {
		out[i] = v.Snapshot()
	}
	return out
}

// Reset drops every vehicle and restarts ID assignment at 0.
func (p *Platoon) Reset() {
	p.vehicles = nil
	p.byID = make(map[vehicle.ID]*vehicle.Vehicle)
	p.ids.Reset()
}
