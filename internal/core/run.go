// Package core holds the record types shared by the engine and every storage backend.
package core

import (
	"time"

	"github.com/cxd309/tampere-platoon/internal/vehicle"
)

// Run describes one simulation run as seen by a storage backend.
type Run struct {
	SimulationID string    `json:"simulation_id"`
	TimeStep     float64   `json:"time_step"` // seconds
	RunTime      float64   `json:"run_time"`  // seconds
	Vehicles     int       `json:"vehicles"`
	StartedAt    time.Time `json:"started_at"` // wall clock, anchors simulation time for time-series sinks
}

// Step is the state of every vehicle at one simulation timestamp.
type Step struct {
	Timestamp float64         `json:"timestamp"` // seconds since the start of the run
	States    []vehicle.State `json:"states"`
}

// WallTime maps a simulation timestamp onto the wall clock of the run.
func (r Run) WallTime(timestamp float64) time.Time {
	return r.StartedAt.Add(time.Duration(timestamp * float64(time.Second)))
}
