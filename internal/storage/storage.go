// Package storage defines the trajectory sink every simulation run is recorded to,
// and selects a concrete backend from configuration.
package storage

import "github.com/cxd309/tampere-platoon/internal/core"

// Backend is the interface all storage implementations must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun() error

	// State recording
	RecordStep(step *core.Step) error
}
