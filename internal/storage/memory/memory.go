// Package memory implements storage.Backend by keeping every run in memory.
package memory

import (
	"errors"
	"sync"

	"github.com/cxd309/tampere-platoon/internal/core"
	"github.com/cxd309/tampere-platoon/internal/vehicle"
)

// ErrNoActiveRun is returned when recording without a started run.
var ErrNoActiveRun = errors.New("no active run")

// RunRecord groups a run with all of its recorded steps.
type RunRecord struct {
	Run   core.Run
	Steps []core.Step
	Ended bool
}

// Backend stores runs in memory.
type Backend struct {
	runs    []*RunRecord
	current *RunRecord
	mu      sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{}
}

func (b *Backend) Init() error  { return nil }
func (b *Backend) Close() error { return nil }

// StartRun begins recording a new run. An unfinished previous run is left as is.
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = &RunRecord{Run: *run}
	b.runs = append(b.runs, b.current)
	return nil
}

// RecordStep appends a copy of step to the current run.
func (b *Backend) RecordStep(step *core.Step) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return ErrNoActiveRun
	}
	states := make([]vehicle.State, len(step.States))
	copy(states, step.States)
	b.current.Steps = append(b.current.Steps, core.Step{Timestamp: step.Timestamp, States: states})
	return nil
}

// EndRun marks the current run finished.
func (b *Backend) EndRun() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return ErrNoActiveRun
	}
	b.current.Ended = true
	b.current = nil
	return nil
}

// Runs returns every recorded run, oldest first.
func (b *Backend) Runs() []RunRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]RunRecord, len(b.runs))
	for i, r := range b.runs {
		out[i] = *r
	}
	return out
}

// Trajectory returns the recorded states of one vehicle in the named run, in time order.
func (b *Backend) Trajectory(simulationID string, id vehicle.ID) []vehicle.State {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []vehicle.State
	for _, r := range b.runs {
		if r.Run.SimulationID != simulationID {
			continue
		}
		for _, step := range r.Steps {
			for _, s := range step.States {
				if s.VehicleID == id {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
