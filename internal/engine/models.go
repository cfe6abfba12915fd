package engine

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/cxd309/tampere-platoon/internal/platoon"
	"github.com/cxd309/tampere-platoon/internal/storage"
	"github.com/cxd309/tampere-platoon/internal/vehicle"
)

// SimulationMeta holds the identity and timing parameters for a simulation run.
type SimulationMeta struct {
	SimulationID string  `json:"simulation_id" yaml:"simulation_id"`
	RunTime      float64 `json:"run_time" yaml:"run_time"`                       // seconds
	TimeStep     float64 `json:"time_step,omitempty" yaml:"time_step,omitempty"` // seconds; always kinematics.TimeStep in output
}

// ModelSpec selects a car-following model by discriminator. Unset gains take the
// model defaults.
type ModelSpec struct {
	Model string   `json:"model" yaml:"model"`
	C1    *float64 `json:"c1,omitempty" yaml:"c1,omitempty"`
	C2    *float64 `json:"c2,omitempty" yaml:"c2,omitempty"`
	C3    *float64 `json:"c3,omitempty" yaml:"c3,omitempty"`
}

// VehicleSpec is the initial condition and parameters of one vehicle. Vehicles are
// listed head first; each follows the one before it.
type VehicleSpec struct {
	InitialPosition float64    `json:"initial_position" yaml:"initial_position"`               // m
	InitialSpeed    float64    `json:"initial_speed" yaml:"initial_speed"`                     // m/s
	DesiredSpeed    *float64   `json:"desired_speed,omitempty" yaml:"desired_speed,omitempty"` // m/s; overrides the input default
	Model           *ModelSpec `json:"model,omitempty" yaml:"model,omitempty"`
	// Bounded clamps the car-following acceleration to [AccelMin, AccelMax].
	Bounded bool `json:"bounded,omitempty" yaml:"bounded,omitempty"`
}

// ControlSegment applies a constant control acceleration to the head vehicle
// during [T0, T1). A negative T1 extends the segment to the end of the run.
type ControlSegment struct {
	T0      float64 `json:"t0" yaml:"t0"`       // seconds
	T1      float64 `json:"t1" yaml:"t1"`       // seconds
	Accel   float64 `json:"accel" yaml:"accel"` // m/s²
	Comment string  `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// SimulationInput is the JSON/YAML-serialisable input to the engine.
type SimulationInput struct {
	Meta          SimulationMeta   `json:"simulation_meta" yaml:"simulation_meta"`
	DesiredSpeed  float64          `json:"desired_speed,omitempty" yaml:"desired_speed,omitempty"` // m/s; 0 means kinematics.FreeFlowSpeed
	Vehicles      []VehicleSpec    `json:"vehicles" yaml:"vehicles"`
	LeaderControl []ControlSegment `json:"leader_control,omitempty" yaml:"leader_control,omitempty"`
}

// SimulationLogRow is the state of all vehicles at a single simulation timestep.
type SimulationLogRow struct {
	Timestamp   float64         `json:"timestamp" yaml:"timestamp"` // seconds
	VehicleLogs []vehicle.State `json:"vehicle_logs" yaml:"vehicle_logs"`
}

// SimulationLog is the complete output of a simulation run.
type SimulationLog struct {
	Meta   SimulationMeta     `json:"simulation_meta" yaml:"simulation_meta"`
	Output []SimulationLogRow `json:"output" yaml:"output"`
}

// Engine is the platoon simulation state.
type Engine struct {
	meta     SimulationMeta
	platoon  *platoon.Platoon
	desired  map[vehicle.ID]float64
	control  []ControlSegment
	curTime  float64
	ran      bool
	logger   zerolog.Logger
	recorder storage.Backend

	ticks    metric.Int64Counter
	recorded metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecorder streams every log row to an initialised storage backend.
func WithRecorder(b storage.Backend) Option {
	return func(e *Engine) {
		e.recorder = b
	}
}
