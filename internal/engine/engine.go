// Package engine implements the platoon simulation loop.
//
// The simulation advances in fixed timesteps of kinematics.TimeStep. Each tick
// evaluates the head vehicle's control from the leader_control segments, then
// advances the whole platoon in two passes:
//
//  1. Commit pass - every vehicle commits the state proposed on the previous tick.
//
//  2. Law pass - every vehicle proposes its next acceleration from the committed
//     state of itself and its leader.
//
// A log row with every vehicle's committed state is produced at t=0 and after
// every tick, and streamed to the optional storage backend.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cxd309/tampere-platoon/internal/core"
	"github.com/cxd309/tampere-platoon/internal/kinematics"
	"github.com/cxd309/tampere-platoon/internal/platoon"
	"github.com/cxd309/tampere-platoon/internal/vehicle"
)

var (
	ErrNoVehicles     = errors.New("no vehicles")
	ErrInvalidRunTime = errors.New("run_time must be positive")
	ErrUnknownModel   = errors.New("unknown car-following model")
	ErrInvalidSegment = errors.New("invalid leader control segment")
	ErrAlreadyRun     = errors.New("engine has already run")
)

// NewEngine constructs an Engine from a SimulationInput, validating it and placing
// every vehicle at its initial state.
func NewEngine(input SimulationInput, opts ...Option) (*Engine, error) {
	if len(input.Vehicles) == 0 {
		return nil, ErrNoVehicles
	}
	if input.Meta.RunTime <= 0 || math.IsNaN(input.Meta.RunTime) || math.IsInf(input.Meta.RunTime, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRunTime, input.Meta.RunTime)
	}
	for i, seg := range input.LeaderControl {
		if seg.T1 >= 0 && seg.T1 < seg.T0 {
			return nil, fmt.Errorf("%w %d: t1 %.2f before t0 %.2f", ErrInvalidSegment, i, seg.T1, seg.T0)
		}
	}

	defaultDesired := input.DesiredSpeed
	if defaultDesired == 0 {
		defaultDesired = kinematics.FreeFlowSpeed
	}

	p := platoon.New(vehicle.NewIDCounter())
	desired := make(map[vehicle.ID]float64, len(input.Vehicles))
	for i, spec := range input.Vehicles {
		vopts, err := vehicleOptions(spec)
		if err != nil {
			return nil, fmt.Errorf("vehicle %d: %w", i, err)
		}
		v := p.Add(spec.InitialPosition, spec.InitialSpeed, vopts...)
		desired[v.ID()] = defaultDesired
		if spec.DesiredSpeed != nil {
			desired[v.ID()] = *spec.DesiredSpeed
		}
	}

	meta := input.Meta
	meta.TimeStep = kinematics.TimeStep

	e := &Engine{
		meta:    meta,
		platoon: p,
		desired: desired,
		control: input.LeaderControl,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.initMetrics(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	m := meter()

	var err error
	e.ticks, err = m.Int64Counter(
		"engine.ticks",
		metric.WithDescription("Total simulation ticks advanced"),
	)
	if err != nil {
		return fmt.Errorf("creating ticks counter: %w", err)
	}

	e.recorded, err = m.Int64Counter(
		"engine.rows.recorded",
		metric.WithDescription("Total log rows written to the storage backend"),
	)
	if err != nil {
		return fmt.Errorf("creating recorded counter: %w", err)
	}
	return nil
}

// vehicleOptions resolves the model discriminator and flags of a VehicleSpec.
//
// Supported models:
//   - "tampere" (default): gains c1, c2, c3, each defaulting to 0.5.
func vehicleOptions(spec VehicleSpec) ([]vehicle.Option, error) {
	var opts []vehicle.Option

	model := kinematics.DefaultTampere()
	if spec.Model != nil {
		switch spec.Model.Model {
		case kinematics.TampereModelName, "":
			if spec.Model.C1 != nil {
				model.C1 = *spec.Model.C1
			}
			if spec.Model.C2 != nil {
				model.C2 = *spec.Model.C2
			}
			if spec.Model.C3 != nil {
				model.C3 = *spec.Model.C3
			}
		default:
			return nil, fmt.Errorf("%w %q", ErrUnknownModel, spec.Model.Model)
		}
	}
	opts = append(opts, vehicle.WithModel(model))

	if spec.Bounded {
		opts = append(opts, vehicle.WithBounds(kinematics.DefaultBounds()))
	}
	return opts, nil
}

// Platoon exposes the simulated platoon.
func (e *Engine) Platoon() *platoon.Platoon { return e.platoon }

// Steps returns the number of ticks Run performs after the initial row.
func (e *Engine) Steps() int {
	return int(math.Floor(e.meta.RunTime/kinematics.TimeStep + 1e-9))
}

// Run executes the full simulation and returns the log. It stops with ctx.Err()
// if ctx is cancelled between ticks. An Engine runs once; later calls return
// ErrAlreadyRun.
func (e *Engine) Run(ctx context.Context) (SimulationLog, error) {
	if e.ran {
		return SimulationLog{}, ErrAlreadyRun
	}
	e.ran = true

	log := SimulationLog{Meta: e.meta}
	steps := e.Steps()
	attrs := metric.WithAttributes(attribute.String("simulation_id", e.meta.SimulationID))

	e.logger.Info().
		Str("simulation_id", e.meta.SimulationID).
		Int("vehicles", e.platoon.Len()).
		Int("steps", steps).
		Msg("simulation starting")

	if err := e.startRecording(); err != nil {
		return SimulationLog{}, err
	}
	// A run that fails after StartRun is still closed in the backend.
	finished := false
	defer func() {
		if !finished {
			e.abortRecording()
		}
	}()

	row := e.snapshot()
	if err := e.record(ctx, row, attrs); err != nil {
		return SimulationLog{}, err
	}
	log.Output = append(log.Output, row)

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn().Err(err).Float64("t", e.curTime).Msg("simulation cancelled")
			return SimulationLog{}, err
		}

		e.step()
		e.curTime = float64(i) * kinematics.TimeStep
		e.ticks.Add(ctx, 1, attrs)

		row := e.snapshot()
		if err := e.record(ctx, row, attrs); err != nil {
			return SimulationLog{}, fmt.Errorf("at t=%.2f: %w", e.curTime, err)
		}
		log.Output = append(log.Output, row)
	}

	finished = true
	if e.recorder != nil {
		if err := e.recorder.EndRun(); err != nil {
			return SimulationLog{}, fmt.Errorf("ending recording: %w", err)
		}
	}

	e.logger.Info().
		Str("simulation_id", e.meta.SimulationID).
		Int("rows", len(log.Output)).
		Msg("simulation finished")
	return log, nil
}

// step advances the platoon by one tick. The control applied during a tick is
// the one scheduled at the tick's start time.
func (e *Engine) step() {
	control := EvalControl(e.control, e.curTime, e.meta.RunTime)
	e.platoon.Step(control, func(v *vehicle.Vehicle) float64 {
		return e.desired[v.ID()]
	})
	e.logger.Trace().Float64("t", e.curTime).Float64("control", control).Msg("tick")
}

func (e *Engine) snapshot() SimulationLogRow {
	return SimulationLogRow{Timestamp: e.curTime, VehicleLogs: e.platoon.Snapshot()}
}

func (e *Engine) startRecording() error {
	if e.recorder == nil {
		return nil
	}
	run := &core.Run{
		SimulationID: e.meta.SimulationID,
		TimeStep:     e.meta.TimeStep,
		RunTime:      e.meta.RunTime,
		Vehicles:     e.platoon.Len(),
		StartedAt:    time.Now().UTC(),
	}
	if err := e.recorder.StartRun(run); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}
	return nil
}

func (e *Engine) abortRecording() {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.EndRun(); err != nil {
		e.logger.Error().Err(err).Str("simulation_id", e.meta.SimulationID).Msg("ending aborted recording failed")
	}
}

func (e *Engine) record(ctx context.Context, row SimulationLogRow, attrs metric.AddOption) error {
	if e.recorder == nil {
		return nil
	}
	if err := e.recorder.RecordStep(&core.Step{Timestamp: row.Timestamp, States: row.VehicleLogs}); err != nil {
		e.logger.Error().Err(err).Float64("t", row.Timestamp).Msg("recording step failed")
		return err
	}
	e.recorded.Add(ctx, 1, attrs)
	return nil
}

// EvalControl returns the head vehicle's control acceleration at time t: the accel
// of the first segment containing t, or 0 when no segment does.
func EvalControl(segments []ControlSegment, t, runTime float64) float64 {
	for _, seg := range segments {
		t1 := seg.T1
		if t1 < 0 {
			t1 = math.Max(runTime, seg.T0) + kinematics.TimeStep
		}
		if t >= seg.T0 && t < t1 {
			return seg.Accel
		}
	}
	return 0
}

// RunJSON is the primary entry point for the CLI and WASM targets.
// It accepts a JSON-encoded SimulationInput, runs the simulation, and returns a
// JSON-encoded SimulationLog.
func RunJSON(jsonInput string) (string, error) {
	input, err := DecodeInput([]byte(jsonInput), FormatJSON)
	if err != nil {
		return "", err
	}

	e, err := NewEngine(input)
	if err != nil {
		return "", err
	}

	simLog, err := e.Run(context.Background())
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
