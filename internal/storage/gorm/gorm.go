// Package gormstorage implements storage.Backend on a gorm database. The same code
// serves SQLite and Postgres; only the connection differs.
package gormstorage

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/cxd309/tampere-platoon/internal/core"
)

// ErrNoActiveRun is returned when recording without a started run.
var ErrNoActiveRun = errors.New("no active run")

// RunRecord is one simulation run.
type RunRecord struct {
	ID           uint    `gorm:"primarykey"`
	SimulationID string  `gorm:"index;size:128"`
	TimeStep     float64 // seconds
	RunTime      float64 // seconds
	Vehicles     int
	StartedAt    time.Time
	EndedAt      *time.Time
}

func (RunRecord) TableName() string { return "runs" }

// StateRecord is the state of one vehicle at one timestamp of a run.
type StateRecord struct {
	ID           uint    `gorm:"primarykey"`
	RunID        uint    `gorm:"index:idx_run_vehicle,priority:1"`
	VehicleID    uint64  `gorm:"index:idx_run_vehicle,priority:2"`
	Timestamp    float64 // seconds
	Role         string  `gorm:"size:16"`
	LeaderID     *uint64
	Position     float64
	Speed        float64
	Acceleration float64
	Proposed     float64
	Spacing      float64
	SpeedGap     float64
}

func (StateRecord) TableName() string { return "vehicle_states" }

// Models lists every table the backend migrates.
var Models = []any{&RunRecord{}, &StateRecord{}}

// Backend writes runs and vehicle states through gorm.
type Backend struct {
	db     *gorm.DB
	logger zerolog.Logger
	run    *RunRecord
}

// New creates a gorm backend on an open connection.
func New(db *gorm.DB, logger zerolog.Logger) *Backend {
	return &Backend{
		db:     db,
		logger: logger.With().Str("component", "storage.gorm").Logger(),
	}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	b.logger.Debug().Str("dialect", b.db.Dialector.Name()).Msg("schema migrated")
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) StartRun(run *core.Run) error {
	rec := &RunRecord{
		SimulationID: run.SimulationID,
		TimeStep:     run.TimeStep,
		RunTime:      run.RunTime,
		Vehicles:     run.Vehicles,
		StartedAt:    run.StartedAt,
	}
	if err := b.db.Create(rec).Error; err != nil {
		return fmt.Errorf("creating run %q: %w", run.SimulationID, err)
	}
	b.run = rec
	b.logger.Info().Str("simulation_id", run.SimulationID).Uint("run_id", rec.ID).Msg("run started")
	return nil
}

// RecordStep inserts one row per vehicle in a single batch.
func (b *Backend) RecordStep(step *core.Step) error {
	if b.run == nil {
		return ErrNoActiveRun
	}
	if len(step.States) == 0 {
		return nil
	}

	rows := make([]StateRecord, len(step.States))
	for i, s := range step.States {
		rows[i] = StateRecord{
			RunID:        b.run.ID,
			VehicleID:    uint64(s.VehicleID),
			Timestamp:    step.Timestamp,
			Role:         string(s.Role),
			Position:     s.Position,
			Speed:        s.Speed,
			Acceleration: s.Acceleration,
			Proposed:     s.Proposed,
			Spacing:      s.Spacing,
			SpeedGap:     s.SpeedGap,
		}
		if s.LeaderID != nil {
			id := uint64(*s.LeaderID)
			rows[i].LeaderID = &id
		}
	}

	if err := b.db.CreateInBatches(rows, len(rows)).Error; err != nil {
		return fmt.Errorf("recording step t=%.2f: %w", step.Timestamp, err)
	}
	return nil
}

func (b *Backend) EndRun() error {
	if b.run == nil {
		return ErrNoActiveRun
	}
	now := time.Now().UTC()
	if err := b.db.Model(b.run).Update("ended_at", now).Error; err != nil {
		return fmt.Errorf("ending run %d: %w", b.run.ID, err)
	}
	b.logger.Info().Uint("run_id", b.run.ID).Msg("run ended")
	b.run = nil
	return nil
}

// Runs returns every stored run, oldest first.
func (b *Backend) Runs() ([]RunRecord, error) {
	var runs []RunRecord
	err := b.db.Order("id").Find(&runs).Error
	return runs, err
}

// Trajectory returns the stored states of one vehicle in a run, in time order.
func (b *Backend) Trajectory(runID uint, vehicleID uint64) ([]StateRecord, error) {
	var states []StateRecord
	err := b.db.
		Where("run_id = ? AND vehicle_id = ?", runID, vehicleID).
		Order("timestamp").
		Find(&states).Error
	return states, err
}
