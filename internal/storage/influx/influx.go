// Package influx implements storage.Backend by writing one InfluxDB point per
// vehicle per tick.
package influx

import (
	"errors"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/cxd309/tampere-platoon/internal/config"
	"github.com/cxd309/tampere-platoon/internal/core"
	"github.com/cxd309/tampere-platoon/internal/vehicle"
)

// Measurement is the InfluxDB measurement vehicle states are written to.
const Measurement = "vehicle_state"

var (
	// ErrNoActiveRun is returned when recording without a started run.
	ErrNoActiveRun = errors.New("no active run")

	// ErrNotInitialized is returned when writing before Init.
	ErrNotInitialized = errors.New("influx backend not initialized")
)

// PointWriter is the subset of the InfluxDB non-blocking write API the backend uses.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point)
	Flush()
}

// Backend streams vehicle states to an InfluxDB bucket.
type Backend struct {
	cfg    config.InfluxConfig
	client influxdb2.Client
	writer PointWriter
	logger zerolog.Logger
	run    *core.Run
}

// New creates a backend that connects to cfg.URL on Init.
func New(cfg config.InfluxConfig, logger zerolog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		logger: logger.With().Str("component", "storage.influx").Logger(),
	}
}

// NewWithWriter creates a backend writing to an existing PointWriter.
func NewWithWriter(w PointWriter, logger zerolog.Logger) *Backend {
	b := New(config.InfluxConfig{}, logger)
	b.writer = w
	return b
}

// Init creates the client and the write API unless a writer was injected.
func (b *Backend) Init() error {
	if b.writer != nil {
		return nil
	}

	b.client = influxdb2.NewClientWithOptions(
		b.cfg.URL,
		b.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)
	w := b.client.WriteAPI(b.cfg.Org, b.cfg.Bucket)

	errorsCh := w.Errors()
	go func() {
		for writeErr := range errorsCh {
			b.logger.Error().Err(writeErr).Str("bucket", b.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}()

	b.writer = w
	b.logger.Info().Str("url", b.cfg.URL).Str("bucket", b.cfg.Bucket).Msg("InfluxDB writer initialized")
	return nil
}

// Close flushes pending points and closes the client.
func (b *Backend) Close() error {
	if b.writer != nil {
		b.writer.Flush()
	}
	if b.client != nil {
		b.client.Close()
	}
	return nil
}

func (b *Backend) StartRun(run *core.Run) error {
	r := *run
	b.run = &r
	return nil
}

func (b *Backend) RecordStep(step *core.Step) error {
	if b.writer == nil {
		return ErrNotInitialized
	}
	if b.run == nil {
		return ErrNoActiveRun
	}
	for _, s := range step.States {
		b.writer.WritePoint(statePoint(b.run, step.Timestamp, s))
	}
	return nil
}

// EndRun flushes the points of the finished run.
func (b *Backend) EndRun() error {
	if b.writer == nil {
		return ErrNotInitialized
	}
	if b.run == nil {
		return ErrNoActiveRun
	}
	b.writer.Flush()
	b.run = nil
	return nil
}

func statePoint(run *core.Run, timestamp float64, s vehicle.State) *influxdb2_write.Point {
	tags := map[string]string{
		"simulation_id": run.SimulationID,
		"vehicle_id":    strconv.FormatUint(uint64(s.VehicleID), 10),
		"role":          string(s.Role),
	}
	fields := map[string]any{
		"x":         s.Position,
		"v":         s.Speed,
		"a":         s.Acceleration,
		"proposed":  s.Proposed,
		"spacing":   s.Spacing,
		"speed_gap": s.SpeedGap,
	}
	return influxdb2_write.NewPoint(Measurement, tags, fields, run.WallTime(timestamp))
}
