// Command tampere-platoon reads a SimulationInput (JSON or YAML) from a file argument
// (or stdin), runs the simulation, and writes the SimulationLog JSON to stdout.
//
// Logs go to stderr. Trajectories are additionally recorded to the storage backend
// selected by the configuration file or PLATOON_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/cxd309/tampere-platoon/internal/config"
	"github.com/cxd309/tampere-platoon/internal/engine"
	"github.com/cxd309/tampere-platoon/internal/logging"
	"github.com/cxd309/tampere-platoon/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (yaml, json or toml)")
	format := flag.String("format", "", "input format: json or yaml (default: from file extension, else json)")
	flag.Parse()

	if err := run(*configPath, *format, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "simulation error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, format, inputPath string) error {
	if err := config.Load(configPath); err != nil {
		return err
	}
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	data, err := readInput(inputPath)
	if err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	if format == "" && inputPath != "" {
		format = engine.FormatFromPath(inputPath)
	}

	input, err := engine.DecodeInput(data, format)
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithLogger(logging.Component(logger, "engine"))}

	backend, err := storage.NewBackend(cfg.Storage, logger)
	if err != nil {
		return err
	}
	if backend != nil {
		if err := backend.Init(); err != nil {
			return fmt.Errorf("initializing %s storage: %w", cfg.Storage.Type, err)
		}
		defer closeBackend(backend, logger)
		opts = append(opts, engine.WithRecorder(backend))
	}

	e, err := engine.NewEngine(input, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	simLog, err := e.Run(ctx)
	if err != nil {
		return err
	}

	out, err := json.Marshal(simLog)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func readInput(path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(os.Stdin)
}

func closeBackend(b storage.Backend, logger zerolog.Logger) {
	if err := b.Close(); err != nil {
		logger.Error().Err(err).Msg("closing storage")
	}
}
