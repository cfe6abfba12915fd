package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Input formats accepted by DecodeInput.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFromPath guesses the input format from a file extension, defaulting to JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeInput parses a SimulationInput in the given format.
func DecodeInput(data []byte, format string) (SimulationInput, error) {
	var input SimulationInput
	switch strings.ToLower(format) {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &input); err != nil {
			return SimulationInput{}, fmt.Errorf("invalid input JSON: %w", err)
		}
	case FormatYAML, "yml":
		if err := yaml.Unmarshal(data, &input); err != nil {
			return SimulationInput{}, fmt.Errorf("invalid input YAML: %w", err)
		}
	default:
		return SimulationInput{}, fmt.Errorf("unknown input format %q", format)
	}
	return input, nil
}

// RunYAML runs a YAML-encoded SimulationInput and returns the YAML-encoded log.
func RunYAML(yamlInput []byte) ([]byte, error) {
	input, err := DecodeInput(yamlInput, FormatYAML)
	if err != nil {
		return nil, err
	}

	e, err := NewEngine(input)
	if err != nil {
		return nil, err
	}

	simLog, err := e.Run(context.Background())
	if err != nil {
		return nil, err
	}

	out, err := yaml.Marshal(simLog)
	if err != nil {
		return nil, fmt.Errorf("marshaling output: %w", err)
	}
	return out, nil
}
