package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/cxd309/tampere-platoon/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
