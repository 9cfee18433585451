package monitor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/arwaypoint/engine/internal/monitor"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
