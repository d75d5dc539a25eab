package api

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/reelgate/reelgate/internal/adapter/outbound/api"

// instruments records client-side request metrics.
type instruments struct {
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) *instruments {
	meter := mp.Meter(instrumentationName)
	in := &instruments{}
	var err error
	in.duration, err = meter.Float64Histogram("http.client.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of API requests that produced a response"))
	if err != nil {
		otel.Handle(err)
	}
	in.failures, err = meter.Int64Counter("reelgate.api.network_failures",
		metric.WithDescription("API requests that failed before a response arrived"))
	if err != nil {
		otel.Handle(err)
	}
	return in
}

func (in *instruments) recordResponse(ctx context.Context, method string, status int, d time.Duration) {
	if in.duration == nil {
		return
	}
	in.duration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.Int("http.response.status_code", status),
	))
}

func (in *instruments) recordFailure(ctx context.Context, method string) {
	if in.failures == nil {
		return
	}
	in.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("http.request.method", method)))
}
