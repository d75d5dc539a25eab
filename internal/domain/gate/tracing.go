package gate

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/reelgate/reelgate/internal/domain/gate")

func callAttributes(call *Call) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("http.request.method", call.Method),
		attribute.String("url.path", call.Path),
	)
}
