package otelhelper

import (
	"errors"

	"github.com/dukex/actionhub/pkg/protocol"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed. Classified errors also tag the span with
// their kind and code.
func SetError(span trace.Span, err error) {
	if err == nil {
		return
	}

	var classified *protocol.Error
	if errors.As(err, &classified) {
		span.SetAttributes(
			attribute.String("actionhub.error.kind", string(classified.Kind)),
			attribute.String("actionhub.error.code", classified.Code),
		)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
