// Package tracing wraps otel spans with the error-aware lifecycle the rest of
// the codebase relies on: start a span at the top of an operation, defer
// End(err) on the named error return, and the span status follows the result.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Span ties an otel span to the operation logger it was started with.
type Span struct {
	span   trace.Span
	logger *zap.Logger
	ctx    context.Context
}

func StartSpan(ctx context.Context, tracer trace.Tracer, logger *zap.Logger, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))

	return ctx, &Span{
		span:   span,
		logger: logger,
		ctx:    ctx,
	}
}

// End closes the span, marking it failed when the operation returned an
// error.
func (s *Span) End(err error) {
	if err != nil {
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}

	s.span.End()
}

func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// URL and Selector are the two attributes browser operations attach most;
// naming them once keeps the keys consistent across spans.
func URL(url string) attribute.KeyValue {
	return attribute.String("url", url)
}

func Selector(selector string) attribute.KeyValue {
	return attribute.String("selector", selector)
}
