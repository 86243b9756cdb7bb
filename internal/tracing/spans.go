package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrBot           = "karajan.bot"
	AttrUpdateID      = "karajan.update_id"
	AttrCorrelationID = "karajan.correlation_id"
	AttrSource        = "karajan.source"
	AttrRuntime       = "karajan.wasm.runtime"
	AttrABI           = "karajan.wasm.abi"
	AttrErrorType     = "error.type"
)

const (
	SpanUpdateProcess = "karajan.update.process"
	SpanGuestCall     = "karajan.guest.call"
)

// StartSpan starts a new span with the given name and options.
// If tracer is nil, the span already in ctx is returned.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// SetSpanError records an error on the span and sets the status to Error.
func SetSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

func BotAttr(name string) attribute.KeyValue {
	return attribute.String(AttrBot, name)
}

func UpdateIDAttr(id int64) attribute.KeyValue {
	return attribute.Int64(AttrUpdateID, id)
}

func CorrelationAttr(id string) attribute.KeyValue {
	return attribute.String(AttrCorrelationID, id)
}

func SourceAttr(name string) attribute.KeyValue {
	return attribute.String(AttrSource, name)
}

func RuntimeAttr(name string) attribute.KeyValue {
	return attribute.String(AttrRuntime, name)
}

func ErrorTypeAttr(errType string) attribute.KeyValue {
	return attribute.String(AttrErrorType, errType)
}

// IsTraced reports whether ctx carries a valid recording span.
func IsTraced(ctx context.Context) bool {
	span := trace.SpanFromContext(ctx)
	return span.SpanContext().IsValid() && span.IsRecording()
}
