package bridge

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "objbridge"

// startCallSpan opens the client span of an outgoing call. It ends when
// the call's future settles.
func (b *Bridge) startCallSpan(p *Proxy, method string, callID uint64) trace.Span {
	_, span := b.tracer.Start(
		context.Background(),
		"objbridge.call "+p.typ+"."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("objbridge.bridge_id", b.id),
			attribute.String("objbridge.type", p.typ),
			attribute.String("objbridge.method", method),
			attribute.Int64("objbridge.object_id", int64(p.id)),
			attribute.Int64("objbridge.call_id", int64(callID)),
		),
	)
	return span
}

// startInvokeSpan opens the server span around a method invocation.
func (b *Bridge) startInvokeSpan(in inboundCall) trace.Span {
	typ := ""
	if in.info != nil {
		typ = in.info.Name
	}
	_, span := b.tracer.Start(
		context.Background(),
		"objbridge.invoke "+typ+"."+in.call.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("objbridge.bridge_id", b.id),
			attribute.String("objbridge.type", typ),
			attribute.String("objbridge.method", in.call.Method),
			attribute.Int64("objbridge.object_id", int64(in.call.ID)),
			attribute.Int64("objbridge.call_id", int64(in.call.CallID)),
		),
	)
	return span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
