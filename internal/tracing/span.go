package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/http2/hpack"
)

// StartWorkerSpan starts the span covering one worker's connection.
func StartWorkerSpan(ctx context.Context, tracer trace.Tracer, worker int, target string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "rapidreset.worker",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.Int("rapidreset.worker", worker),
		attribute.String("network.protocol.name", "http"),
		attribute.String("network.protocol.version", "2"),
	)
	if target != "" {
		span.SetAttributes(attribute.String("url.full", target))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHeaderFields returns the trace context of ctx as lower-case HPACK
// header fields, ready to append to a HEADERS frame.
func InjectHeaderFields(ctx context.Context) []hpack.HeaderField {
	carrier := &headerFieldCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.fields
}

// headerFieldCarrier adapts an HPACK field list to propagation.TextMapCarrier.
type headerFieldCarrier struct {
	fields []hpack.HeaderField
}

func (c *headerFieldCarrier) Get(key string) string {
	key = strings.ToLower(key)
	for _, f := range c.fields {
		if f.Name == key {
			return f.Value
		}
	}
	return ""
}

func (c *headerFieldCarrier) Set(key, value string) {
	key = strings.ToLower(key)
	for i := range c.fields {
		if c.fields[i].Name == key {
			c.fields[i].Value = value
			return
		}
	}
	c.fields = append(c.fields, hpack.HeaderField{Name: key, Value: value})
}

func (c *headerFieldCarrier) Keys() []string {
	keys := make([]string, 0, len(c.fields))
	for _, f := range c.fields {
		keys = append(keys, f.Name)
	}
	return keys
}
