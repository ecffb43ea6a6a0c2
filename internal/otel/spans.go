package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Standard attribute keys for Taskwire spans.
var (
	AttrTaskID         = attribute.Key("taskwire.task.id")
	AttrNotificationID = attribute.Key("taskwire.notification.id")
	AttrOrganizationID = attribute.Key("taskwire.org.id")
	AttrEventKind      = attribute.Key("taskwire.event.kind")
	AttrHTTPMethod     = attribute.Key("taskwire.http.method")
	AttrHTTPPath       = attribute.Key("taskwire.http.path")
	AttrSyncState      = attribute.Key("taskwire.sync.state")
	AttrChannel        = attribute.Key("taskwire.channel")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartClientSpan starts a span for an outbound call (REST API, socket dial).
func StartClientSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
