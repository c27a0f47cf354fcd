package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/movapages/angular-url-form-sync/pkg/fetch"
	"github.com/movapages/angular-url-form-sync/pkg/filter"
	"github.com/movapages/angular-url-form-sync/pkg/urlsync"
)

// Default tracer name for sync instrumentation.
const defaultTracerName = "urlsync"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "urlsync").
	TracerName string

	// AttributeExtractor adds custom attributes to every span.
	AttributeExtractor func(ev *urlsync.Event) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) { c.TracerName = name }
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(fn func(ev *urlsync.Event) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) { c.AttributeExtractor = fn }
}

// OpenTelemetry creates engine middleware that emits one span per sync
// pass. The tracer comes from the global provider; configure it in
// main() before starting the engine.
//
// Example:
//
//	eng, _ := urlsync.New(state, sink,
//	    urlsync.WithMiddleware(middleware.OpenTelemetry(
//	        middleware.WithTracerName("my-screen"),
//	    )),
//	)
func OpenTelemetry(opts ...OTelOption) urlsync.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return urlsync.MiddlewareFunc(func(ev *urlsync.Event, next func() error) error {
		_, span := config.tracer.Start(
			context.Background(),
			"urlsync."+ev.Kind.String(),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next()

		attrs := []attribute.KeyValue{
			attribute.Int("urlsync.fields", ev.Fields),
			attribute.Int("urlsync.diagnostics", ev.Diagnostics),
		}
		if ev.Kind == urlsync.EventProject {
			attrs = append(attrs, attribute.Int64("urlsync.tag", int64(ev.Tag)))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(ev)...)
		}
		span.SetAttributes(attrs...)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// TraceFetcher wraps a Fetcher so every invocation runs inside a span.
// Cancellation is recorded as an event, not an error: a superseded fetch
// is normal operation, not a failure.
func TraceFetcher[R any](f fetch.Fetcher[R], opts ...OTelOption) fetch.Fetcher[R] {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	tracer := otel.Tracer(config.TracerName)

	return fetch.FetcherFunc[R](func(ctx context.Context, snap filter.Snapshot) (R, error) {
		ctx, span := tracer.Start(ctx, "urlsync.fetch",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attribute.Int("urlsync.snapshot_fields", snap.Len())),
		)
		defer span.End()

		payload, err := f.Fetch(ctx, snap)

		switch {
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			span.AddEvent("cancelled")
			span.SetStatus(codes.Ok, "")
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		default:
			span.SetStatus(codes.Ok, "")
		}
		return payload, err
	})
}
