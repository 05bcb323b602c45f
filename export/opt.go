package export

import (
	schema "github.com/opendatakit-go/export-core/schema"
	trace "go.opentelemetry.io/otel/trace"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Logger is the minimal structured-logging surface Export needs; production
// callers typically pass an adapter over github.com/mutablelogic/go-server's
// pkg/logger (see cmd/export-core/logger.go).
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything. It is the default when no logger is given.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Opt configures one Export call.
type Opt func(*opts) error

type opts struct {
	sink   schema.EventSink
	logger Logger
	tracer trace.Tracer
}

////////////////////////////////////////////////////////////////////////////////
// OPTIONS

func WithEventSink(sink schema.EventSink) Opt {
	return func(o *opts) error {
		o.sink = sink
		return nil
	}
}

func WithLogger(logger Logger) Opt {
	return func(o *opts) error {
		o.logger = logger
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Opt {
	return func(o *opts) error {
		o.tracer = tracer
		return nil
	}
}

func applyOpts(opt []Opt) (opts, error) {
	o := opts{sink: schema.NopSink{}, logger: NopLogger{}}
	for _, fn := range opt {
		if err := fn(&o); err != nil {
			return opts{}, err
		}
	}
	return o, nil
}
