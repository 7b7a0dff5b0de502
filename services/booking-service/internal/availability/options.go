package availability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/md-rashed-zaman/apptbook/availability"

type Option func(*options)

type options struct {
	now          func() time.Time
	queryTimeout time.Duration
	tracer       trace.Tracer
}

// WithClock replaces time.Now. The clock is read once per call.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithQueryTimeout bounds every repository call. Zero disables the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) { o.queryTimeout = d }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:          time.Now,
		queryTimeout: 2 * time.Second,
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// query runs one repository call under the per-call timeout and classifies its error.
func (o options) query(ctx context.Context, op string, fn func(context.Context) error) error {
	if o.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.queryTimeout)
		defer cancel()
	}
	return Transient(op, fn(ctx))
}
