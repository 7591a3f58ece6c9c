package services

import (
	"time"

	"github.com/dlms-org/apiserver/internal/metrics"
	"github.com/rs/zerolog"
)

// Option configures optional collaborators shared by the services.
type Option func(*options)

type options struct {
	logger    zerolog.Logger
	events    EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	newNumber NumberGenerator
}

func newOptions(opts []Option) options {
	o := options{
		logger:    zerolog.Nop(),
		now:       time.Now,
		newNumber: RandomLicenseNumber,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used by a service.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEvents publishes domain events through p.
func WithEvents(p EventPublisher) Option {
	return func(o *options) { o.events = p }
}

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithNumberGenerator overrides how license numbers are generated.
func WithNumberGenerator(g NumberGenerator) Option {
	return func(o *options) { o.newNumber = g }
}
