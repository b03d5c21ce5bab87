// Package service runs the donor matching pipeline: per-locus relation
// streams, the locus-by-locus join, and the search orchestration around it.
package service

import (
	"log/slog"

	"go.opentelemetry.io/otel"

	"donormatch/internal/matching/filtering"
	"donormatch/internal/matching/metrics"
	"donormatch/internal/matching/policy"
	"donormatch/internal/matching/simplifier"
)

const (
	DefaultBatchSize             = 250_000
	DefaultHydrationBatchSize    = 1_000
	DefaultMaxConcurrentVariants = 4
)

var tracer = otel.Tracer("donormatch.matching")

type options struct {
	logger                *slog.Logger
	metrics               *metrics.Metrics
	batchSize             int
	hydrationBatchSize    int
	maxConcurrentVariants int
	locusOrder            *policy.MatchCriteriaAnalyser
	dbFiltering           *policy.DatabaseFilteringAnalyser
	simplifier            *simplifier.Simplifier
	filtering             *filtering.Service
}

// Option configures any of the matching services. Options that do not apply
// to a service are ignored by it.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithBatchSize sets how many accumulated donors are joined against the next
// locus per storage query. Non-positive values keep the default.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithHydrationBatchSize sets how many results are hydrated per donor lookup.
func WithHydrationBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.hydrationBatchSize = n
		}
	}
}

// WithMaxConcurrentVariants bounds how many criteria variants run at once.
func WithMaxConcurrentVariants(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrentVariants = n
		}
	}
}

func WithLocusOrder(a *policy.MatchCriteriaAnalyser) Option {
	return func(o *options) {
		o.locusOrder = a
	}
}

func WithDatabaseFiltering(a *policy.DatabaseFilteringAnalyser) Option {
	return func(o *options) {
		o.dbFiltering = a
	}
}

func WithSimplifier(s *simplifier.Simplifier) Option {
	return func(o *options) {
		o.simplifier = s
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:                slog.Default(),
		batchSize:             DefaultBatchSize,
		hydrationBatchSize:    DefaultHydrationBatchSize,
		maxConcurrentVariants: DefaultMaxConcurrentVariants,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locusOrder == nil {
		o.locusOrder = policy.NewMatchCriteriaAnalyser(nil)
	}
	if o.dbFiltering == nil {
		o.dbFiltering = policy.NewDatabaseFilteringAnalyser()
	}
	if o.simplifier == nil {
		o.simplifier = simplifier.New(nil)
	}
	if o.filtering == nil {
		o.filtering = filtering.New()
	}
	return o
}
