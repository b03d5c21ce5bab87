package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the matching pipeline.
// Tracks per-locus stage cost and survivors, plus whole-search shape.
type Metrics struct {
	LocusStageDuration  *prometheus.HistogramVec
	LocusStageSurvivors *prometheus.HistogramVec
	VariantsPerSearch   prometheus.Histogram
	SearchDuration      prometheus.Histogram
	ResultsPerSearch    prometheus.Histogram
	HydrationBatches    prometheus.Counter
	DonorsNotFound      prometheus.Counter
}

var countBuckets = []float64{0, 1, 10, 100, 1_000, 10_000, 100_000, 1_000_000}

// New creates the matching metrics and registers them with reg.
// A nil reg creates unregistered collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LocusStageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donormatch_locus_stage_duration_seconds",
			Help:    "Duration of one locus stage of donor matching",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"locus", "mode"}),
		LocusStageSurvivors: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donormatch_locus_stage_survivors",
			Help:    "Donors remaining after a locus stage",
			Buckets: countBuckets,
		}, []string{"locus"}),
		VariantsPerSearch: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "donormatch_criteria_variants_per_search",
			Help:    "Number of criteria variants a search was split into",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 12, 16},
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "donormatch_search_duration_seconds",
			Help:    "Duration of a full search including hydration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		ResultsPerSearch: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "donormatch_results_per_search",
			Help:    "Match results returned by a search",
			Buckets: countBuckets,
		}),
		HydrationBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "donormatch_hydration_batches_total",
			Help: "Total number of donor hydration batches loaded",
		}),
		DonorsNotFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "donormatch_hydration_donors_not_found_total",
			Help: "Matched donors missing from the donor repository at hydration time",
		}),
	}
}

// ObserveLocusStage records one locus stage. Mode is "seed", "merge" or "batched".
// Call with time.Now() at the start of the stage.
func (m *Metrics) ObserveLocusStage(locus, mode string, start time.Time, survivors int) {
	if m == nil {
		return
	}
	m.LocusStageDuration.WithLabelValues(locus, mode).Observe(time.Since(start).Seconds())
	m.LocusStageSurvivors.WithLabelValues(locus).Observe(float64(survivors))
}

func (m *Metrics) ObserveVariants(count int) {
	if m == nil {
		return
	}
	m.VariantsPerSearch.Observe(float64(count))
}

// ObserveSearch records the duration and result count of a finished search.
func (m *Metrics) ObserveSearch(start time.Time, results int) {
	if m == nil {
		return
	}
	m.SearchDuration.Observe(time.Since(start).Seconds())
	m.ResultsPerSearch.Observe(float64(results))
}

func (m *Metrics) IncrementHydrationBatches() {
	if m == nil {
		return
	}
	m.HydrationBatches.Inc()
}

func (m *Metrics) AddDonorsNotFound(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DonorsNotFound.Add(float64(n))
}
