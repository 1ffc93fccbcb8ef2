package metrics

import (
	"sync"
	"time"

	"github.com/alejandrodnm/spikebot/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements ports.CycleMetrics using Prometheus.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	marketsSeen   prometheus.Counter
	marketsSkip   prometheus.Counter
	qualifying    prometheus.Counter
	tradesOpened  prometheus.Counter
	tradesClosed  prometheus.Counter
	rejections    *prometheus.CounterVec
	bestScore     prometheus.Gauge
	cashBalance   prometheus.Gauge
	cycleDuration prometheus.Histogram

	mu        sync.RWMutex
	lastCycle time.Time
}

// New creates a recorder with its own registry so tests don't collide on the
// global one.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikebot_cycles_total",
				Help: "Scan cycles by result (ok, fetch, persist, other)",
			},
			[]string{"result"},
		),
		marketsSeen: f.NewCounter(prometheus.CounterOpts{
			Name: "spikebot_markets_fetched_total",
			Help: "Market records received from the source",
		}),
		marketsSkip: f.NewCounter(prometheus.CounterOpts{
			Name: "spikebot_markets_skipped_total",
			Help: "Market records rejected at ingestion",
		}),
		qualifying: f.NewCounter(prometheus.CounterOpts{
			Name: "spikebot_signals_qualifying_total",
			Help: "Signals that met every threshold",
		}),
		tradesOpened: f.NewCounter(prometheus.CounterOpts{
			Name: "spikebot_trades_opened_total",
			Help: "Paper positions opened",
		}),
		tradesClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "spikebot_trades_closed_total",
			Help: "Paper positions closed",
		}),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikebot_ledger_rejections_total",
				Help: "Opportunities refused by the ledger, by reason",
			},
			[]string{"reason"},
		),
		bestScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "spikebot_best_signal_score",
			Help: "Highest signal score in the last cycle",
		}),
		cashBalance: f.NewGauge(prometheus.GaugeOpts{
			Name: "spikebot_cash_balance_usd",
			Help: "Paper cash balance after the last cycle",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spikebot_cycle_duration_seconds",
			Help:    "Duration of a scan cycle in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry exposes the registry for the /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCycle records a completed cycle.
func (r *Recorder) ObserveCycle(c domain.CycleSummary) {
	r.cycles.WithLabelValues("ok").Inc()
	r.marketsSeen.Add(float64(c.Markets))
	r.marketsSkip.Add(float64(c.Skipped))
	r.qualifying.Add(float64(c.Qualifying))
	r.tradesOpened.Add(float64(len(c.Opened)))
	r.tradesClosed.Add(float64(len(c.Closed)))
	for _, rej := range c.Rejections {
		r.rejections.WithLabelValues(rej.Reason).Inc()
	}

	best := 0.0
	for _, s := range c.Signals {
		if s.Score > best {
			best = s.Score
		}
	}
	r.bestScore.Set(best)
	r.cashBalance.Set(c.CashBalance)
	r.cycleDuration.Observe(c.Duration.Seconds())

	r.mu.Lock()
	r.lastCycle = c.StartedAt.Add(c.Duration)
	r.mu.Unlock()
}

// ObserveSkippedCycle records an aborted cycle.
func (r *Recorder) ObserveSkippedCycle(reason string) {
	r.cycles.WithLabelValues(reason).Inc()
}

// LastCycle returns when the last successful cycle finished. Zero if none yet.
func (r *Recorder) LastCycle() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastCycle
}
