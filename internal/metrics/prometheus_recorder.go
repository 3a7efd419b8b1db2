package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once sync.Once

	phaseDuration    *prom.HistogramVec
	pipelineDuration prom.Histogram
	phaseResults     *prom.CounterVec

	hashDuration *prom.HistogramVec
	hashedTotal  *prom.CounterVec

	builderOutcome  *prom.CounterVec
	builderDuration *prom.HistogramVec

	reconcilerDeletes  *prom.CounterVec
	reconcilerRefusals prom.Counter

	meshLoadDuration *prom.HistogramVec
	meshACMR         *prom.GaugeVec
}

// NewPrometheusRecorder constructs Prometheus metrics and registers them on
// reg, or on a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.phaseDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ogda",
			Name:      "phase_duration_seconds",
			Help:      "Duration of each pipeline phase (load, search, hash, hash_destinations, build, generate, write, reconcile)",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"})
		pr.pipelineDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "ogda",
			Name:      "pipeline_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.phaseResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ogda",
			Name:      "phase_results_total",
			Help:      "Phase result counts by outcome",
		}, []string{"phase", "result"})
		pr.hashDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ogda",
			Name:      "hash_worker_duration_seconds",
			Help:      "Duration of each whole hash-pool run",
			Buckets:   prom.DefBuckets,
		}, []string{"worker"})
		pr.hashedTotal = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ogda",
			Name:      "hashed_items_total",
			Help:      "Items hashed, split by real vs. mtime-surrogate hashing",
		}, []string{"surrogate"})
		pr.builderOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ogda",
			Name:      "builder_outcomes_total",
			Help:      "Builder invocations by outcome (built/reused/database/failed/missing)",
		}, []string{"builder", "outcome"})
		pr.builderDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ogda",
			Name:      "builder_duration_seconds",
			Help:      "Duration of individual builder invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"builder"})
		pr.reconcilerDeletes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "ogda",
			Name:      "reconciler_deletes_total",
			Help:      "Unlisted output files removed, split by whether the delete was actually performed",
		}, []string{"performed"})
		pr.reconcilerRefusals = prom.NewCounter(prom.CounterOpts{
			Namespace: "ogda",
			Name:      "reconciler_refusals_total",
			Help:      "Times the reconciler refused to delete a divergent file set",
		})
		pr.meshLoadDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "ogda",
			Name:      "mesh_load_duration_seconds",
			Help:      "Duration of mesh loads, split by cache hit/miss",
			Buckets:   prom.DefBuckets,
		}, []string{"cache"})
		pr.meshACMR = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "ogda",
			Name:      "mesh_acmr",
			Help:      "Average cache-miss ratio of the most recently optimized mesh, by source path",
		}, []string{"path"})

		reg.MustRegister(
			pr.phaseDuration, pr.pipelineDuration, pr.phaseResults,
			pr.hashDuration, pr.hashedTotal,
			pr.builderOutcome, pr.builderDuration,
			pr.reconcilerDeletes, pr.reconcilerRefusals,
			pr.meshLoadDuration, pr.meshACMR,
		)
	})
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil || p.phaseDuration == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePipelineDuration(d time.Duration) {
	if p == nil || p.pipelineDuration == nil {
		return
	}
	p.pipelineDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPhaseResult(phase string, result PhaseResultLabel) {
	if p == nil || p.phaseResults == nil {
		return
	}
	p.phaseResults.WithLabelValues(phase, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveHashDuration(worker string, d time.Duration) {
	if p == nil || p.hashDuration == nil {
		return
	}
	p.hashDuration.WithLabelValues(worker).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncHashed(surrogate bool) {
	if p == nil || p.hashedTotal == nil {
		return
	}
	label := "false"
	if surrogate {
		label = "true"
	}
	p.hashedTotal.WithLabelValues(label).Inc()
}

func (p *PrometheusRecorder) IncBuilderOutcome(builder string, outcome BuilderOutcomeLabel) {
	if p == nil || p.builderOutcome == nil {
		return
	}
	p.builderOutcome.WithLabelValues(builder, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveBuilderDuration(builder string, d time.Duration) {
	if p == nil || p.builderDuration == nil {
		return
	}
	p.builderDuration.WithLabelValues(builder).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncReconcilerDelete(performed bool) {
	if p == nil || p.reconcilerDeletes == nil {
		return
	}
	label := "false"
	if performed {
		label = "true"
	}
	p.reconcilerDeletes.WithLabelValues(label).Inc()
}

func (p *PrometheusRecorder) IncReconcilerRefusal() {
	if p == nil || p.reconcilerRefusals == nil {
		return
	}
	p.reconcilerRefusals.Inc()
}

func (p *PrometheusRecorder) ObserveMeshLoadDuration(cacheHit bool, d time.Duration) {
	if p == nil || p.meshLoadDuration == nil {
		return
	}
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	p.meshLoadDuration.WithLabelValues(label).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetMeshACMR(path string, acmr float64) {
	if p == nil || p.meshACMR == nil {
		return
	}
	p.meshACMR.WithLabelValues(path).Set(acmr)
}
