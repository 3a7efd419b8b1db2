package metrics

import "time"

// BuilderOutcomeLabel categorizes a single builder invocation's outcome.
type BuilderOutcomeLabel string

const (
	BuilderOutcomeBuilt   BuilderOutcomeLabel = "built"
	BuilderOutcomeReused  BuilderOutcomeLabel = "reused"
	BuilderOutcomeDB      BuilderOutcomeLabel = "database"
	BuilderOutcomeFailed  BuilderOutcomeLabel = "failed"
	BuilderOutcomeMissing BuilderOutcomeLabel = "missing"
)

// PhaseResultLabel enumerates per-phase result categories for counters.
type PhaseResultLabel string

const (
	PhaseResultSuccess PhaseResultLabel = "success"
	PhaseResultWarning PhaseResultLabel = "warning"
	PhaseResultFatal   PhaseResultLabel = "fatal"
)

// Recorder defines observability hooks for pipeline phase and mesh-load
// metrics. Implementations may forward to Prometheus, OpenTelemetry, etc.
// A nil-safe NoopRecorder is used when metrics are not configured.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObservePipelineDuration(d time.Duration)
	IncPhaseResult(phase string, result PhaseResultLabel)

	ObserveHashDuration(worker string, d time.Duration)
	IncHashed(surrogate bool)

	IncBuilderOutcome(builder string, outcome BuilderOutcomeLabel)
	ObserveBuilderDuration(builder string, d time.Duration)

	IncReconcilerDelete(performed bool)
	IncReconcilerRefusal()

	ObserveMeshLoadDuration(cacheHit bool, d time.Duration)
	SetMeshACMR(path string, acmr float64)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration)       {}
func (NoopRecorder) ObservePipelineDuration(time.Duration)            {}
func (NoopRecorder) IncPhaseResult(string, PhaseResultLabel)          {}
func (NoopRecorder) ObserveHashDuration(string, time.Duration)        {}
func (NoopRecorder) IncHashed(bool)                                   {}
func (NoopRecorder) IncBuilderOutcome(string, BuilderOutcomeLabel)    {}
func (NoopRecorder) ObserveBuilderDuration(string, time.Duration)     {}
func (NoopRecorder) IncReconcilerDelete(bool)                         {}
func (NoopRecorder) IncReconcilerRefusal()                            {}
func (NoopRecorder) ObserveMeshLoadDuration(bool, time.Duration)      {}
func (NoopRecorder) SetMeshACMR(string, float64)                      {}
