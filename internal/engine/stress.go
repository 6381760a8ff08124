package engine

import (
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

// Operation names a bulk operation in a Report.
type Operation string

const (
	OpStress      Operation = "stress"
	OpRecovery    Operation = "recovery"
	OpRecalibrate Operation = "recalibrate"
)

// Result tags a Report. Callers must check it: a refused stress is not an error.
type Result string

const (
	ResultCompleted Result = "completed"
	ResultRefused   Result = "refused"
)

// Refusal reasons.
const (
	ReasonEntropyCeiling = "entropy_ceiling"
	ReasonCooldown       = "cooldown"
)

// Report describes one bulk operation. Improved only says the coherence
// metric went up between the start and the end of the run. RetryAfter is in
// seconds and set only for cooldown refusals.
type Report struct {
	ID               string        `json:"id"`
	Operation        Operation     `json:"operation"`
	Result           Result        `json:"result"`
	Reason           string        `json:"reason,omitempty"`
	RetryAfter       float64       `json:"retry_after_seconds,omitempty"`
	Intensity        float64       `json:"intensity,omitempty"`
	Cycles           int           `json:"cycles"`
	InitialCoherence float64       `json:"initial_coherence"`
	FinalCoherence   float64       `json:"final_coherence"`
	InitialEntropy   float64       `json:"initial_entropy"`
	FinalEntropy     float64       `json:"final_entropy"`
	Improved         bool          `json:"improved"`
	NodesTouched     int           `json:"nodes_touched"`
	LinksFormed      int           `json:"links_formed"`
	Depth            int           `json:"recursive_depth"`
	StartedAt        time.Time     `json:"started_at"`
}

// Refused reports whether the operation was rejected before it started.
func (r Report) Refused() bool { return r.Result == ResultRefused }

func (e *Engine) newReportLocked(op Operation, cycles int) Report {
	return Report{
		ID:               uuid.NewString(),
		Operation:        op,
		Cycles:           cycles,
		InitialCoherence: e.coherenceLocked(),
		InitialEntropy:   e.entropyLocked(),
		StartedAt:        e.now(),
	}
}

func (e *Engine) finishReportLocked(r *Report) {
	r.Result = ResultCompleted
	r.FinalCoherence = e.coherenceLocked()
	r.FinalEntropy = e.entropyLocked()
	r.Improved = r.FinalCoherence > r.InitialCoherence
	r.Depth = e.depth
	e.observeLocked()
}

// ApplyStress perturbs a small random sample of stress-eligible nodes for
// each cycle: each is raised by its archetype's adaptation when intensity is
// above the pivot and lowered otherwise. A link sweep runs every
// LinkSweepPeriod cycles, starting with the first.
//
// The run is refused, with no state change, when entropy exceeds the
// configured ceiling or the previous stress finished within the cooldown.
func (e *Engine) ApplyStress(intensity float64, cycles int) Report {
	start := time.Now()
	e.mu.Lock()
	r := e.stressLocked(intensity, cycles)
	sink, log := e.sink, e.log
	e.mu.Unlock()

	opDuration.WithLabelValues(string(OpStress)).Observe(time.Since(start).Seconds())
	stressRuns.WithLabelValues(string(r.Result)).Inc()
	record(sink, log, r)
	return r
}

func (e *Engine) stressLocked(intensity float64, cycles int) Report {
	if math.IsNaN(intensity) {
		intensity = 0
	}
	intensity = clamp01(intensity)
	if cycles < 0 {
		cycles = 0
	}

	r := e.newReportLocked(OpStress, cycles)
	r.Intensity = intensity

	if reason, wait := e.consentLocked(r.InitialEntropy); reason != "" {
		r.Result = ResultRefused
		r.Reason = reason
		r.RetryAfter = wait.Seconds()
		r.FinalCoherence = r.InitialCoherence
		r.FinalEntropy = r.InitialEntropy
		r.Depth = e.depth
		e.logLocked(slog.LevelWarn, "stress refused", "reason", reason, "entropy", round3(r.InitialEntropy))
		return r
	}

	eligible := e.sortedNamesLocked(func(n *Node) bool { return n.Kind.rules().stress })
	touched := make(map[string]struct{})
	now := e.now()

	for cycle := 0; cycle < cycles; cycle++ {
		for _, name := range e.sampleLocked(eligible, e.cfg.StressSampleSize) {
			node := e.nodes[name]
			adapt := node.Archetype.Adaptation(intensity, e.cfg.AdaptationRate)
			if intensity > e.cfg.StressPivot {
				node.setStability(node.Stability+adapt, now)
			} else {
				node.setStability(node.Stability-adapt, now)
			}
			node.refresh(math.Abs(adapt) * 0.1)
			touched[name] = struct{}{}
		}

		if e.cfg.LinkSweepPeriod > 0 && cycle%e.cfg.LinkSweepPeriod == 0 {
			r.LinksFormed += e.formLinksLocked(e.cfg.LinkSweepAttempts)
		}

		e.depth += e.cfg.DepthStep
		if e.cfg.MaxDepth > 0 && e.depth > e.cfg.MaxDepth {
			e.depth = e.cfg.MaxDepth
		}
	}

	e.lastStress = e.now()
	r.NodesTouched = len(touched)
	e.finishReportLocked(&r)
	e.logLocked(slog.LevelInfo, "stress completed",
		"intensity", intensity, "cycles", cycles,
		"coherence", round3(r.FinalCoherence), "entropy", round3(r.FinalEntropy),
		"improved", r.Improved)
	return r
}

// consentLocked returns a refusal reason, or "" when stress may run.
func (e *Engine) consentLocked(entropy float64) (string, time.Duration) {
	if entropy > e.cfg.EntropyCeiling {
		return ReasonEntropyCeiling, 0
	}
	if e.cfg.Cooldown > 0 && !e.lastStress.IsZero() {
		if elapsed := e.now().Sub(e.lastStress); elapsed < e.cfg.Cooldown {
			return ReasonCooldown, e.cfg.Cooldown - elapsed
		}
	}
	return "", 0
}

// sampleLocked picks up to k distinct names uniformly at random.
func (e *Engine) sampleLocked(names []string, k int) []string {
	if k >= len(names) {
		k = len(names)
	}
	pool := append([]string(nil), names...)
	for i := 0; i < k; i++ {
		j := i + e.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func record(sink Sink, log *slog.Logger, r Report) {
	if sink == nil {
		return
	}
	if err := sink.RecordReport(r); err != nil {
		log.Warn("record report failed", "id", r.ID, "operation", r.Operation, "error", err)
	}
}
