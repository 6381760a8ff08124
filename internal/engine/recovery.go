package engine

import (
	"log/slog"
	"time"
)

// ghostAbsorbChance is the per-cycle chance that Recalibrate consumes a ghost.
const ghostAbsorbChance = 0.1

// ApplyRecovery raises every recovery-eligible node by a random amount in
// [RecoveryMin, RecoveryMax) per cycle. It is never refused.
func (e *Engine) ApplyRecovery(cycles int) Report {
	start := time.Now()
	e.mu.Lock()
	r := e.recoveryLocked(cycles)
	sink, log := e.sink, e.log
	e.mu.Unlock()

	opDuration.WithLabelValues(string(OpRecovery)).Observe(time.Since(start).Seconds())
	recoveryRuns.Inc()
	record(sink, log, r)
	return r
}

func (e *Engine) recoveryLocked(cycles int) Report {
	if cycles < 0 {
		cycles = 0
	}
	r := e.newReportLocked(OpRecovery, cycles)
	eligible := e.sortedNamesLocked(func(n *Node) bool { return n.Kind.rules().recovery })
	now := e.now()

	for cycle := 0; cycle < cycles; cycle++ {
		for _, name := range eligible {
			node := e.nodes[name]
			node.setStability(node.Stability+e.uniform(e.cfg.RecoveryMin, e.cfg.RecoveryMax), now)
		}
	}
	if cycles > 0 {
		r.NodesTouched = len(eligible)
	}

	e.finishReportLocked(&r)
	e.logLocked(slog.LevelInfo, "recovery completed",
		"cycles", cycles, "coherence", round3(r.FinalCoherence), "entropy", round3(r.FinalEntropy))
	return r
}

// Recalibrate nudges recovery-eligible stabilizers up by up to 0.005 per
// cycle and runs a link sweep each cycle. Occasionally a ghost is absorbed:
// every eligible node gains 0.001 and the ghost is dropped.
func (e *Engine) Recalibrate(cycles int) Report {
	start := time.Now()
	e.mu.Lock()
	r := e.recalibrateLocked(cycles)
	sink, log := e.sink, e.log
	e.mu.Unlock()

	opDuration.WithLabelValues(string(OpRecalibrate)).Observe(time.Since(start).Seconds())
	record(sink, log, r)
	return r
}

func (e *Engine) recalibrateLocked(cycles int) Report {
	if cycles < 0 {
		cycles = 0
	}
	r := e.newReportLocked(OpRecalibrate, cycles)
	eligible := e.sortedNamesLocked(func(n *Node) bool { return n.Kind.rules().recovery })
	touched := make(map[string]struct{})
	now := e.now()

	for cycle := 0; cycle < cycles; cycle++ {
		for _, name := range eligible {
			node := e.nodes[name]
			if node.Archetype != ArchetypeStabilizer {
				continue
			}
			node.setStability(node.Stability+0.005*e.rng.Float64(), now)
			touched[name] = struct{}{}
		}

		if ghosts := e.ghosts.list(); len(ghosts) > 0 {
			g := ghosts[e.rng.Intn(len(ghosts))]
			if e.rng.Float64() < ghostAbsorbChance {
				for _, name := range eligible {
					node := e.nodes[name]
					node.setStability(node.Stability+0.001, now)
					touched[name] = struct{}{}
				}
				e.ghosts.remove(g.Name)
				e.logLocked(slog.LevelInfo, "ghost absorbed", "ghost", g.Name)
			}
		}

		r.LinksFormed += e.formLinksLocked(e.cfg.LinkSweepAttempts)
	}

	r.NodesTouched = len(touched)
	e.finishReportLocked(&r)
	e.logLocked(slog.LevelInfo, "recalibration completed",
		"cycles", cycles, "entropy_before", round3(r.InitialEntropy), "entropy_after", round3(r.FinalEntropy))
	return r
}
