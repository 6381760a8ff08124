package engine

import (
	"log/slog"
	"time"
)

// LifecycleReport describes one lifecycle tick.
type LifecycleReport struct {
	Aged         int     `json:"aged"`
	Died         []Ghost `json:"died"`
	GhostsPruned int     `json:"ghosts_pruned"`
	NodeCount    int     `json:"node_count"`
}

// LifecycleTick ages every node and drains vitality: twice as fast when the
// node has no links, half as fast with five or more. Mortal nodes then die
// when vitality is exhausted or when they are isolated and nearly unstable.
// Each death leaves a ghost. Expired ghosts are pruned last.
func (e *Engine) LifecycleTick() LifecycleReport {
	start := time.Now()
	e.mu.Lock()
	rep := e.lifecycleLocked()
	sink, log := e.sink, e.log
	e.mu.Unlock()

	opDuration.WithLabelValues("lifecycle").Observe(time.Since(start).Seconds())
	if sink != nil {
		for _, g := range rep.Died {
			if err := sink.RecordGhost(g); err != nil {
				log.Warn("record ghost failed", "name", g.Name, "error", err)
			}
		}
	}
	return rep
}

func (e *Engine) lifecycleLocked() LifecycleReport {
	var rep LifecycleReport
	type death struct{ name, reason string }
	var dying []death

	for _, name := range e.sortedNamesLocked(nil) {
		node := e.nodes[name]
		node.Age++
		rep.Aged++

		rate := e.cfg.VitalityDecay
		switch links := len(node.Links); {
		case links == 0:
			rate *= 2
		case links >= 5:
			rate *= 0.5
		}
		node.Vitality = clamp01(node.Vitality - rate)

		if !node.Kind.rules().mortal {
			continue
		}
		switch {
		case node.Vitality <= e.cfg.VitalityFloor:
			dying = append(dying, death{name, DeathVitality})
		case node.Stability <= e.cfg.StabilityFloor && len(node.Links) == 0:
			dying = append(dying, death{name, DeathIsolated})
		}
	}

	now := e.now()
	for _, d := range dying {
		g := newGhost(e.nodes[d.name], d.reason, e.entropyLocked(), e.coherenceLocked(), now)
		e.ghosts.add(g)
		e.removeLocked(d.name)
		rep.Died = append(rep.Died, g)
		deaths.WithLabelValues(d.reason).Inc()
		e.logLocked(slog.LevelWarn, "node died", "name", d.name, "reason", d.reason)
	}

	rep.GhostsPruned = e.ghosts.prune(now)
	if rep.GhostsPruned > 0 {
		e.logLocked(slog.LevelInfo, "ghosts pruned", "count", rep.GhostsPruned)
	}
	rep.NodeCount = len(e.nodes)
	e.observeLocked()
	return rep
}
