package engine

import (
	"log/slog"
	"math"
)

// Decay applies idle decay to nodes whose kind decays (dynamic only):
//
//	stability = s0 * 0.5^(idle / DecayHalfLife)
//
// where s0 is the stability at LastTouched and idle is measured from it, so
// repeated calls do not compound. The result is floored at DecayFloor
// and decay only ever lowers stability; a node already at or below the floor
// is left alone. Decay does not count as a touch. Returns nodes changed.
func (e *Engine) Decay() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decayLocked()
}

func (e *Engine) decayLocked() int {
	if e.cfg.DecayHalfLife <= 0 {
		return 0
	}
	now := e.now()
	halfLife := e.cfg.DecayHalfLife.Seconds()
	updated := 0

	for _, name := range e.sortedNamesLocked(func(n *Node) bool { return n.Kind.rules().decays }) {
		node := e.nodes[name]
		idle := now.Sub(node.LastTouched).Seconds()
		if idle <= 0 {
			continue
		}

		next := node.baseline * math.Pow(0.5, idle/halfLife)
		if next < e.cfg.DecayFloor {
			next = e.cfg.DecayFloor
		}
		if next >= node.Stability {
			continue
		}
		node.Stability = next
		updated++
	}

	if updated > 0 {
		e.logLocked(slog.LevelInfo, "idle decay", "updated", updated)
		e.observeLocked()
	}
	return updated
}
