package engine

import (
	"log/slog"
	"math"
	"time"
)

// FormLinks makes up to attempts random link attempts and returns how many
// links were recorded. Each attempt picks two distinct nodes; the candidate
// weight is their mean stability plus their mean archetype link bonus.
func (e *Engine) FormLinks(attempts int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	formed := e.formLinksLocked(attempts)
	if formed > 0 {
		e.logLocked(slog.LevelInfo, "links formed", "count", formed)
	}
	e.observeLocked()
	return formed
}

func (e *Engine) formLinksLocked(attempts int) int {
	names := e.sortedNamesLocked(nil)
	if len(names) < 2 {
		return 0
	}
	now := e.now()
	formed := 0
	for i := 0; i < attempts; i++ {
		pair := e.sampleLocked(names, 2)
		a, b := e.nodes[pair[0]], e.nodes[pair[1]]

		w := (a.Stability+b.Stability)/2 + (a.Archetype.LinkBonus()+b.Archetype.LinkBonus())/2
		if w <= e.cfg.LinkThreshold {
			continue
		}
		if _, linked := a.Links[b.Name]; linked {
			continue
		}
		if len(a.Links) >= e.cfg.MaxLinksPerNode || len(b.Links) >= e.cfg.MaxLinksPerNode {
			continue
		}
		connect(a, b, clamp01(w), now)
		a.refresh(0.05)
		b.refresh(0.05)
		formed++
	}
	linksFormed.Add(float64(formed))
	return formed
}

// Link records an explicit symmetric link, replacing any existing weight.
// It fails for unknown or identical names, a non-finite weight, or when
// either side is full.
func (e *Engine) Link(a, b string, weight float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linkLocked(a, b, weight)
}

func (e *Engine) linkLocked(a, b string, weight float64) bool {
	if a == b || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return false
	}
	na, ok := e.nodes[a]
	if !ok {
		return false
	}
	nb, ok := e.nodes[b]
	if !ok {
		return false
	}
	if _, linked := na.Links[b]; !linked {
		if len(na.Links) >= e.cfg.MaxLinksPerNode || len(nb.Links) >= e.cfg.MaxLinksPerNode {
			return false
		}
		linksFormed.Inc()
	}
	connect(na, nb, clamp01(weight), e.now())
	e.logLocked(slog.LevelInfo, "link recorded", "a", a, "b", b, "weight", round3(weight))
	e.observeLocked()
	return true
}

func connect(a, b *Node, w float64, now time.Time) {
	a.Links[b.Name] = w
	b.Links[a.Name] = w
	a.touch(now)
	b.touch(now)
}
