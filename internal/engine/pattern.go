package engine

import (
	"fmt"
	"log/slog"
	"math"
)

// patternBoost scales the mean stability of linked patterns into prediction
// confidence.
const patternBoost = 0.3

// Prediction directions.
const (
	Bullish = "bullish"
	Bearish = "bearish"
	Neutral = "neutral"
)

// Prediction reads a signal node and the pattern nodes linked to it.
type Prediction struct {
	Signal     string  `json:"signal"`
	Direction  string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Trend      string  `json:"trend"`
	Stability  float64 `json:"signal_stability"`
	Patterns   int     `json:"connected_patterns"`
}

// CorrelatePattern records a discovered correlation between two signal
// nodes as a new pattern node at stability strength, linked to both signals
// with weight strength. Nothing changes unless every check passes.
func (e *Engine) CorrelatePattern(name, a, b string, strength float64) (NodeView, error) {
	if name == "" || a == "" || b == "" {
		return NodeView{}, fmt.Errorf("%w: empty name", ErrInvalidInput)
	}
	if a == b {
		return NodeView{}, fmt.Errorf("%w: pattern needs two distinct signals", ErrInvalidInput)
	}
	if math.IsNaN(strength) || math.IsInf(strength, 0) {
		return NodeView{}, fmt.Errorf("%w: strength %v", ErrInvalidInput, strength)
	}
	strength = clamp01(strength)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[name]; exists {
		return NodeView{}, fmt.Errorf("pattern %q: %w", name, ErrExists)
	}
	for _, sig := range []string{a, b} {
		n, ok := e.nodes[sig]
		switch {
		case !ok:
			return NodeView{}, fmt.Errorf("signal %q: %w", sig, ErrNotFound)
		case n.Kind != KindSignal:
			return NodeView{}, fmt.Errorf("%q is %s: %w", sig, n.Kind, ErrNotSignal)
		case len(n.Links) >= e.cfg.MaxLinksPerNode:
			return NodeView{}, fmt.Errorf("%w: signal %q has no free links", ErrCapacity, sig)
		}
	}
	if !e.addLocked(name, AddOptions{Stability: &strength, Kind: KindPattern}) {
		return NodeView{}, fmt.Errorf("add pattern %q: %w", name, ErrCapacity)
	}
	e.linkLocked(name, a, strength)
	e.linkLocked(name, b, strength)

	e.logLocked(slog.LevelInfo, "pattern correlated", "name", name, "a", a, "b", b, "strength", round3(strength))
	return e.nodes[name].view(), nil
}

// Predict maps a signal's trend to a direction. Base confidence is the
// stability for an uptrend, its complement for a downtrend and 0.4 when
// neutral; linked patterns add 0.3 times their mean stability, capped at 1.
func (e *Engine) Predict(name string) (Prediction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, ok := e.nodes[name]
	if !ok {
		return Prediction{}, fmt.Errorf("signal %q: %w", name, ErrNotFound)
	}
	if n.Kind != KindSignal {
		return Prediction{}, fmt.Errorf("%q is %s: %w", name, n.Kind, ErrNotSignal)
	}

	p := Prediction{Signal: name, Trend: Trend(n.Stability), Stability: n.Stability}
	switch p.Trend {
	case "strong_uptrend", "uptrend":
		p.Direction, p.Confidence = Bullish, n.Stability
	case "strong_downtrend", "downtrend":
		p.Direction, p.Confidence = Bearish, 1-n.Stability
	default:
		p.Direction, p.Confidence = Neutral, 0.4
	}

	var sum float64
	for peer := range n.Links {
		if pn, ok := e.nodes[peer]; ok && pn.Kind == KindPattern {
			sum += pn.Stability
			p.Patterns++
		}
	}
	if p.Patterns > 0 {
		p.Confidence += patternBoost * sum / float64(p.Patterns)
	}
	p.Confidence = math.Min(1, p.Confidence)
	return p, nil
}
