package engine

import (
	"fmt"
	"log/slog"
	"math"
)

// maxSignalShift bounds a single input's effect before momentum.
const maxSignalShift = 0.2

// SignalView is a signal node's stability read as a trend.
type SignalView struct {
	Name      string  `json:"name"`
	Stability float64 `json:"stability"`
	Shift     float64 `json:"shift"`
	Trend     string  `json:"trend"`
	Created   bool    `json:"created"`
}

// Trend labels stability as a trend. 0.5 is neutral.
func Trend(s float64) string {
	switch {
	case s > 0.7:
		return "strong_uptrend"
	case s > 0.55:
		return "uptrend"
	case s < 0.3:
		return "strong_downtrend"
	case s < 0.45:
		return "downtrend"
	default:
		return "neutral"
	}
}

// UpdateSignal feeds a percentage change into a signal node, creating it at
// 0.5 on first use. The change is scaled to a shift in [-0.2, 0.2] and
// applied with SignalMomentum. Signal nodes are moved only through here.
func (e *Engine) UpdateSignal(name string, pctChange float64) (SignalView, error) {
	if name == "" {
		return SignalView{}, fmt.Errorf("%w: empty signal name", ErrInvalidInput)
	}
	if math.IsNaN(pctChange) || math.IsInf(pctChange, 0) {
		return SignalView{}, fmt.Errorf("%w: change %v", ErrInvalidInput, pctChange)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	created := false
	node, ok := e.nodes[name]
	if !ok {
		neutral := 0.5
		if !e.addLocked(name, AddOptions{Stability: &neutral, Kind: KindSignal}) {
			return SignalView{}, fmt.Errorf("add signal %q: %w", name, ErrCapacity)
		}
		node = e.nodes[name]
		created = true
	} else if node.Kind != KindSignal {
		return SignalView{}, fmt.Errorf("%q is %s: %w", name, node.Kind, ErrNotSignal)
	}

	shift := math.Max(-maxSignalShift, math.Min(maxSignalShift, pctChange/100))
	node.setStability(node.Stability+e.cfg.SignalMomentum*shift, e.now())
	e.observeLocked()

	v := SignalView{
		Name:      name,
		Stability: node.Stability,
		Shift:     shift,
		Trend:     Trend(node.Stability),
		Created:   created,
	}
	e.logLocked(slog.LevelInfo, "signal updated", "name", name, "stability", round3(v.Stability), "trend", v.Trend)
	return v, nil
}
