package engine

import "math"

// Sentinels for an empty node set. The engine stays queryable with no nodes.
const (
	EmptyEntropy   = 1.0
	EmptyCoherence = 0.0
)

// Entropy returns min(1, 2·σ) over all node stabilities, using the
// population standard deviation. Link structure is ignored.
func (e *Engine) Entropy() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entropyLocked()
}

// Coherence returns a fixed blend of mean stability and link density:
// min(1, ws·mean + wl·min(1, links/(d·n))) where links counts each endpoint.
func (e *Engine) Coherence() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.coherenceLocked()
}

func (e *Engine) entropyLocked() float64 {
	n := len(e.nodes)
	if n == 0 {
		return EmptyEntropy
	}
	var sum float64
	for _, node := range e.nodes {
		sum += node.Stability
	}
	mean := sum / float64(n)
	var sq float64
	for _, node := range e.nodes {
		d := node.Stability - mean
		sq += d * d
	}
	return math.Min(1, 2*math.Sqrt(sq/float64(n)))
}

func (e *Engine) coherenceLocked() float64 {
	n := len(e.nodes)
	if n == 0 {
		return EmptyCoherence
	}
	var sum float64
	for _, node := range e.nodes {
		sum += node.Stability
	}
	mean := sum / float64(n)
	density := math.Min(1, float64(e.linkEndsLocked())/(e.cfg.LinkDensityDivisor*float64(n)))
	c := e.cfg.CoherenceStabilityWeight*mean + e.cfg.CoherenceLinkWeight*density
	return math.Min(1, c)
}

// linkEndsLocked is the sum of per-node link counts; each symmetric link
// contributes two.
func (e *Engine) linkEndsLocked() int {
	total := 0
	for _, node := range e.nodes {
		total += len(node.Links)
	}
	return total
}
