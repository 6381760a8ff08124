package engine

import (
	"fmt"
	"time"
)

// Kind is a node category. It decides which bulk operations may touch the node.
type Kind string

const (
	KindAnchor  Kind = "anchor"  // core node
	KindConsent Kind = "consent" // protected node
	KindDynamic Kind = "dynamic" // ephemeral node
	KindSignal  Kind = "signal"  // driven by external input
	KindPattern Kind = "pattern" // learned pattern
)

type eligibility struct {
	stress   bool
	recovery bool
	mortal   bool
	decays   bool
}

var kindRules = map[Kind]eligibility{
	KindAnchor:  {},
	KindConsent: {},
	KindDynamic: {stress: true, recovery: true, mortal: true, decays: true},
	KindSignal:  {},
	KindPattern: {stress: true, recovery: true, mortal: true},
}

// ParseKind validates a kind name. Empty selects KindDynamic.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindDynamic, nil
	}
	k := Kind(s)
	if _, ok := kindRules[k]; !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, s)
	}
	return k, nil
}

// Protected reports whether the kind is exempt from stress and recovery.
func (k Kind) Protected() bool {
	return k == KindAnchor || k == KindConsent
}

func (k Kind) rules() eligibility { return kindRules[k] }

// Node is a glyph. All fields are owned by the Engine and only read or
// written with its lock held.
type Node struct {
	Name         string
	Stability    float64
	Kind         Kind
	Archetype    Archetype
	Links        map[string]float64
	Vitality     float64
	Age          int
	Observations int
	CreatedAt    time.Time
	LastTouched  time.Time

	// baseline is Stability as of LastTouched; idle decay is computed from it.
	baseline float64
}

func newNode(name string, stability float64, kind Kind, arch Archetype, now time.Time) *Node {
	s := clamp01(stability)
	return &Node{
		Name:        name,
		Stability:   s,
		Kind:        kind,
		Archetype:   arch,
		Links:       make(map[string]float64),
		Vitality:    1.0,
		CreatedAt:   now,
		LastTouched: now,
		baseline:    s,
	}
}

// setStability clamps and records a mutation.
func (n *Node) setStability(v float64, now time.Time) {
	n.Stability = clamp01(v)
	n.Observations++
	n.touch(now)
}

func (n *Node) touch(now time.Time) {
	n.LastTouched = now
	n.baseline = n.Stability
}

func (n *Node) refresh(amount float64) {
	n.Vitality = clamp01(n.Vitality + amount)
}

// NodeView is a read-only copy of a node for status output.
type NodeView struct {
	Name         string    `json:"name"`
	Stability    float64   `json:"stability"`
	Kind         Kind      `json:"kind"`
	Archetype    Archetype `json:"archetype"`
	LinkCount    int       `json:"link_count"`
	Vitality     float64   `json:"vitality"`
	Age          int       `json:"age"`
	Observations int       `json:"observations"`
}

func (n *Node) view() NodeView {
	return NodeView{
		Name:         n.Name,
		Stability:    n.Stability,
		Kind:         n.Kind,
		Archetype:    n.Archetype,
		LinkCount:    len(n.Links),
		Vitality:     n.Vitality,
		Age:          n.Age,
		Observations: n.Observations,
	}
}

// clamp01 bounds v to [0,1]. NaN maps to 0.
func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
