package engine

import (
	"fmt"
	"math"
)

// Archetype tags a node with a stress-response strategy.
type Archetype string

const (
	ArchetypeNone       Archetype = "none"
	ArchetypeChaos      Archetype = "chaos"
	ArchetypeStabilizer Archetype = "stabilizer"
	ArchetypeFlow       Archetype = "flow"
	ArchetypeBridge     Archetype = "bridge"
	ArchetypeEchoscribe Archetype = "echoscribe"
	ArchetypeHypothesis Archetype = "hypothesis"
	ArchetypeOracle     Archetype = "oracle"
	ArchetypeBitbloom   Archetype = "bitbloom"
	ArchetypeCascade    Archetype = "cascade"
	ArchetypeFrozen     Archetype = "frozen"
)

// behavior is the per-archetype strategy row.
type behavior struct {
	response   func(intensity, rate float64) float64
	linkBonus  float64
	base       float64
	namePrefix []string
}

func scaled(mult float64) func(float64, float64) float64 {
	return func(intensity, rate float64) float64 { return intensity * rate * mult }
}

// sine ignores the intensity scale and oscillates with it instead.
func sine(intensity, rate float64) float64 {
	return math.Abs(math.Sin(intensity*math.Pi)) * rate
}

var behaviors = map[Archetype]behavior{
	ArchetypeNone:       {scaled(1.0), 0.0, 0.50, []string{"Glyph"}},
	ArchetypeChaos:      {scaled(1.5), -0.10, 0.35, []string{"Storm", "Flux", "Void"}},
	ArchetypeStabilizer: {scaled(0.5), 0.20, 0.75, []string{"Rock", "Core", "Base"}},
	ArchetypeFlow:       {sine, 0.15, 0.55, []string{"River", "Current", "Tide"}},
	ArchetypeBridge:     {scaled(1.0), 0.30, 0.60, []string{"Link", "Bridge", "Path"}},
	ArchetypeEchoscribe: {scaled(1.2), 0.10, 0.65, []string{"Echo", "Voice", "Scribe"}},
	ArchetypeHypothesis: {scaled(1.1), 0.00, 0.45, []string{"Query", "Quest", "Seek"}},
	ArchetypeOracle:     {scaled(0.8), 0.05, 0.70, []string{"Sight", "Vision", "Eye"}},
	ArchetypeBitbloom:   {scaled(1.0), 0.10, 0.50, []string{"Bloom", "Bit", "Data"}},
	ArchetypeCascade:    {scaled(1.3), 0.15, 0.55, []string{"Flow", "Wave", "Stream"}},
	ArchetypeFrozen:     {scaled(0.1), -0.30, 0.40, []string{"Ice", "Still", "Lock"}},
}

// spawnable lists archetypes eligible for random selection, in a fixed
// order so a seeded engine is reproducible.
var spawnable = []Archetype{
	ArchetypeEchoscribe, ArchetypeBitbloom, ArchetypeCascade, ArchetypeOracle,
	ArchetypeStabilizer, ArchetypeChaos, ArchetypeFrozen, ArchetypeFlow,
	ArchetypeBridge, ArchetypeHypothesis,
}

// ParseArchetype validates an archetype name. Empty selects ArchetypeNone.
func ParseArchetype(s string) (Archetype, error) {
	if s == "" {
		return ArchetypeNone, nil
	}
	a := Archetype(s)
	if _, ok := behaviors[a]; !ok {
		return "", fmt.Errorf("%w: unknown archetype %q", ErrInvalidInput, s)
	}
	return a, nil
}

func (a Archetype) behavior() behavior {
	if b, ok := behaviors[a]; ok {
		return b
	}
	return behaviors[ArchetypeNone]
}

// Adaptation returns the magnitude of a stress step for this archetype.
func (a Archetype) Adaptation(intensity, rate float64) float64 {
	return a.behavior().response(intensity, rate)
}

// LinkBonus is added (averaged over both endpoints) to a candidate link weight.
func (a Archetype) LinkBonus() float64 { return a.behavior().linkBonus }

// BaseStability is the starting stability for spawned nodes of this archetype.
func (a Archetype) BaseStability() float64 { return a.behavior().base }
