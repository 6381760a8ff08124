package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Death reasons.
const (
	DeathVitality = "vitality_exhausted"
	DeathIsolated = "isolated_and_weak"
)

// Ghost is what remains of a node after it dies. Spawn may draw on recent
// ghosts for an archetype and starting stability.
type Ghost struct {
	Signature        string             `json:"signature"`
	Name             string             `json:"name"`
	Kind             Kind               `json:"kind"`
	Archetype        Archetype          `json:"archetype"`
	FinalStability   float64            `json:"final_stability"`
	Links            map[string]float64 `json:"links"`
	Reason           string             `json:"reason"`
	DiedAt           time.Time          `json:"died_at"`
	EntropyAtDeath   float64            `json:"entropy_at_death"`
	CoherenceAtDeath float64            `json:"coherence_at_death"`
	Potential        float64            `json:"resurrection_potential"`
	Role             string             `json:"stability_role"`
	Pattern          string             `json:"connection_pattern"`
	Age              int                `json:"age"`
	Observations     int                `json:"observations"`
}

func newGhost(n *Node, reason string, entropy, coherence float64, now time.Time) Ghost {
	links := make(map[string]float64, len(n.Links))
	for k, v := range n.Links {
		links[k] = v
	}
	return Ghost{
		Signature:        uuid.NewString(),
		Name:             n.Name,
		Kind:             n.Kind,
		Archetype:        n.Archetype,
		FinalStability:   n.Stability,
		Links:            links,
		Reason:           reason,
		DiedAt:           now,
		EntropyAtDeath:   entropy,
		CoherenceAtDeath: coherence,
		Potential:        resurrectionPotential(n),
		Role:             stabilityRole(n.Stability),
		Pattern:          connectionPattern(len(n.Links)),
		Age:              n.Age,
		Observations:     n.Observations,
	}
}

func stabilityRole(s float64) string {
	switch {
	case s > 0.8:
		return "stabilizer"
	case s < 0.3:
		return "chaos_agent"
	case s > 0.5 && s < 0.7:
		return "mediator"
	default:
		return "fluctuator"
	}
}

func connectionPattern(links int) string {
	switch {
	case links == 0:
		return "hermit"
	case links == 1:
		return "pair_bond"
	case links == 2:
		return "bridge"
	case links >= 5:
		return "hub"
	default:
		return "networked"
	}
}

func resurrectionPotential(n *Node) float64 {
	switch {
	case n.Stability > 0.9 && len(n.Links) > 3:
		return 0.8
	case n.Archetype == ArchetypeOracle || n.Archetype == ArchetypeEchoscribe:
		return 0.6
	case len(n.Links) >= 5:
		return 0.7
	default:
		return 0.3
	}
}

// influence is the probability that the ghost shapes the next spawn. It
// fades linearly to zero over ttl.
func (g Ghost) influence(now time.Time, ttl time.Duration, entropy, coherence float64, archetypes map[Archetype]int) float64 {
	since := now.Sub(g.DiedAt)
	if ttl <= 0 || since > ttl {
		return 0
	}
	score := 0.0
	if entropy > 0.3 && g.Role == "stabilizer" {
		score += 0.4
	} else if coherence < 0.5 && g.Pattern == "hub" {
		score += 0.4
	}
	if archetypes[g.Archetype] < 2 {
		score += 0.3
	}
	fade := 1 - float64(since)/float64(ttl)
	return score * fade * g.Potential
}

// GhostStats summarizes the registry for status output.
type GhostStats struct {
	Count            int            `json:"count"`
	Created          int            `json:"created"`
	OldestAgeSeconds float64        `json:"oldest_age_seconds"`
	AveragePotential float64        `json:"average_potential"`
	Reasons          map[string]int `json:"reasons"`
	Archetypes       map[string]int `json:"archetypes"`
}

// ghostRegistry holds ghosts by name. A node that dies twice under the same
// name replaces its earlier ghost.
type ghostRegistry struct {
	max     int
	ttl     time.Duration
	byName  map[string]Ghost
	created int
}

func newGhostRegistry(max int, ttl time.Duration) *ghostRegistry {
	return &ghostRegistry{max: max, ttl: ttl, byName: make(map[string]Ghost)}
}

func (r *ghostRegistry) add(g Ghost) {
	r.byName[g.Name] = g
	r.created++
	if r.max > 0 && len(r.byName) > r.max {
		r.prune(g.DiedAt)
	}
}

// prune drops expired ghosts, then the oldest until within capacity.
func (r *ghostRegistry) prune(now time.Time) int {
	removed := 0
	if r.ttl > 0 {
		for name, g := range r.byName {
			if now.Sub(g.DiedAt) > r.ttl {
				delete(r.byName, name)
				removed++
			}
		}
	}
	if r.max > 0 && len(r.byName) > r.max {
		all := r.list()
		for _, g := range all[:len(all)-r.max] {
			delete(r.byName, g.Name)
			removed++
		}
	}
	return removed
}

func (r *ghostRegistry) remove(name string) bool {
	if _, ok := r.byName[name]; !ok {
		return false
	}
	delete(r.byName, name)
	return true
}

func (r *ghostRegistry) len() int { return len(r.byName) }

// list returns ghosts oldest first.
func (r *ghostRegistry) list() []Ghost {
	out := make([]Ghost, 0, len(r.byName))
	for _, g := range r.byName {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DiedAt.Equal(out[j].DiedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].DiedAt.Before(out[j].DiedAt)
	})
	return out
}

func (r *ghostRegistry) stats(now time.Time) GhostStats {
	s := GhostStats{
		Count:      len(r.byName),
		Created:    r.created,
		Reasons:    make(map[string]int),
		Archetypes: make(map[string]int),
	}
	if len(r.byName) == 0 {
		return s
	}
	var total float64
	var oldest time.Duration
	for _, g := range r.byName {
		s.Reasons[g.Reason]++
		s.Archetypes[string(g.Archetype)]++
		total += g.Potential
		if age := now.Sub(g.DiedAt); age > oldest {
			oldest = age
		}
	}
	s.AveragePotential = round3(total / float64(len(r.byName)))
	s.OldestAgeSeconds = oldest.Seconds()
	return s
}

// Ghosts returns the retained ghosts, oldest first.
func (e *Engine) Ghosts() []Ghost {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ghosts.list()
}
