package engine

import (
	"fmt"
	"log/slog"
)

// Spawn may create one dynamic node on its own. The base SpawnChance doubles
// while the node set is under 30% of capacity and grows by half again when a
// ghost wants to influence creation. An influential ghost supplies the
// archetype and starting stability; otherwise high entropy favors
// stabilizing archetypes. Returns the new name and whether a node was added.
func (e *Engine) Spawn() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spawnLocked()
}

func (e *Engine) spawnLocked() (string, bool) {
	if len(e.nodes) >= e.cfg.MaxNodes {
		return "", false
	}

	chance := e.cfg.SpawnChance
	if float64(len(e.nodes)) < float64(e.cfg.MaxNodes)*0.3 {
		chance *= 2
	}

	entropy := e.entropyLocked()
	influential := e.influentialGhostsLocked(entropy, e.coherenceLocked())

	var arch Archetype
	var ghost *Ghost
	switch {
	case len(influential) > 0:
		chance *= 1.5
		g := influential[e.rng.Intn(len(influential))]
		ghost = &g
		arch = g.Archetype
	case entropy > 0.6:
		calming := []Archetype{ArchetypeStabilizer, ArchetypeOracle, ArchetypeBridge}
		arch = calming[e.rng.Intn(len(calming))]
	default:
		arch = spawnable[e.rng.Intn(len(spawnable))]
	}

	if e.rng.Float64() >= chance {
		return "", false
	}

	prefixes := arch.behavior().namePrefix
	name := fmt.Sprintf("%s_%d", prefixes[e.rng.Intn(len(prefixes))], 100+e.rng.Intn(900))

	stability := arch.BaseStability() * e.uniform(0.9, 1.1)
	if ghost != nil {
		stability = ghost.FinalStability * e.uniform(0.9, 1.1)
	}

	if !e.addLocked(name, AddOptions{Stability: &stability, Kind: KindDynamic, Archetype: arch}) {
		return "", false
	}
	spawns.Inc()
	if ghost != nil {
		e.logLocked(slog.LevelInfo, "spawned", "name", name, "archetype", arch, "ghost", ghost.Name)
	} else {
		e.logLocked(slog.LevelInfo, "spawned", "name", name, "archetype", arch)
	}
	return name, true
}

func (e *Engine) influentialGhostsLocked(entropy, coherence float64) []Ghost {
	if e.ghosts.len() == 0 {
		return nil
	}
	counts := make(map[Archetype]int)
	for _, n := range e.nodes {
		counts[n.Archetype]++
	}
	now := e.now()
	var out []Ghost
	for _, g := range e.ghosts.list() {
		if e.rng.Float64() < g.influence(now, e.cfg.GhostTTL, entropy, coherence, counts) {
			out = append(out, g)
		}
	}
	return out
}
