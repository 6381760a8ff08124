package engine

import (
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/lazypower/glyphwheel/internal/config"
	"github.com/lazypower/glyphwheel/internal/logging"
)

var (
	// ErrInvalidInput reports a malformed name, kind, archetype or value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotSignal reports a signal update aimed at a non-signal node.
	ErrNotSignal = errors.New("node is not a signal")
	// ErrCapacity reports that the node set is full.
	ErrCapacity = errors.New("node capacity reached")
	// ErrNotFound reports an operation naming a node that does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrExists reports a create aimed at a name already in use.
	ErrExists = errors.New("node already exists")
)

// Sink receives finished operation reports and ghosts. store.DB implements it.
// Calls happen after the engine lock is released.
type Sink interface {
	RecordReport(r Report) error
	RecordGhost(g Ghost) error
}

// Engine holds the node set and runs every mutation. The whole node set is a
// single resource guarded by mu; operations are bounded by their cycle or
// attempt counts and never block on I/O while holding it.
type Engine struct {
	mu     sync.Mutex
	cfg    config.EngineConfig
	nodes  map[string]*Node
	ghosts *ghostRegistry
	oplog  *oplog
	rng    *rand.Rand
	now    func() time.Time
	log    *slog.Logger
	sink   Sink

	lastStress time.Time
	depth      int
	autonomous bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates an empty Engine. Call SeedCore to add the configured core nodes.
func New(cfg config.EngineConfig) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		cfg:    cfg,
		nodes:  make(map[string]*Node),
		oplog:  newOplog(cfg.OplogSize),
		rng:    rand.New(rand.NewSource(seed)),
		now:    time.Now,
		log:    logging.Discard(),
		stopCh: make(chan struct{}),
	}
	e.ghosts = newGhostRegistry(cfg.MaxGhosts, cfg.GhostTTL)
	return e
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = l
}

// SetSink configures where reports and ghosts are recorded.
func (e *Engine) SetSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = s
}

// SetAutonomous toggles spawning on monitor ticks.
func (e *Engine) SetAutonomous(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autonomous = on
}

// Config returns the tuning the engine runs with.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// AddOptions controls AddNode. A nil Stability draws from the configured
// initial range.
type AddOptions struct {
	Stability *float64
	Kind      Kind
	Archetype Archetype
}

// AddNode adds a node and reports whether it was added. It fails without
// changing state when the name is empty or taken, the node set is full, or
// the given stability is not finite.
// New nodes are not linked automatically.
func (e *Engine) AddNode(name string, opts AddOptions) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addLocked(name, opts)
}

func (e *Engine) addLocked(name string, opts AddOptions) bool {
	if name == "" {
		e.logLocked(slog.LevelWarn, "add rejected: empty name")
		return false
	}
	if _, exists := e.nodes[name]; exists {
		e.logLocked(slog.LevelWarn, "add rejected: duplicate", "name", name)
		return false
	}
	if len(e.nodes) >= e.cfg.MaxNodes {
		e.logLocked(slog.LevelWarn, "add rejected: capacity reached", "name", name, "max", e.cfg.MaxNodes)
		return false
	}

	kind := opts.Kind
	if kind == "" {
		kind = KindDynamic
	}
	arch := opts.Archetype
	if arch == "" {
		arch = ArchetypeNone
	}
	var stability float64
	if opts.Stability != nil {
		if math.IsNaN(*opts.Stability) || math.IsInf(*opts.Stability, 0) {
			e.logLocked(slog.LevelWarn, "add rejected: non-finite stability", "name", name)
			return false
		}
		stability = *opts.Stability
	} else {
		stability = e.uniform(e.cfg.InitialMin, e.cfg.InitialMax)
	}

	e.nodes[name] = newNode(name, stability, kind, arch, e.now())
	nodeGauge.Set(float64(len(e.nodes)))
	e.logLocked(slog.LevelInfo, "node added", "name", name, "stability", round3(e.nodes[name].Stability), "kind", kind)
	return true
}

// SeedCore adds the configured core nodes. Names already present are skipped.
// Returns the number added.
func (e *Engine) SeedCore() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for _, c := range e.cfg.CoreNodes {
		if _, exists := e.nodes[c.Name]; exists {
			continue
		}
		kind, err := ParseKind(c.Kind)
		if err != nil {
			e.logLocked(slog.LevelWarn, "core node skipped", "name", c.Name, "error", err)
			continue
		}
		arch, err := ParseArchetype(c.Archetype)
		if err != nil {
			e.logLocked(slog.LevelWarn, "core node skipped", "name", c.Name, "error", err)
			continue
		}
		s := c.Stability
		if e.addLocked(c.Name, AddOptions{Stability: &s, Kind: kind, Archetype: arch}) {
			added++
		}
	}
	return added
}

// RemoveNode deletes a node and the peer side of each of its links.
func (e *Engine) RemoveNode(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.nodes[name]; !ok {
		return false
	}
	e.removeLocked(name)
	e.logLocked(slog.LevelInfo, "node removed", "name", name)
	return true
}

func (e *Engine) removeLocked(name string) {
	node := e.nodes[name]
	for peer := range node.Links {
		if p, ok := e.nodes[peer]; ok {
			delete(p.Links, name)
		}
	}
	delete(e.nodes, name)
	nodeGauge.Set(float64(len(e.nodes)))
}

// Node returns a copy of the named node.
func (e *Engine) Node(name string) (NodeView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[name]
	if !ok {
		return NodeView{}, false
	}
	return n.view(), true
}

// NodeCount returns the number of live nodes.
func (e *Engine) NodeCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.nodes)
}

// Links returns a copy of the named node's links.
func (e *Engine) Links(name string) map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[name]
	if !ok {
		return nil
	}
	out := make(map[string]float64, len(n.Links))
	for k, v := range n.Links {
		out[k] = v
	}
	return out
}

// Status is a read-only snapshot of the engine.
type Status struct {
	Nodes         []NodeView `json:"nodes"`
	Entropy       float64    `json:"entropy"`
	Coherence     float64    `json:"coherence"`
	NodeCount     int        `json:"node_count"`
	MaxNodes      int        `json:"max_nodes"`
	LinkCount     int        `json:"link_count"`
	Depth         int        `json:"recursive_depth"`
	RecursionPull float64    `json:"recursion_pull"`
	Ghosts        GhostStats `json:"ghosts"`
	Log           []LogEntry `json:"log"`
	TakenAt       time.Time  `json:"taken_at"`
}

// Status returns a snapshot of all nodes, both aggregate metrics and the
// most recent log lines. It does not mutate the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	views := make([]NodeView, 0, len(e.nodes))
	for _, n := range e.nodes {
		views = append(views, n.view())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	return Status{
		Nodes:         views,
		Entropy:       e.entropyLocked(),
		Coherence:     e.coherenceLocked(),
		NodeCount:     len(e.nodes),
		MaxNodes:      e.cfg.MaxNodes,
		LinkCount:     e.linkEndsLocked() / 2,
		Depth:         e.depth,
		RecursionPull: e.cfg.RecursionPull,
		Ghosts:        e.ghosts.stats(e.now()),
		Log:           e.oplog.recent(e.cfg.StatusLogSize),
		TakenAt:       e.now(),
	}
}

// sortedNamesLocked returns node names in a stable order so seeded runs are
// reproducible regardless of map iteration.
func (e *Engine) sortedNamesLocked(keep func(*Node) bool) []string {
	names := make([]string, 0, len(e.nodes))
	for name, n := range e.nodes {
		if keep == nil || keep(n) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

// observeLocked pushes aggregate metrics to the Prometheus gauges.
func (e *Engine) observeLocked() {
	entropyGauge.Set(e.entropyLocked())
	coherenceGauge.Set(e.coherenceLocked())
	nodeGauge.Set(float64(len(e.nodes)))
	ghostGauge.Set(float64(e.ghosts.len()))
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
