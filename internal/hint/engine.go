package hint

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// request is one hint's live claim on a node. A zero expiry means the
// request is latched until the hint ends.
type request struct {
	valueIndex int
	expires    time.Time
}

// node pairs a configured tuning node with its in-flight requests.
type node struct {
	cfg      NodeConfig
	requests map[string]request

	// current is the index last written to the node file. It starts at
	// len(Values) for ResetOnInit nodes so the first pass writes the
	// default, and at the default index otherwise so an unused node is
	// never touched.
	current int
}

// winner returns the index the node should hold right now: the lowest
// live request, or the default when nothing is requested.
func (n *node) winner() int {
	w := -1
	for _, r := range n.requests {
		if w < 0 || r.valueIndex < w {
			w = r.valueIndex
		}
	}
	if w < 0 {
		return n.cfg.defaultIndex()
	}
	return w
}

// action is a resolved ActionConfig.
type action struct {
	node       *node
	valueIndex int
	duration   time.Duration
}

// Manager owns the tuning nodes and arbitrates hint requests onto them.
// Begin, BeginFor and End apply their effect synchronously; a single
// worker goroutine handles expiries of timed requests.
type Manager struct {
	log     *slog.Logger
	nodes   []*node
	actions map[string][]action

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	loopDone chan struct{}
	wake     chan struct{}
}

// Load reads an engine config and builds a Manager for it. The Manager is
// idle until Start is called.
func Load(path string, log *slog.Logger) (*Manager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return newManager(cfg, log), nil
}

func newManager(cfg *Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		log:     log,
		actions: make(map[string][]action, len(cfg.Actions)),
		wake:    make(chan struct{}, 1),
	}
	byName := make(map[string]*node, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		n := &node{
			cfg:      nc,
			requests: make(map[string]request),
			current:  nc.defaultIndex(),
		}
		if nc.ResetOnInit {
			n.current = len(nc.Values)
		}
		m.nodes = append(m.nodes, n)
		byName[nc.Name] = n
	}
	for _, ac := range cfg.Actions {
		n := byName[ac.Node]
		m.actions[ac.PowerHint] = append(m.actions[ac.PowerHint], action{
			node:       n,
			valueIndex: valueIndex(&n.cfg, ac.Value),
			duration:   time.Duration(ac.Duration) * time.Millisecond,
		})
	}
	return m
}

// Start writes ResetOnInit defaults and starts the expiry worker. Starting
// a running Manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.loopDone = make(chan struct{})
	m.applyLocked(time.Now())
	go m.loop()
}

// Stop halts the expiry worker. Node files keep their last written values.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop := m.stop
	done := m.loopDone
	m.mu.Unlock()

	close(stop)
	<-done
}

// Running reports whether the expiry worker is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Begin raises name using each of its actions' configured durations.
// Actions with a zero duration stay up until End.
func (m *Manager) Begin(name string) {
	m.issue(name, 0, false)
}

// BeginFor raises name for d, overriding the configured action durations.
// Re-issuing a timed hint replaces its expiry.
func (m *Manager) BeginFor(name string, d time.Duration) {
	if d <= 0 {
		m.log.Warn("dropping hint with non-positive duration", "hint", name, "duration", d)
		return
	}
	m.issue(name, d, true)
}

func (m *Manager) issue(name string, d time.Duration, override bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		m.log.Debug("engine not running, dropping hint", "hint", name)
		return
	}
	acts, ok := m.actions[name]
	if !ok {
		m.log.Warn("unknown power hint", "hint", name)
		return
	}
	now := time.Now()
	for _, a := range acts {
		dur := a.duration
		if override {
			dur = d
		}
		r := request{valueIndex: a.valueIndex}
		if dur > 0 {
			r.expires = now.Add(dur)
		}
		a.node.requests[name] = r
	}
	m.applyLocked(now)
	m.kick()
}

// End drops name from every node it acts on. Ending an inactive hint is a
// no-op.
func (m *Manager) End(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	acts, ok := m.actions[name]
	if !ok {
		m.log.Warn("unknown power hint", "hint", name)
		return
	}
	for _, a := range acts {
		delete(a.node.requests, name)
	}
	m.applyLocked(time.Now())
	m.kick()
}

// kick wakes the worker so it recomputes its next expiry.
func (m *Manager) kick() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// applyLocked prunes expired requests, writes every node whose winning
// value changed and returns the earliest remaining expiry, or the zero
// time when no timed requests are live. Callers hold mu.
func (m *Manager) applyLocked(now time.Time) time.Time {
	var next time.Time
	for _, n := range m.nodes {
		for hint, r := range n.requests {
			if !r.expires.IsZero() && !r.expires.After(now) {
				delete(n.requests, hint)
			}
		}
		w := n.winner()
		if w != n.current {
			if err := os.WriteFile(n.cfg.Path, []byte(n.cfg.Values[w]), 0o644); err != nil {
				// Leave current stale so the next pass retries.
				m.log.Error("node write failed",
					"node", n.cfg.Name, "path", n.cfg.Path, "error", err)
				continue
			}
			m.log.Debug("node updated", "node", n.cfg.Name, "value", n.cfg.Values[w])
			n.current = w
		}
		for _, r := range n.requests {
			if !r.expires.IsZero() && (next.IsZero() || r.expires.Before(next)) {
				next = r.expires
			}
		}
	}
	return next
}

// loop sleeps until the earliest live expiry and re-arbitrates when hints
// change or time out.
func (m *Manager) loop() {
	defer close(m.loopDone)
	for {
		m.mu.Lock()
		next := m.applyLocked(time.Now())
		m.mu.Unlock()

		var expiry <-chan time.Time
		var timer *time.Timer
		if !next.IsZero() {
			timer = time.NewTimer(time.Until(next))
			expiry = timer.C
		}
		select {
		case <-m.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-m.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-expiry:
		}
	}
}

// Dump writes node and hint state in a stable order.
func (m *Manager) Dump(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	fmt.Fprintf(w, "Engine running: %t\n", m.running)
	fmt.Fprintf(w, "Nodes:\n")
	for _, n := range m.nodes {
		value := "unwritten"
		if n.current < len(n.cfg.Values) {
			value = n.cfg.Values[n.current]
		}
		fmt.Fprintf(w, "  %s [%s] value=%s requests=%d\n",
			n.cfg.Name, n.cfg.Path, value, len(n.requests))
	}
	fmt.Fprintf(w, "Hints:\n")
	names := make([]string, 0, len(m.actions))
	for name := range m.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		active := 0
		var soonest time.Time
		for _, a := range m.actions[name] {
			r, ok := a.node.requests[name]
			if !ok {
				continue
			}
			active++
			if !r.expires.IsZero() && (soonest.IsZero() || r.expires.Before(soonest)) {
				soonest = r.expires
			}
		}
		fmt.Fprintf(w, "  %s actions=%d active=%d", name, len(m.actions[name]), active)
		if !soonest.IsZero() {
			fmt.Fprintf(w, " expires_in=%s", soonest.Sub(now).Round(time.Millisecond))
		}
		fmt.Fprintln(w)
	}
}
