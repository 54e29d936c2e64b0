package modgraph

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateModule is returned when an ID is registered twice.
	ErrDuplicateModule = errors.New("module already registered")
	// ErrClosed is returned by Register after Close.
	ErrClosed = errors.New("module graph closed")
)

// Graph is an append-only registry of host modules. It is safe for
// concurrent use.
type Graph struct {
	mu          sync.RWMutex
	modules     []*Module
	byID        map[string]*Module
	subs        []*subscription
	nextSub     int
	queue       []*Module
	dispatching bool
	closed      bool
}

type subscription struct {
	id int
	fn func(*Module)
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		byID: make(map[string]*Module),
	}
}

// Register appends a module and delivers it to every subscriber. If another
// registration is being delivered, the module is queued and Register returns
// once it is recorded; delivery happens in registration order.
func (g *Graph) Register(id, source string, exports Exports) (*Module, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	if _, exists := g.byID[id]; exists {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrDuplicateModule, id)
	}

	m := &Module{
		ID:      id,
		Seq:     uint64(len(g.modules)) + 1,
		Source:  source,
		Exports: exports,
	}
	g.modules = append(g.modules, m)
	g.byID[id] = m
	g.queue = append(g.queue, m)

	if g.dispatching {
		g.mu.Unlock()
		return m, nil
	}
	g.dispatching = true
	for len(g.queue) > 0 {
		next := g.queue[0]
		g.queue = g.queue[1:]
		subs := make([]*subscription, len(g.subs))
		copy(subs, g.subs)
		g.mu.Unlock()

		for _, s := range subs {
			s.fn(next)
		}

		g.mu.Lock()
	}
	g.dispatching = false
	g.mu.Unlock()
	return m, nil
}

// Subscribe calls fn for every module registered from now on. Subscribers run
// sequentially in subscription order. The returned function unsubscribes.
func (g *Graph) Subscribe(fn func(*Module)) (cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextSub++
	id := g.nextSub
	g.subs = append(g.subs, &subscription{id: id, fn: fn})

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, s := range g.subs {
			if s.id == id {
				g.subs = append(g.subs[:i:i], g.subs[i+1:]...)
				return
			}
		}
	}
}

// Get returns a module by ID.
func (g *Graph) Get(id string) (*Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m, ok := g.byID[id]
	return m, ok
}

// Len returns the number of registered modules.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.modules)
}

// Modules returns every registered module in registration order.
func (g *Graph) Modules() []*Module {
	mods, _ := g.Snapshot()
	return mods
}

// Snapshot returns the registered modules and the highest sequence number
// among them, read atomically.
func (g *Graph) Snapshot() ([]*Module, uint64) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Module, len(g.modules))
	copy(out, g.modules)
	return out, uint64(len(g.modules))
}

// Since returns modules with a sequence number greater than seq.
func (g *Graph) Since(seq uint64) []*Module {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if seq >= uint64(len(g.modules)) {
		return nil
	}
	out := make([]*Module, len(g.modules)-int(seq))
	copy(out, g.modules[seq:])
	return out
}

// Close stops further registrations. Registered modules stay readable.
func (g *Graph) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Closed reports whether Close has been called.
func (g *Graph) Closed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}
