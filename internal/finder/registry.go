package finder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/filters"
	"github.com/steveyegge/modhook/internal/modgraph"
	"golang.org/x/time/rate"
)

var (
	// ErrNotReady is returned by Handle.Get before the interest resolves.
	ErrNotReady = errors.New("module not resolved yet")
	// ErrReleased is returned by a released Handle.
	ErrReleased = errors.New("handle released")
	// ErrNotFound is returned by Find when no registered module matches.
	ErrNotFound = errors.New("no module matches filter")
	// ErrClosed is returned for new interests after Close.
	ErrClosed = errors.New("registry closed")
)

// DefaultFailureLogInterval bounds how often one interest logs predicate
// failures after its first few.
const DefaultFailureLogInterval = 10 * time.Second

// Registry tracks pending interests against one module graph. It is safe for
// concurrent use.
type Registry struct {
	graph  *modgraph.Graph
	logger *slog.Logger
	sink   events.Sink

	failureLogInterval time.Duration
	unsubscribe        func()

	// evalMu serializes filter evaluation so modules are tested against an
	// interest in registration order.
	evalMu sync.Mutex

	mu      sync.Mutex
	pending []*Interest
	closed  bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithEventSink sends registry events to s.
func WithEventSink(s events.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithFailureLogInterval sets the per-interest throttle for predicate
// failure logs.
func WithFailureLogInterval(d time.Duration) Option {
	return func(r *Registry) { r.failureLogInterval = d }
}

// New creates a Registry subscribed to g.
func New(g *modgraph.Graph, opts ...Option) *Registry {
	r := &Registry{
		graph:              g,
		logger:             slog.Default(),
		sink:               events.Discard,
		failureLogInterval: DefaultFailureLogInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsubscribe = g.Subscribe(r.observe)
	return r
}

// Graph returns the graph the registry watches.
func (r *Registry) Graph() *modgraph.Graph {
	return r.graph
}

// Close detaches the registry from its graph. Pending interests stay pending.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.unsubscribe()
}

// Find returns the first registered module matching f, without creating an
// interest.
func (r *Registry) Find(f filters.Filter) (any, *modgraph.Module, error) {
	if err := f.Err(); err != nil {
		return nil, nil, err
	}
	for _, m := range r.graph.Modules() {
		v, ok, err := filters.Match(f, m)
		if err != nil {
			r.logger.Debug("filter failed during find", "filter", f.String(), "module", m.ID, "error", err)
			continue
		}
		if ok {
			return v, m, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, f)
}

// FindLazy declares interest in the first module matching f and returns a
// handle on it. If a registered module already matches, the handle is
// resolved before FindLazy returns. A filter that failed to build is
// reported here.
func (r *Registry) FindLazy(f filters.Filter) (*Handle, error) {
	if f.IsZero() {
		return nil, filters.ErrZeroFilter
	}
	if err := f.Err(); err != nil {
		return nil, err
	}

	r.evalMu.Lock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.evalMu.Unlock()
		return nil, ErrClosed
	}
	existing, seq := r.graph.Snapshot()
	in := &Interest{
		id:      uuid.New().String(),
		filter:  f,
		after:   seq,
		created: time.Now(),
		reg:     r,
		done:    make(chan struct{}),
		failLog: &rate.Sometimes{First: 3, Interval: r.failureLogInterval},
	}
	h := in.newHandleLocked()
	r.pending = append(r.pending, in)
	r.mu.Unlock()

	r.sink.Emit(events.NewInterestCreatedEvent(in.id, f.String()))

	var res *resolution
	for _, m := range existing {
		if res = r.evaluate(in, m); res != nil {
			break
		}
	}
	r.evalMu.Unlock()

	if res != nil {
		res.notify()
	}
	return h, nil
}

// WaitFor is FindLazy followed by Then(fn).
func (r *Registry) WaitFor(f filters.Filter, fn func(v any)) (*Handle, error) {
	h, err := r.FindLazy(f)
	if err != nil {
		return nil, err
	}
	h.Then(fn)
	return h, nil
}

// observe tests a newly registered module against every pending interest
// created before it.
func (r *Registry) observe(m *modgraph.Module) {
	r.evalMu.Lock()

	r.mu.Lock()
	candidates := make([]*Interest, 0, len(r.pending))
	for _, in := range r.pending {
		if in.after < m.Seq {
			candidates = append(candidates, in)
		}
	}
	r.mu.Unlock()

	var resolved []*resolution
	for _, in := range candidates {
		if res := r.evaluate(in, m); res != nil {
			resolved = append(resolved, res)
		}
	}
	r.evalMu.Unlock()

	for _, res := range resolved {
		res.notify()
	}
}

// evaluate tests one module against one interest. Callers hold evalMu.
func (r *Registry) evaluate(in *Interest, m *modgraph.Module) *resolution {
	if !in.isPending() {
		return nil
	}
	in.tested.Add(1)

	v, ok, err := filters.Match(in.filter, m)
	if err != nil {
		r.reportFailure(in, m, err)
		return nil
	}
	if !ok {
		return nil
	}
	return r.resolve(in, m, v)
}

func (r *Registry) reportFailure(in *Interest, m *modgraph.Module, err error) {
	failures := in.failures.Add(1)

	data := events.PredicateFailedData{Filter: in.filter.String(), Error: err.Error()}
	var pe *filters.PredicateError
	if errors.As(err, &pe) {
		data.Panicked = pe.Panicked()
	}

	in.failLog.Do(func() {
		r.logger.Warn("filter failed, interest stays pending",
			"interest", in.id, "filter", data.Filter, "module", m.ID,
			"panicked", data.Panicked, "failures", failures, "error", err)
		if event, evErr := events.NewPredicateFailedEvent(in.id, m.ID, data); evErr == nil {
			r.sink.Emit(event)
		}
	})
}

// resolve moves in to Resolved and detaches it from the pending set. It
// returns nil if the interest was released concurrently.
func (r *Registry) resolve(in *Interest, m *modgraph.Module, v any) *resolution {
	r.mu.Lock()
	if in.state != StatePending || in.removed {
		r.mu.Unlock()
		return nil
	}
	in.state = StateResolved
	in.value = v
	in.module = m
	in.resolvedAt = time.Now()
	r.removePendingLocked(in)

	res := &resolution{reg: r, interest: in, value: v}
	for _, h := range in.handles {
		res.calls = append(res.calls, h.thens...)
		h.thens = nil
	}
	handles := len(in.handles)
	in.handles = nil
	close(in.done)
	r.mu.Unlock()

	r.logger.Debug("interest resolved", "interest", in.id, "filter", in.filter.String(), "module", m.ID)
	event, err := events.NewInterestResolvedEvent(in.id, m.ID, events.InterestResolvedData{
		Filter:        in.filter.String(),
		Name:          in.filter.Name(),
		ModulesTested: int(in.tested.Load()),
		Handles:       handles,
		WaitMs:        in.resolvedAt.Sub(in.created).Milliseconds(),
	})
	if err == nil {
		r.sink.Emit(event)
	}
	return res
}

func (r *Registry) removePendingLocked(in *Interest) {
	for i, p := range r.pending {
		if p == in {
			r.pending = append(r.pending[:i:i], r.pending[i+1:]...)
			return
		}
	}
}

// InterestInfo describes a pending interest.
type InterestInfo struct {
	ID       string
	Filter   string
	Name     string
	Since    time.Time
	Tested   int
	Failures int
	Handles  int
}

// Pending lists outstanding interests in creation order. It does not wait
// for filter evaluation, so a filter may call it.
func (r *Registry) Pending() []InterestInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]InterestInfo, 0, len(r.pending))
	for _, in := range r.pending {
		out = append(out, InterestInfo{
			ID:       in.id,
			Filter:   in.filter.String(),
			Name:     in.filter.Name(),
			Since:    in.created,
			Tested:   int(in.tested.Load()),
			Failures: int(in.failures.Load()),
			Handles:  len(in.handles),
		})
	}
	return out
}

// resolution carries continuations to run after locks are dropped.
type resolution struct {
	reg      *Registry
	interest *Interest
	value    any
	calls    []func(any)
}

func (res *resolution) notify() {
	for _, fn := range res.calls {
		res.reg.runContinuation(res.interest, fn, res.value)
	}
}

// runContinuation shields the module stream from a panicking continuation.
func (r *Registry) runContinuation(in *Interest, fn func(any), v any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("continuation panicked", "interest", in.id, "filter", in.filter.String(), "panic", p)
		}
	}()
	fn(v)
}
