package finder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/filters"
	"github.com/steveyegge/modhook/internal/modgraph"
	"golang.org/x/time/rate"
)

// State is an interest's position in its lifecycle.
type State uint8

const (
	// StatePending means no module has matched yet.
	StatePending State = iota
	// StateResolved is terminal.
	StateResolved
)

func (s State) String() string {
	if s == StateResolved {
		return "resolved"
	}
	return "pending"
}

// Interest is a filter awaiting its first matching module. Fields below reg
// are guarded by reg.mu unless noted.
type Interest struct {
	id      string
	filter  filters.Filter
	after   uint64
	created time.Time
	reg     *Registry
	done    chan struct{}

	// counters are read by Pending without evalMu
	tested   atomic.Int64
	failures atomic.Int64
	// guarded by reg.evalMu
	failLog *rate.Sometimes

	state      State
	value      any
	module     *modgraph.Module
	resolvedAt time.Time
	handles    []*Handle
	removed    bool
}

// ID returns the interest's unique identifier.
func (in *Interest) ID() string { return in.id }

// Filter returns the interest's filter.
func (in *Interest) Filter() filters.Filter { return in.filter }

// State returns the current state.
func (in *Interest) State() State {
	in.reg.mu.Lock()
	defer in.reg.mu.Unlock()
	return in.state
}

// Module returns the module that resolved the interest, or nil.
func (in *Interest) Module() *modgraph.Module {
	select {
	case <-in.done:
		return in.module
	default:
		return nil
	}
}

func (in *Interest) isPending() bool {
	in.reg.mu.Lock()
	defer in.reg.mu.Unlock()
	return in.state == StatePending && !in.removed
}

// NewHandle returns an additional handle on the interest. It fails with
// ErrReleased if every earlier handle was released while pending.
func (in *Interest) NewHandle() (*Handle, error) {
	in.reg.mu.Lock()
	defer in.reg.mu.Unlock()
	if in.removed {
		return nil, ErrReleased
	}
	return in.newHandleLocked(), nil
}

func (in *Interest) newHandleLocked() *Handle {
	h := &Handle{interest: in}
	if in.state == StatePending {
		in.handles = append(in.handles, h)
	}
	return h
}

// Handle is a caller's reference to an interest: Pending until a module
// matches, then permanently the resolved value. A Handle is owned by one
// caller; the interest it references may be shared.
type Handle struct {
	interest *Interest
	released atomic.Bool

	// guarded by interest.reg.mu
	thens []func(any)
}

// Interest returns the interest behind h.
func (h *Handle) Interest() *Interest { return h.interest }

// State returns the interest's state.
func (h *Handle) State() State { return h.interest.State() }

// Ready reports whether the interest has resolved.
func (h *Handle) Ready() bool {
	select {
	case <-h.interest.done:
		return true
	default:
		return false
	}
}

// Get returns the resolved value without waiting. It returns ErrNotReady
// while pending and ErrReleased after Release.
func (h *Handle) Get() (any, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	select {
	case <-h.interest.done:
		return h.interest.value, nil
	default:
		return nil, ErrNotReady
	}
}

// Wait blocks until the interest resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	select {
	case <-h.interest.done:
		return h.interest.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed on resolution.
func (h *Handle) Done() <-chan struct{} {
	return h.interest.done
}

// Then registers fn to run once with the resolved value. If the interest has
// already resolved, fn runs before Then returns. Then on a released handle
// does nothing.
func (h *Handle) Then(fn func(v any)) {
	if fn == nil || h.released.Load() {
		return
	}
	r := h.interest.reg

	r.mu.Lock()
	if h.interest.state == StatePending {
		h.thens = append(h.thens, fn)
		r.mu.Unlock()
		return
	}
	v := h.interest.value
	r.mu.Unlock()

	r.runContinuation(h.interest, fn, v)
}

// Release drops h. Pending continuations registered through h never run.
// When the last handle on a pending interest is released, the interest is
// removed from the registry. Release is idempotent.
func (h *Handle) Release() {
	if h.released.Swap(true) {
		return
	}
	in := h.interest
	r := in.reg

	r.mu.Lock()
	h.thens = nil
	if in.state != StatePending {
		r.mu.Unlock()
		return
	}
	for i, other := range in.handles {
		if other == h {
			in.handles = append(in.handles[:i:i], in.handles[i+1:]...)
			break
		}
	}
	dropped := len(in.handles) == 0
	if dropped {
		in.removed = true
		r.removePendingLocked(in)
	}
	r.mu.Unlock()

	if dropped {
		r.logger.Debug("interest released while pending", "interest", in.id, "filter", in.filter.String())
		r.sink.Emit(events.NewInterestReleasedEvent(in.id, in.filter.String()))
	}
}

// As returns the resolved value of h as a T.
func As[T any](h *Handle) (T, error) {
	var zero T
	v, err := h.Get()
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resolved value is %T, not %T", v, zero)
	}
	return t, nil
}
