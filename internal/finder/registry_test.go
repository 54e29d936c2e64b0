package finder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/modhook/internal/events"
	"github.com/steveyegge/modhook/internal/filters"
	"github.com/steveyegge/modhook/internal/modgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*modgraph.Graph, *Registry, *events.Recorder) {
	t.Helper()
	g := modgraph.New()
	rec := &events.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(g, WithLogger(logger), WithEventSink(rec))
	t.Cleanup(r.Close)
	return g, r, rec
}

func register(t *testing.T, g *modgraph.Graph, id, src string, ex modgraph.Exports) {
	t.Helper()
	_, err := g.Register(id, src, ex)
	require.NoError(t, err)
}

func TestFirstMatchWins(t *testing.T) {
	g, r, rec := newTestRegistry(t)

	h, err := r.FindLazy(filters.ByCode("target"))
	require.NoError(t, err)

	var resolutions []any
	h.Then(func(v any) { resolutions = append(resolutions, v) })

	register(t, g, "1", "nothing here", modgraph.Exports{"n": 1.0})
	_, err = h.Get()
	assert.ErrorIs(t, err, ErrNotReady)

	second := modgraph.Exports{"n": 2.0}
	register(t, g, "2", "the target module", second)
	register(t, g, "3", "another target", modgraph.Exports{"n": 3.0})

	require.Len(t, resolutions, 1)
	assert.Equal(t, second, resolutions[0])

	v, err := h.Get()
	require.NoError(t, err)
	assert.Equal(t, second, v)
	assert.Equal(t, "2", h.Interest().Module().ID)
	assert.Equal(t, StateResolved, h.State())
	assert.Empty(t, r.Pending())
	assert.Len(t, rec.OfType(events.EventTypeInterestResolved), 1)
}

func TestExistingModuleResolvesImmediately(t *testing.T) {
	g, r, _ := newTestRegistry(t)
	register(t, g, "a", "x", modgraph.Exports{"getCurrentUser": 1.0})
	register(t, g, "b", "y", modgraph.Exports{"getCurrentUser": 2.0})

	h, err := r.FindLazy(filters.ByProps("getCurrentUser"))
	require.NoError(t, err)
	assert.True(t, h.Ready())

	v, err := As[modgraph.Exports](h)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v["getCurrentUser"], "earliest registered module wins")

	_, err = As[string](h)
	assert.Error(t, err)
}

func TestFanOutOrdering(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	a, err := r.FindLazy(filters.ByCode("shared"))
	require.NoError(t, err)
	b, err := a.Interest().NewHandle()
	require.NoError(t, err)

	var order []string
	var got []any
	b.Then(func(v any) { order = append(order, "B"); got = append(got, v) })
	a.Then(func(v any) { order = append(order, "A"); got = append(got, v) })
	a.Then(func(v any) { order = append(order, "A2") })

	register(t, g, "m", "shared code", modgraph.Exports{"k": true})

	assert.Equal(t, []string{"A", "A2", "B"}, order)
	require.Len(t, got, 2)
	assert.Equal(t, got[0], got[1])

	va, _ := a.Get()
	vb, _ := b.Get()
	assert.Equal(t, va, vb)
}

func TestThenAfterResolutionRunsImmediately(t *testing.T) {
	g, r, _ := newTestRegistry(t)
	register(t, g, "m", "code", nil)

	h, err := r.FindLazy(filters.ByCode("code"))
	require.NoError(t, err)

	ran := false
	h.Then(func(any) { ran = true })
	assert.True(t, ran)

	late, err := h.Interest().NewHandle()
	require.NoError(t, err)
	assert.True(t, late.Ready())
}

func TestPredicateFailureIsolation(t *testing.T) {
	g, r, rec := newTestRegistry(t)

	faulty, err := r.FindLazy(filters.Named("Faulty", filters.ByFunc("faulty", func(v any) bool {
		if ex, ok := v.(modgraph.Exports); ok && ex["explode"] == true {
			panic("bad predicate")
		}
		return false
	})))
	require.NoError(t, err)

	healthyX, err := r.FindLazy(filters.ByProps("explode"))
	require.NoError(t, err)
	healthyY, err := r.FindLazy(filters.ByCode("module y"))
	require.NoError(t, err)

	register(t, g, "X", "module x", modgraph.Exports{"explode": true})
	register(t, g, "Y", "module y", modgraph.Exports{"fine": true})

	assert.True(t, healthyX.Ready(), "same module resolves other interests")
	assert.True(t, healthyY.Ready(), "later modules still stream")
	assert.False(t, faulty.Ready())

	pending := r.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, faulty.Interest().ID(), pending[0].ID)
	assert.Equal(t, "Faulty", pending[0].Name)
	assert.Equal(t, 1, pending[0].Failures)
	assert.Equal(t, 2, pending[0].Tested)

	failed := rec.OfType(events.EventTypePredicateFailed)
	require.Len(t, failed, 1)
	data, err := failed[0].GetPredicateFailedData()
	require.NoError(t, err)
	assert.True(t, data.Panicked)
	assert.Equal(t, "X", failed[0].ModuleID)
}

func TestReleaseDropsPendingInterest(t *testing.T) {
	g, r, rec := newTestRegistry(t)

	a, err := r.FindLazy(filters.ByCode("late"))
	require.NoError(t, err)
	b, err := a.Interest().NewHandle()
	require.NoError(t, err)

	called := false
	a.Then(func(any) { called = true })

	a.Release()
	a.Release()
	_, err = a.Get()
	assert.ErrorIs(t, err, ErrReleased)
	require.Len(t, r.Pending(), 1, "b still holds the interest")
	assert.Equal(t, 1, r.Pending()[0].Handles)

	b.Release()
	assert.Empty(t, r.Pending())
	assert.Len(t, rec.OfType(events.EventTypeInterestReleased), 1)

	_, err = a.Interest().NewHandle()
	assert.ErrorIs(t, err, ErrReleased)

	register(t, g, "m", "late code", nil)
	assert.False(t, called)
	assert.False(t, a.Ready())
	assert.Equal(t, StatePending, a.Interest().State())
}

func TestWait(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	h, err := r.FindLazy(filters.ByCode("async"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.Ready(), "timeouts never resolve an interest")

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = g.Register("m", "async module", modgraph.Exports{"ok": true})
	}()

	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, modgraph.Exports{"ok": true}, v)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestContinuationsMayReenter(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	var inner *Handle
	_, err := r.WaitFor(filters.ByCode("outer"), func(any) {
		var err error
		inner, err = r.FindLazy(filters.ByCode("inner"))
		require.NoError(t, err)
		_, err = g.Register("inner-mod", "inner", nil)
		require.NoError(t, err)
	})
	require.NoError(t, err)

	register(t, g, "outer-mod", "outer", nil)

	require.NotNil(t, inner)
	assert.True(t, inner.Ready())
	assert.Equal(t, "inner-mod", inner.Interest().Module().ID)
}

func TestFilterMayListPending(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	var seen []InterestInfo
	h, err := r.FindLazy(filters.ByFunc("lists pending", func(v any) bool {
		seen = r.Pending()
		return true
	}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := g.Register("1", "x", modgraph.Exports{"a": 1.0})
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("registering a module blocked while its filter listed pending interests")
	}

	assert.True(t, h.Ready())
	require.Len(t, seen, 1)
	assert.Equal(t, h.Interest().ID(), seen[0].ID)
	assert.Equal(t, 1, seen[0].Tested, "count includes the module being tested")
}

func TestContinuationPanicDoesNotStopStream(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	_, err := r.WaitFor(filters.ByCode("a"), func(any) { panic("boom") })
	require.NoError(t, err)
	other, err := r.FindLazy(filters.ByCode("a"))
	require.NoError(t, err)

	assert.NotPanics(t, func() { register(t, g, "m", "a", nil) })
	assert.True(t, other.Ready())
}

func TestFindLazyErrors(t *testing.T) {
	_, r, _ := newTestRegistry(t)

	_, err := r.FindLazy(filters.ByCode("#{intl::BROKEN"))
	assert.Error(t, err)

	_, err = r.FindLazy(filters.Filter{})
	assert.ErrorIs(t, err, filters.ErrZeroFilter)

	r.Close()
	_, err = r.FindLazy(filters.ByCode("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseLeavesInterestsPending(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	h, err := r.FindLazy(filters.ByCode("never"))
	require.NoError(t, err)

	r.Close()
	register(t, g, "m", "never", nil)

	assert.False(t, h.Ready())
	assert.Len(t, r.Pending(), 1)
}

func TestFind(t *testing.T) {
	g, r, _ := newTestRegistry(t)
	register(t, g, "a", "first", modgraph.Exports{"x": 1.0})
	register(t, g, "b", "second", modgraph.Exports{"x": 2.0})

	v, m, err := r.Find(filters.ByCode("second"))
	require.NoError(t, err)
	assert.Equal(t, "b", m.ID)
	assert.Equal(t, modgraph.Exports{"x": 2.0}, v)

	_, _, err = r.Find(filters.ByCode("third"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, r.Pending(), "Find creates no interest")
}

func TestConcurrentInterestsTestEachModuleOnce(t *testing.T) {
	g, r, _ := newTestRegistry(t)

	const modules = 200
	const interests = 20

	var mu sync.Mutex
	tested := make([]map[float64]int, interests)
	handles := make([]*Handle, interests)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < modules; i++ {
			_, _ = g.Register(fmt.Sprint(i), "", modgraph.Exports{"id": float64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for n := 0; n < interests; n++ {
			n := n
			mu.Lock()
			tested[n] = map[float64]int{}
			mu.Unlock()
			h, err := r.FindLazy(filters.ByFunc("id>=150", func(v any) bool {
				ex, ok := v.(modgraph.Exports)
				if !ok {
					return false
				}
				id := ex["id"].(float64)
				mu.Lock()
				tested[n][id]++
				mu.Unlock()
				return id >= 150
			}))
			assert.NoError(t, err)
			handles[n] = h
		}
	}()
	wg.Wait()

	for n, h := range handles {
		v, err := h.Get()
		require.NoError(t, err, "interest %d", n)
		assert.Equal(t, 150.0, v.(modgraph.Exports)["id"], "interest %d resolved out of order", n)

		mu.Lock()
		for id, count := range tested[n] {
			assert.Equal(t, 1, count, "interest %d tested module %v %d times", n, id, count)
			assert.LessOrEqual(t, id, 150.0, "interest %d tested after resolution", n)
		}
		assert.Len(t, tested[n], 151)
		mu.Unlock()
	}
}
