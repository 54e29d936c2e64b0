// Package finder resolves module lookups lazily against a growing module graph.
//
// A Registry watches one modgraph.Graph. Callers declare interest in a module
// with a filters.Filter and get a Handle back immediately, before any module
// matching the filter may exist:
//
//	h, err := reg.FindLazy(filters.Named("UserStore", filters.ByProps("getCurrentUser")))
//	if err != nil {
//		return err
//	}
//	h.Then(func(v any) { ... })        // continuation, runs once on resolution
//	v, err := h.Get()                  // non-blocking, ErrNotReady until resolved
//	v, err = h.Wait(ctx)               // suspends until resolved or ctx is done
//
// # Resolution
//
// Each interest is Pending until the first module that satisfies its filter,
// then Resolved for good. Modules registered before the interest are tested
// in registration order when the interest is created; later modules are
// tested as they arrive. Every module is tested against an interest at most
// once, and nothing is tested after resolution. Continuations run outside the
// registry's locks, in the order their handles were created.
//
// An interest that never matches stays Pending. Pending lists outstanding
// interests for diagnosis; nothing times out. Releasing every handle on a
// pending interest removes it from the registry.
//
// A filter that errors or panics on a module is logged, throttled per
// interest, and reported as a predicate_failed event. The interest stays
// Pending and other interests are unaffected.
//
// Filters run while the registry holds its evaluation lock. A filter may call
// Pending or Find, but FindLazy and WaitFor from inside a filter deadlock.
// Continuations may call anything.
package finder
