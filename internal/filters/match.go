package filters

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/modhook/internal/modgraph"
)

// ErrZeroFilter is returned when matching with a Filter that was never built.
var ErrZeroFilter = errors.New("filter not initialized")

// PredicateError reports a predicate that failed or panicked on a module.
type PredicateError struct {
	Filter   string
	ModuleID string
	// Panic holds the recovered value when the predicate panicked.
	Panic any
	Err   error
}

func (e *PredicateError) Error() string {
	if e.Panicked() {
		return fmt.Sprintf("filter %s panicked on module %s: %v", e.Filter, e.ModuleID, e.Panic)
	}
	return fmt.Sprintf("filter %s failed on module %s: %v", e.Filter, e.ModuleID, e.Err)
}

func (e *PredicateError) Unwrap() error { return e.Err }

// Panicked reports whether the predicate panicked.
func (e *PredicateError) Panicked() bool { return e.Panic != nil }

// Match tests m against f. On a hit it returns the resolved value: the
// module's exports for source filters, the matching export for export
// filters, and the name-to-export map for MapMangled. A predicate that
// panics is recovered and reported as a *PredicateError; m itself is never
// modified.
func Match(f Filter, m *modgraph.Module) (value any, ok bool, err error) {
	if f.IsZero() {
		return nil, false, ErrZeroFilter
	}
	if f.err != nil {
		return nil, false, f.err
	}

	defer func() {
		if r := recover(); r != nil {
			value, ok = nil, false
			err = &PredicateError{Filter: f.String(), ModuleID: m.ID, Panic: r}
		}
	}()

	switch {
	case f.mangled != nil:
		value, ok, err = f.mangled.match(m)
	case f.source != nil:
		ok, err = f.source(m.Source)
		if ok {
			value = m.Exports
		}
	case f.export != nil:
		value, ok, err = searchExports(f.export, m.Exports)
	}

	if err != nil {
		return nil, false, &PredicateError{Filter: f.String(), ModuleID: m.ID, Err: err}
	}
	return value, ok, nil
}

// searchExports tests the export object, then its default member, then each
// object or function member in key order.
func searchExports(test func(any) (bool, error), ex modgraph.Exports) (any, bool, error) {
	if ex == nil {
		return nil, false, nil
	}

	if ok, err := test(ex); err != nil || ok {
		return ex, ok, err
	}
	if def, has := ex.Default(); has {
		if ok, err := test(def); err != nil || ok {
			return def, ok, err
		}
	}
	for _, key := range ex.Keys() {
		if key == "default" {
			continue
		}
		v := ex[key]
		switch v.(type) {
		case modgraph.Exports, modgraph.Function:
		default:
			continue
		}
		if ok, err := test(v); err != nil || ok {
			return v, ok, err
		}
	}
	return nil, false, nil
}

type mangled struct {
	code    Filter
	names   []string
	mappers map[string]Filter
}

// MapMangled matches the module selected by code, a source filter, and
// resolves to a map from each mapper name to the first export member the
// mapper accepts. Names with no accepted member are absent from the map.
func MapMangled(code Filter, mappers map[string]Filter) Filter {
	names := make([]string, 0, len(mappers))
	for name := range mappers {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + mappers[name].String()
	}
	f := Filter{
		kind: KindMangled,
		desc: "mapMangled(" + code.String() + ", {" + strings.Join(parts, ", ") + "})",
	}

	switch {
	case code.err != nil:
		f.err = code.err
		return f
	case code.source == nil:
		f.err = fmt.Errorf("mapMangled: %s is not a source filter", code)
		return f
	case len(mappers) == 0:
		f.err = fmt.Errorf("mapMangled: at least one mapper is required")
		return f
	}
	for _, name := range names {
		m := mappers[name]
		if m.err != nil {
			f.err = fmt.Errorf("mapMangled %s: %w", name, m.err)
			return f
		}
		if m.export == nil {
			f.err = fmt.Errorf("mapMangled %s: %s is not an export filter", name, m)
			return f
		}
	}

	f.mangled = &mangled{code: code, names: names, mappers: mappers}
	return f
}

func (mm *mangled) match(m *modgraph.Module) (any, bool, error) {
	hit, err := mm.code.source(m.Source)
	if err != nil || !hit {
		return nil, false, err
	}

	result := make(map[string]any, len(mm.names))
	keys := m.Exports.Keys()
	for _, name := range mm.names {
		test := mm.mappers[name].export
		for _, key := range keys {
			v := m.Exports[key]
			ok, err := test(v)
			if err != nil {
				return nil, false, err
			}
			if ok {
				result[name] = v
				break
			}
		}
	}
	return result, true, nil
}
