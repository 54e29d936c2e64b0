package modgraph

import (
	"encoding/json"
	"sort"
)

// Module is one registered host module.
type Module struct {
	// ID is the host's opaque module identifier.
	ID string
	// Seq is the registration order, starting at 1.
	Seq uint64
	// Source is the module factory's source text.
	Source string
	// Exports is the module's export object, nil before it has executed.
	Exports Exports
}

// Exports is a module export object. Values are Exports, Function, or JSON
// scalars and arrays.
type Exports map[string]any

// Keys returns the export names in sorted order.
func (e Exports) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// HasAll reports whether every name is an own key of e.
func (e Exports) HasAll(names ...string) bool {
	if e == nil {
		return false
	}
	for _, n := range names {
		if _, ok := e[n]; !ok {
			return false
		}
	}
	return true
}

// Default returns the "default" member when it is an object or function.
func (e Exports) Default() (any, bool) {
	v, ok := e["default"]
	if !ok {
		return nil, false
	}
	switch v.(type) {
	case Exports, Function:
		return v, true
	}
	return nil, false
}

// Function is an exported function, represented by its source text.
type Function struct {
	Name   string
	Source string
}

const functionKey = "$function"

// MarshalJSON encodes f as {"$function": source}.
func (f Function) MarshalJSON() ([]byte, error) {
	m := map[string]string{functionKey: f.Source}
	if f.Name != "" {
		m["name"] = f.Name
	}
	return json.Marshal(m)
}

func (f Function) String() string {
	return f.Source
}
