package modgraph

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// Snapshot is a serialized bundle: every module the host registered, in
// registration order.
type Snapshot struct {
	Build   string         `json:"build"`
	Version string         `json:"version"`
	Modules []ModuleRecord `json:"modules"`
}

// ModuleRecord is one module in a Snapshot.
type ModuleRecord struct {
	ID      string  `json:"id"`
	Source  string  `json:"source"`
	Exports Exports `json:"exports,omitempty"`
}

// ReadSnapshot parses a snapshot document. Module IDs may be strings or
// numbers.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot parses a snapshot document held in memory.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parsing snapshot: invalid JSON")
	}

	doc := gjson.ParseBytes(data)
	mods := doc.Get("modules")
	if !mods.IsArray() {
		return nil, fmt.Errorf("parsing snapshot: modules must be an array")
	}

	snap := &Snapshot{
		Build:   doc.Get("build").String(),
		Version: doc.Get("version").String(),
	}

	var parseErr error
	mods.ForEach(func(key, value gjson.Result) bool {
		id := value.Get("id")
		if !id.Exists() || id.String() == "" {
			parseErr = fmt.Errorf("parsing snapshot: module %d has no id", key.Int())
			return false
		}
		rec := ModuleRecord{
			ID:     id.String(),
			Source: value.Get("source").String(),
		}
		if ex := value.Get("exports"); ex.IsObject() {
			rec.Exports = DecodeExports(ex)
		}
		snap.Modules = append(snap.Modules, rec)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return snap, nil
}

// DecodeExports converts a JSON object into Exports. Objects of the form
// {"$function": source} become Function values.
func DecodeExports(obj gjson.Result) Exports {
	out := make(Exports)
	obj.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = decodeValue(key.String(), value)
		return true
	})
	return out
}

func decodeValue(name string, v gjson.Result) any {
	switch {
	case v.IsObject():
		if src := v.Get(gjson.Escape(functionKey)); src.Exists() {
			fnName := v.Get("name").String()
			if fnName == "" {
				fnName = name
			}
			return Function{Name: fnName, Source: src.String()}
		}
		return DecodeExports(v)
	case v.IsArray():
		var arr []any
		v.ForEach(func(_, item gjson.Result) bool {
			arr = append(arr, decodeValue("", item))
			return true
		})
		return arr
	default:
		return v.Value()
	}
}

// WriteSnapshot encodes s as indented JSON.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Replay registers every module of s into g in order.
func Replay(g *Graph, s *Snapshot) error {
	for _, rec := range s.Modules {
		if _, err := g.Register(rec.ID, rec.Source, rec.Exports); err != nil {
			return fmt.Errorf("replaying module %s: %w", rec.ID, err)
		}
	}
	return nil
}
