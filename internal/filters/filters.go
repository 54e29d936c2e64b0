package filters

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/steveyegge/modhook/internal/modgraph"
)

// Kind identifies the shape of a filter.
type Kind uint8

const (
	KindCode Kind = iota + 1
	KindPattern
	KindProps
	KindFunc
	KindComponentCode
	KindMangled
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "byCode"
	case KindPattern:
		return "byPattern"
	case KindProps:
		return "byProps"
	case KindFunc:
		return "byFunc"
	case KindComponentCode:
		return "componentByCode"
	case KindMangled:
		return "mapMangled"
	}
	return "unknown"
}

// Filter is an immutable module predicate.
type Filter struct {
	kind Kind
	desc string
	name string
	err  error

	// source filters test the module source
	source func(src string) (bool, error)
	// export filters test one candidate value from the export tree
	export func(v any) (bool, error)
	// mangled filters build their own value
	mangled *mangled
}

// Kind returns the filter's shape.
func (f Filter) Kind() Kind { return f.kind }

// Name returns the name set with Named, or "".
func (f Filter) Name() string { return f.name }

// Err returns the error encountered while building the filter.
func (f Filter) Err() error { return f.err }

// IsZero reports whether f was never built.
func (f Filter) IsZero() bool { return f.kind == 0 }

// String describes the filter for logs and reports.
func (f Filter) String() string {
	if f.name != "" {
		return f.name + "=" + f.desc
	}
	return f.desc
}

// Named returns f with a human name used in diagnostics.
func Named(name string, f Filter) Filter {
	f.name = name
	return f
}

// ByCode matches modules whose source contains every code string. Codes
// with placeholders are canonicalized with canon.Default.
func ByCode(codes ...string) Filter {
	return byCode(canon.Default, codes)
}

// ByCodeWith is ByCode with an explicit canonicalizer.
func ByCodeWith(c *canon.Canonicalizer, codes ...string) Filter {
	return byCode(c, codes)
}

func byCode(c *canon.Canonicalizer, codes []string) Filter {
	f := Filter{kind: KindCode, desc: describe(KindCode, codes)}
	test, err := containsAll(c, codes)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", f.desc, err)
		return f
	}
	f.source = test
	return f
}

// ByPattern matches modules whose source matches t.
func ByPattern(t canon.Template) Filter {
	return ByPatternWith(canon.Default, t)
}

// ByPatternWith is ByPattern with an explicit canonicalizer.
func ByPatternWith(c *canon.Canonicalizer, t canon.Template) Filter {
	f := Filter{kind: KindPattern}
	p, err := c.Canonicalize(t)
	if err != nil {
		f.desc = "byPattern(?)"
		f.err = fmt.Errorf("byPattern: %w", err)
		return f
	}
	f.desc = "byPattern(" + p.String() + ")"
	f.source = p.Match
	return f
}

// ByProps matches an export object that has every named property.
func ByProps(props ...string) Filter {
	f := Filter{kind: KindProps, desc: describe(KindProps, props)}
	if len(props) == 0 {
		f.err = fmt.Errorf("byProps: at least one property is required")
		return f
	}
	f.export = func(v any) (bool, error) {
		ex, ok := v.(modgraph.Exports)
		return ok && ex.HasAll(props...), nil
	}
	return f
}

// ByFunc matches export values for which fn returns true. desc labels the
// filter in diagnostics. When the filter backs a finder interest, fn runs
// under the registry's evaluation lock and must not declare new interests.
func ByFunc(desc string, fn func(v any) bool) Filter {
	f := Filter{kind: KindFunc, desc: "byFunc(" + desc + ")"}
	if fn == nil {
		f.err = fmt.Errorf("byFunc: nil predicate")
		return f
	}
	f.export = func(v any) (bool, error) {
		return fn(v), nil
	}
	return f
}

// ComponentByCode matches an exported function whose source contains every
// code string.
func ComponentByCode(codes ...string) Filter {
	return ComponentByCodeWith(canon.Default, codes...)
}

// ComponentByCodeWith is ComponentByCode with an explicit canonicalizer.
func ComponentByCodeWith(c *canon.Canonicalizer, codes ...string) Filter {
	f := Filter{kind: KindComponentCode, desc: describe(KindComponentCode, codes)}
	test, err := containsAll(c, codes)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", f.desc, err)
		return f
	}
	f.export = func(v any) (bool, error) {
		fn, ok := v.(modgraph.Function)
		if !ok {
			return false, nil
		}
		return test(fn.Source)
	}
	return f
}

// containsAll builds a conjunction of substring tests. Codes are tested
// longest first; codes with placeholders become canonical patterns.
func containsAll(c *canon.Canonicalizer, codes []string) (func(string) (bool, error), error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("at least one code string is required")
	}

	sorted := make([]string, len(codes))
	copy(sorted, codes)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	var (
		literals []string
		patterns []*canon.Pattern
	)
	for _, code := range sorted {
		if !canon.HasPlaceholders(code) {
			literals = append(literals, code)
			continue
		}
		p, err := c.Canonicalize(canon.Literal(code))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}

	return func(src string) (bool, error) {
		for _, l := range literals {
			if !strings.Contains(src, l) {
				return false, nil
			}
		}
		for _, p := range patterns {
			ok, err := p.Match(src)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}, nil
}

func describe(k Kind, args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = strconv.Quote(a)
	}
	return k.String() + "(" + strings.Join(quoted, ", ") + ")"
}
