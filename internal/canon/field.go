package canon

// FieldKind says how a Field produces its value.
type FieldKind uint8

const (
	// FieldUnset holds nothing.
	FieldUnset FieldKind = iota
	// FieldValue holds a stored value.
	FieldValue
	// FieldComputed computes its value on every read.
	FieldComputed
)

func (k FieldKind) String() string {
	switch k {
	case FieldValue:
		return "value"
	case FieldComputed:
		return "computed"
	default:
		return "unset"
	}
}

// Field is a patch slot that is either stored or computed on read.
type Field[T any] struct {
	kind    FieldKind
	value   T
	compute func() (T, error)
}

// ValueOf returns a stored field.
func ValueOf[T any](v T) Field[T] {
	return Field[T]{kind: FieldValue, value: v}
}

// ComputedFrom returns a field that calls fn on every read.
func ComputedFrom[T any](fn func() (T, error)) Field[T] {
	if fn == nil {
		return Field[T]{}
	}
	return Field[T]{kind: FieldComputed, compute: fn}
}

// Kind returns how the field produces its value.
func (f Field[T]) Kind() FieldKind {
	return f.kind
}

// IsSet reports whether the field holds a value or a computation.
func (f Field[T]) IsSet() bool {
	return f.kind != FieldUnset
}

// Get returns the stored value or runs the computation.
func (f Field[T]) Get() (T, error) {
	if f.kind == FieldComputed {
		return f.compute()
	}
	return f.value, nil
}

// Rewrite applies fn at the point f produces its value. Stored values are
// transformed once, in place; computations are wrapped so every future read
// is transformed. Unset fields are left alone. The kind never changes.
func Rewrite[T any](f *Field[T], fn func(T) (T, error)) error {
	switch f.kind {
	case FieldValue:
		v, err := fn(f.value)
		if err != nil {
			return err
		}
		f.value = v
	case FieldComputed:
		inner := f.compute
		f.compute = func() (T, error) {
			v, err := inner()
			if err != nil {
				return v, err
			}
			return fn(v)
		}
	}
	return nil
}

// RewriteMatch canonicalizes a pattern-bearing field with c.
func RewriteMatch(f *Field[Template], c *Canonicalizer) error {
	if c == nil {
		c = Default
	}
	return Rewrite(f, func(t Template) (Template, error) {
		if t == nil {
			return nil, nil
		}
		p, err := c.Canonicalize(t)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// RewriteReplace canonicalizes a replacement-bearing field for selfPath.
func RewriteReplace(f *Field[Replacement], selfPath string) error {
	return Rewrite(f, func(r Replacement) (Replacement, error) {
		return CanonicalizeReplace(r, selfPath), nil
	})
}
