package canon

import "strings"

// SelfPlaceholder stands for the owning plugin's path in replacement text.
const SelfPlaceholder = "$self"

// ReplaceFunc computes replacement text from a match and its groups.
type ReplaceFunc func(match string, groups ...string) string

// Replacement is either static text or a ReplaceFunc.
type Replacement struct {
	text string
	fn   ReplaceFunc
}

// Text returns a static replacement.
func Text(s string) Replacement {
	return Replacement{text: s}
}

// Func returns a computed replacement.
func Func(fn ReplaceFunc) Replacement {
	return Replacement{fn: fn}
}

// IsFunc reports whether the replacement is computed.
func (r Replacement) IsFunc() bool {
	return r.fn != nil
}

// Text returns the static text and true, or "" and false for computed
// replacements.
func (r Replacement) Text() (string, bool) {
	if r.fn != nil {
		return "", false
	}
	return r.text, true
}

// Func returns the replacement function, or nil for static text.
func (r Replacement) Func() ReplaceFunc {
	return r.fn
}

// Expand produces the replacement text for one match.
func (r Replacement) Expand(match string, groups ...string) string {
	if r.fn != nil {
		return r.fn(match, groups...)
	}
	return r.text
}

func (r Replacement) String() string {
	if r.fn != nil {
		return "<func>"
	}
	return r.text
}

// CanonicalizeReplace substitutes every SelfPlaceholder with selfPath. Static
// text is rewritten once; a function is wrapped so each call's output is
// rewritten.
func CanonicalizeReplace(r Replacement, selfPath string) Replacement {
	if r.fn == nil {
		return Text(strings.ReplaceAll(r.text, SelfPlaceholder, selfPath))
	}
	inner := r.fn
	return Func(func(match string, groups ...string) string {
		return strings.ReplaceAll(inner(match, groups...), SelfPlaceholder, selfPath)
	})
}
