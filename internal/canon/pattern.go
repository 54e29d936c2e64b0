package canon

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// Pattern is a canonical matcher. The template it came from is kept for
// display; matching always uses the canonical source.
type Pattern struct {
	template  string
	canonical string
	flags     string
	literal   bool
	re        *regexp2.Regexp
}

// String prints the original template: the text itself for literals and
// /source/flags for regexes.
func (p *Pattern) String() string {
	if p.literal {
		return p.template
	}
	return "/" + p.template + "/" + p.flags
}

// Template returns the pre-canonicalization source.
func (p *Pattern) Template() string { return p.template }

// Canonical returns the expanded regular expression source.
func (p *Pattern) Canonical() string { return p.canonical }

// Flags returns the flags the template was written with.
func (p *Pattern) Flags() string { return p.flags }

// IsLiteral reports whether the pattern came from a Literal template.
func (p *Pattern) IsLiteral() bool { return p.literal }

// Regexp exposes the compiled matcher.
func (p *Pattern) Regexp() *regexp2.Regexp { return p.re }

// Match reports whether s contains a match. The only error is a match timeout.
func (p *Pattern) Match(s string) (bool, error) {
	ok, err := p.re.MatchString(s)
	if err != nil {
		return false, fmt.Errorf("matching %s: %w", p, err)
	}
	return ok, nil
}

// FindIndex returns the rune offset and rune length of the first match, or
// -1, 0 when there is none.
func (p *Pattern) FindIndex(s string) (int, int, error) {
	m, err := p.re.FindStringMatch(s)
	if err != nil {
		return -1, 0, fmt.Errorf("matching %s: %w", p, err)
	}
	if m == nil {
		return -1, 0, nil
	}
	return m.Index, m.Length, nil
}
