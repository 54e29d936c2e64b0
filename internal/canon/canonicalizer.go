package canon

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/steveyegge/modhook/internal/intlhash"
)

// IdentPattern matches a bare identifier.
const IdentPattern = `(?:[A-Za-z_$][\w$]*)`

// ErrUnsupportedFlag is returned for regex flags with no matcher equivalent.
var ErrUnsupportedFlag = errors.New("unsupported regex flag")

// BracketRule decides when a hashed token must be rendered as an index
// access (["tok"]) instead of a property access (.tok).
type BracketRule struct {
	// LeadingDigit requires brackets for tokens starting with 0-9.
	LeadingDigit bool
	// Chars lists characters that force bracket form anywhere in the token.
	Chars string
}

// DefaultBracketRule matches the host's key alphabet.
func DefaultBracketRule() BracketRule {
	return BracketRule{LeadingDigit: true, Chars: "+/"}
}

// IsZero reports whether the rule is unset.
func (r BracketRule) IsZero() bool {
	return !r.LeadingDigit && r.Chars == ""
}

// NeedsBracket reports whether tok must use index syntax.
func (r BracketRule) NeedsBracket(tok string) bool {
	if tok == "" {
		return false
	}
	if r.LeadingDigit && tok[0] >= '0' && tok[0] <= '9' {
		return true
	}
	return r.Chars != "" && strings.ContainsAny(tok, r.Chars)
}

// Options configures a Canonicalizer.
type Options struct {
	// Bracket is the token rendering rule. The zero value means DefaultBracketRule.
	Bracket BracketRule
	// MatchTimeout bounds a single match. Zero means no timeout.
	MatchTimeout time.Duration
	// Hash and HashLegacy default to the intlhash functions.
	Hash       func(key string) string
	HashLegacy func(key string) string
}

// DefaultOptions returns the options used by Default.
func DefaultOptions() Options {
	return Options{
		Bracket:    DefaultBracketRule(),
		Hash:       intlhash.Hash,
		HashLegacy: intlhash.HashLegacy,
	}
}

// Canonicalizer expands templates for one host build. It is immutable and
// safe for concurrent use.
type Canonicalizer struct {
	opts Options
}

// Default is the canonicalizer used by the package-level helpers.
var Default = New(DefaultOptions())

// New creates a Canonicalizer, filling unset options with defaults.
func New(opts Options) *Canonicalizer {
	if opts.Bracket.IsZero() {
		opts.Bracket = DefaultBracketRule()
	}
	if opts.Hash == nil {
		opts.Hash = intlhash.Hash
	}
	if opts.HashLegacy == nil {
		opts.HashLegacy = intlhash.HashLegacy
	}
	return &Canonicalizer{opts: opts}
}

// Options returns a copy of the canonicalizer's options.
func (c *Canonicalizer) Options() Options {
	return c.opts
}

// Canonicalize expands t into a Pattern. A *Pattern is returned as-is.
func Canonicalize(t Template) (*Pattern, error) {
	return Default.Canonicalize(t)
}

// MustCanonicalize is Canonicalize for templates known at compile time.
func MustCanonicalize(t Template) *Pattern {
	p, err := Default.Canonicalize(t)
	if err != nil {
		panic(err)
	}
	return p
}

// Canonicalize expands t into a Pattern. A *Pattern is returned as-is.
func (c *Canonicalizer) Canonicalize(t Template) (*Pattern, error) {
	switch t := t.(type) {
	case *Pattern:
		if t == nil {
			return nil, fmt.Errorf("canonicalize: nil pattern")
		}
		return t, nil
	case Literal:
		return c.canonicalizeLiteral(string(t))
	case Regex:
		return c.canonicalizeRegex(t)
	case nil:
		return nil, fmt.Errorf("canonicalize: nil template")
	default:
		return nil, fmt.Errorf("canonicalize: unsupported template type %T", t)
	}
}

func (c *Canonicalizer) canonicalizeLiteral(src string) (*Pattern, error) {
	tokens, err := scan(src, false)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, tok := range tokens {
		if tok.kind == tokenText {
			b.WriteString(regexp.QuoteMeta(tok.text))
			continue
		}
		b.WriteString(c.expand(tok))
	}
	return c.compile(src, b.String(), "", true)
}

func (c *Canonicalizer) canonicalizeRegex(r Regex) (*Pattern, error) {
	tokens, err := scan(r.Source, true)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	for _, tok := range tokens {
		if tok.kind == tokenText {
			b.WriteString(tok.text)
			continue
		}
		b.WriteString(c.expand(tok))
	}
	return c.compile(r.Source, b.String(), r.Flags, false)
}

func (c *Canonicalizer) expand(tok token) string {
	switch tok.kind {
	case tokenIdent:
		return IdentPattern
	case tokenIntl:
		if tok.modifier == RawModifier {
			return c.Render(tok.key)
		}
		return c.CompatFragment(tok.key)
	}
	return ""
}

// Render renders a hashed token as a property or index access fragment.
func (c *Canonicalizer) Render(hashed string) string {
	quoted := regexp.QuoteMeta(hashed)
	if c.opts.Bracket.NeedsBracket(hashed) {
		return `(?:\["` + quoted + `"\])`
	}
	return `(?:\.` + quoted + `)`
}

// CompatFragment matches either hashed form of key.
func (c *Canonicalizer) CompatFragment(key string) string {
	return `(?:` + c.Render(c.opts.Hash(key)) + `|` + c.Render(c.opts.HashLegacy(key)) + `)`
}

func (c *Canonicalizer) compile(template, canonical, flags string, literal bool) (*Pattern, error) {
	opts, err := regexOptions(flags)
	if err != nil {
		return nil, err
	}
	expr := canonical
	if opts&regexp2.Singleline != 0 {
		expr = dotAll(canonical)
	}
	re, err := regexp2.Compile(expr, opts)
	if err != nil {
		return nil, fmt.Errorf("compiling canonical pattern for %q: %w", template, err)
	}
	if c.opts.MatchTimeout > 0 {
		re.MatchTimeout = c.opts.MatchTimeout
	}
	return &Pattern{
		template:  template,
		canonical: canonical,
		flags:     flags,
		literal:   literal,
		re:        re,
	}, nil
}

// regexOptions maps JavaScript flags onto regexp2 options. Patterns always
// compile in ECMAScript mode, so $ only matches at the very end and \d, \w
// and \s are ASCII classes. Flags that only affect iteration (g, y) or match
// indices (d) are accepted and ignored.
func regexOptions(flags string) (regexp2.RegexOptions, error) {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	for _, f := range flags {
		switch f {
		case 'i':
			opts |= regexp2.IgnoreCase
		case 'm':
			opts |= regexp2.Multiline
		case 's':
			opts |= regexp2.Singleline
		case 'u', 'v':
			opts |= regexp2.Unicode
		case 'g', 'y', 'd':
		default:
			return 0, fmt.Errorf("%w %q", ErrUnsupportedFlag, f)
		}
	}
	return opts, nil
}

// dotAll rewrites each unescaped . outside a character class to [\s\S].
// regexp2 ignores Singleline for . in ECMAScript mode.
func dotAll(expr string) string {
	if !strings.Contains(expr, ".") {
		return expr
	}
	var b strings.Builder
	b.Grow(len(expr) + 8)
	inClass := false
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case ch == '\\' && i+1 < len(expr):
			b.WriteByte(ch)
			i++
			b.WriteByte(expr[i])
			continue
		case inClass && ch == ']':
			inClass = false
		case !inClass && ch == '[':
			inClass = true
		case !inClass && ch == '.':
			b.WriteString(`[\s\S]`)
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
