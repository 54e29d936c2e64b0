package canon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Hashed forms used below:
//
//	DONE   current i4jeWV  legacy Wl0TH1
//	CANCEL current ETE/oK  legacy wYDgKa
//	KEY_21 current vhq0np  legacy 4DKv+J
//	KEY_3  current 74e88v  legacy o9aU2P
//	CLOSE  current cpT0Cg  legacy cRR6rw

func matches(t *testing.T, p *Pattern, s string) bool {
	t.Helper()
	ok, err := p.Match(s)
	require.NoError(t, err)
	return ok
}

func TestCanonicalizeIntlPlaceholder(t *testing.T) {
	tests := []struct {
		name      string
		template  Template
		canonical string
	}{
		{
			name:      "accessor forms",
			template:  Literal("#{intl::DONE}"),
			canonical: `(?:(?:\.i4jeWV)|(?:\.Wl0TH1))`,
		},
		{
			name:      "slash forces bracket",
			template:  Literal("#{intl::CANCEL}"),
			canonical: `(?:(?:\["ETE/oK"\])|(?:\.wYDgKa))`,
		},
		{
			name:      "leading digit and plus",
			template:  Literal("#{intl::KEY_21}"),
			canonical: `(?:(?:\.vhq0np)|(?:\["4DKv\+J"\]))`,
		},
		{
			name:      "raw modifier",
			template:  Literal("#{intl::ETE/oK::raw}"),
			canonical: `(?:\["ETE/oK"\])`,
		},
		{
			name:      "regex template",
			template:  Regex{Source: `\i#{intl::DONE}\(`},
			canonical: IdentPattern + `(?:(?:\.i4jeWV)|(?:\.Wl0TH1))\(`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Canonicalize(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.canonical, p.Canonical())
		})
	}
}

func TestCanonicalPatternMatchesBothSchemes(t *testing.T) {
	p, err := Canonicalize(Literal(`children:#{intl::KEY_21}`))
	require.NoError(t, err)

	assert.True(t, matches(t, p, `({children:e.vhq0np})`))
	assert.True(t, matches(t, p, `({children:e["4DKv+J"]})`))
	assert.False(t, matches(t, p, `({children:e.4DKv+J})`))
	assert.False(t, matches(t, p, `({children:e.cpT0Cg})`), "unrelated key must not match")

	done := MustCanonicalize(Literal("#{intl::DONE}"))
	assert.True(t, matches(t, done, "x.i4jeWV"))
	assert.True(t, matches(t, done, "x.Wl0TH1"))
	assert.False(t, matches(t, done, "x.cRR6rw"))
}

func TestCanonicalizeLiteralEscaping(t *testing.T) {
	p := MustCanonicalize(Literal("a.b"))
	assert.Equal(t, `a\.b`, p.Canonical())
	assert.True(t, matches(t, p, "xa.by"))
	assert.False(t, matches(t, p, "axb"))

	special := `.(x)[y]{2}+?^$|*\`
	p = MustCanonicalize(Literal(special))
	assert.True(t, matches(t, p, "prefix"+special+"suffix"))
	assert.False(t, matches(t, p, "x[y]yy+"))
}

func TestCanonicalizeLiteralRoundTrip(t *testing.T) {
	for _, s := range []string{"renderPopout:this.renderPopout,", `"markDash".concat(`, "plain text", ""} {
		p := MustCanonicalize(Literal(s))
		assert.True(t, matches(t, p, s), "literal %q should match itself", s)
	}
}

func TestCanonicalizeIdentWildcard(t *testing.T) {
	p := MustCanonicalize(Literal("#{ident}.track("))
	assert.True(t, matches(t, p, "n.track("))
	assert.True(t, matches(t, p, "$_q1.track("))
	assert.False(t, matches(t, p, "1.track("))

	re := MustCanonicalize(Regex{Source: `\i\.track\(`})
	assert.True(t, matches(t, re, "e.track("))

	// An escaped backslash followed by i is not the wildcard.
	escaped := MustCanonicalize(Regex{Source: `\\i`})
	assert.Equal(t, `\\i`, escaped.Canonical())
	assert.True(t, matches(t, escaped, `a\ib`))

	// In literals \i is plain text.
	lit := MustCanonicalize(Literal(`\i`))
	assert.True(t, matches(t, lit, `\i`))
	assert.False(t, matches(t, lit, `abc`))
}

func TestCanonicalizeRegexPreservesFlagsAndDisplay(t *testing.T) {
	src := `#{intl::DONE},onClick:\i`
	p, err := Canonicalize(Regex{Source: src, Flags: "gi"})
	require.NoError(t, err)

	assert.Equal(t, "gi", p.Flags())
	assert.Equal(t, src, p.Template())
	assert.Equal(t, "/"+src+"/gi", p.String())
	assert.NotContains(t, p.Canonical(), "#{")
	assert.True(t, matches(t, p, "X.I4JEWV,ONCLICK:E"), "i flag applies")

	lit := MustCanonicalize(Literal("#{intl::DONE}"))
	assert.Equal(t, "#{intl::DONE}", lit.String())
}

func TestCanonicalizeRegexFeatures(t *testing.T) {
	p := MustCanonicalize(Regex{Source: `(?<=\.)track\((\i)\)(?!;)`})
	assert.True(t, matches(t, p, "a.track(e)"))
	assert.False(t, matches(t, p, "track(e)"))
	assert.False(t, matches(t, p, "a.track(e);"))

	backref := MustCanonicalize(Regex{Source: `(\i)=\1`})
	assert.True(t, matches(t, backref, "ab=ab"))
	assert.False(t, matches(t, backref, "ab=cd"))
}

func TestRegexDialect(t *testing.T) {
	end := MustCanonicalize(Regex{Source: `^\i$`})
	assert.True(t, matches(t, end, "abc"))
	assert.False(t, matches(t, end, "abc\n"), "$ does not match before a trailing newline")

	multi := MustCanonicalize(Regex{Source: `^\i$`, Flags: "m"})
	assert.True(t, matches(t, multi, "x=1\nabc\n"))

	digits := MustCanonicalize(Regex{Source: `^\d+$`})
	assert.True(t, matches(t, digits, "0123"))
	assert.False(t, matches(t, digits, "١٢٣"), "\\d is ASCII only")

	word := MustCanonicalize(Regex{Source: `^\w+$`})
	assert.False(t, matches(t, word, "ünï"), "\\w is ASCII only")

	dot := MustCanonicalize(Regex{Source: `a.b`})
	assert.False(t, matches(t, dot, "a\nb"))
	assert.False(t, matches(t, dot, "a\rb"))

	dotAllFlag := MustCanonicalize(Regex{Source: `a.b[.]c\.`, Flags: "s"})
	assert.True(t, matches(t, dotAllFlag, "a\nb.c."))
	assert.False(t, matches(t, dotAllFlag, "a\nbxc."), "dots in classes stay literal")
	assert.Equal(t, `a.b[.]c\.`, dotAllFlag.Canonical())

	_, err := Canonicalize(Regex{Source: `\u{1F600}`, Flags: "u"})
	assert.NoError(t, err)
}

func TestDotAll(t *testing.T) {
	assert.Equal(t, `a[\s\S]b`, dotAll(`a.b`))
	assert.Equal(t, `\.[.\]][\s\S]`, dotAll(`\.[.\]].`))
	assert.Equal(t, `abc`, dotAll(`abc`))
}

func TestCanonicalizeIdempotent(t *testing.T) {
	first, err := Canonicalize(Regex{Source: `#{intl::KEY_21}\i#{ident}`, Flags: "s"})
	require.NoError(t, err)

	same, err := Canonicalize(first)
	require.NoError(t, err)
	assert.Same(t, first, same)

	again, err := Canonicalize(Regex{Source: first.Canonical(), Flags: first.Flags()})
	require.NoError(t, err)
	assert.Equal(t, first.Canonical(), again.Canonical())
}

func TestCanonicalizeMalformed(t *testing.T) {
	tests := []struct {
		name     string
		template Template
	}{
		{name: "unterminated key", template: Literal("foo#{intl::DONE")},
		{name: "unterminated name", template: Literal("#{intl")},
		{name: "missing key", template: Literal("#{intl}")},
		{name: "empty key", template: Literal("#{intl::}")},
		{name: "unknown modifier", template: Literal("#{intl::DONE::upper}")},
		{name: "unknown placeholder", template: Literal("#{nope}")},
		{name: "ident with args", template: Literal("#{ident::x}")},
		{name: "regex unterminated", template: Regex{Source: `\.#{intl::DONE`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Canonicalize(tt.template)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTemplate), "got %v", err)

			var te *TemplateError
			require.True(t, errors.As(err, &te))
			assert.NotEmpty(t, te.Reason)
		})
	}
}

func TestCanonicalizeNotPlaceholders(t *testing.T) {
	// Text that only resembles placeholder syntax is literal.
	p := MustCanonicalize(Literal("a#{1}b#{ x}"))
	assert.True(t, matches(t, p, "a#{1}b#{ x}"))
	assert.False(t, HasPlaceholders("a#{1}b"))
	assert.True(t, HasPlaceholders("#{intl::DONE}"))
	assert.True(t, HasPlaceholders("#{intl::DONE"))

	// An escaped hash in a regex hides the placeholder.
	re := MustCanonicalize(Regex{Source: `\#{ident}`})
	assert.Equal(t, `\#{ident}`, re.Canonical())
}

func TestCanonicalizeErrors(t *testing.T) {
	_, err := Canonicalize(Regex{Source: "a", Flags: "x"})
	assert.ErrorIs(t, err, ErrUnsupportedFlag)

	_, err = Canonicalize(Regex{Source: "(unclosed"})
	assert.Error(t, err)

	_, err = Canonicalize(nil)
	assert.Error(t, err)
}

func TestBracketRule(t *testing.T) {
	def := DefaultBracketRule()
	assert.True(t, def.NeedsBracket("74e88v"))
	assert.True(t, def.NeedsBracket("ETE/oK"))
	assert.True(t, def.NeedsBracket("A2+FmV"))
	assert.False(t, def.NeedsBracket("i4jeWV"))
	assert.False(t, def.NeedsBracket(""))

	noDigits := New(Options{Bracket: BracketRule{Chars: "+/"}})
	p, err := noDigits.Canonicalize(Literal("#{intl::KEY_3}"))
	require.NoError(t, err)
	assert.Equal(t, `(?:(?:\.74e88v)|(?:\.o9aU2P))`, p.Canonical())

	p = MustCanonicalize(Literal("#{intl::KEY_3}"))
	assert.Equal(t, `(?:(?:\["74e88v"\])|(?:\.o9aU2P))`, p.Canonical())

	extra := New(Options{Bracket: BracketRule{LeadingDigit: true, Chars: "+/U"}})
	p, err = extra.Canonicalize(Literal("#{intl::KEY_3}"))
	require.NoError(t, err)
	assert.Equal(t, `(?:(?:\["74e88v"\])|(?:\["o9aU2P"\]))`, p.Canonical())
}

func TestCanonicalizerCustomHashers(t *testing.T) {
	c := New(Options{
		Hash:       func(k string) string { return "cur" + k },
		HashLegacy: func(k string) string { return "old" + k },
	})
	p, err := c.Canonicalize(Literal("#{intl::X}"))
	require.NoError(t, err)
	assert.Equal(t, `(?:(?:\.curX)|(?:\.oldX))`, p.Canonical())
}

func TestPatternFindIndex(t *testing.T) {
	p := MustCanonicalize(Literal("b.c"))
	idx, n, err := p.FindIndex("aab.cd")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 3, n)

	idx, _, err = p.FindIndex("nothing")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}
