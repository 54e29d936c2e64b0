package patches

import (
	"errors"
	"strings"
	"testing"

	"github.com/steveyegge/modhook/internal/canon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preparedPatch(t *testing.T, p *Patch) *Patch {
	t.Helper()
	if p.Plugin == "" {
		p.Plugin = "Foo"
	}
	if !p.Find.IsSet() {
		p.Find = canon.ValueOf[canon.Template](canon.Literal("find"))
	}
	require.NoError(t, Canonicalize(p, "plugins/Foo", nil))
	return p
}

func TestApplyGlobalRegexWithGroups(t *testing.T) {
	p := preparedPatch(t, &Patch{Replacements: []Replacement{
		textReplacement(canon.Regex{Source: `(\i)\.track\(`, Flags: "g"}, "$self.track($1,"),
	}})

	res := Apply("a.track(1);b.track(2)", p, nil)
	assert.Equal(t, "plugins/Foo.track(a,1);plugins/Foo.track(b,2)", res.Source)
	require.Len(t, res.Replacements, 1)
	assert.Equal(t, Applied, res.Replacements[0].Outcome)
	assert.True(t, res.Changed())
}

func TestApplyNamedGroupReferences(t *testing.T) {
	p := preparedPatch(t, &Patch{Replacements: []Replacement{
		textReplacement(canon.Regex{Source: `(?<obj>\i)\.track\((?<arg>\d+)\)`, Flags: "g"}, "$self.track($<obj>,$<arg>)"),
	}})

	res := Apply("a.track(1);b.track(2)", p, nil)
	assert.Equal(t, "plugins/Foo.track(a,1);plugins/Foo.track(b,2)", res.Source)
}

func TestSubstitutionSyntax(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "plain", want: "plain"},
		{in: "$1.x", want: "$1.x"},
		{in: "$<name>()", want: "${name}()"},
		{in: "${name}", want: "${name}"},
		{in: "$$<name>", want: "$$<name>"},
		{in: "cost: $_ and $+", want: "cost: $$_ and $$+"},
		{in: "$<open", want: "$$<open"},
		{in: "$<>", want: "$$<>"},
		{in: "tail$", want: "tail$"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, substitutionSyntax(tt.in), tt.in)
	}

	pat := canon.MustCanonicalize(canon.Regex{Source: `(\d+)`})
	out, err := Replace(pat, canon.Text("<$_|$+|$1>"), "n=42")
	require.NoError(t, err)
	assert.Equal(t, "n=<$_|$+|42>", out)
}

func TestApplyReplacesFirstMatchWithoutGlobalFlag(t *testing.T) {
	p := preparedPatch(t, &Patch{Replacements: []Replacement{
		textReplacement(canon.Literal("x.y"), "z"),
	}})

	res := Apply("x.y x.y xzy", p, nil)
	assert.Equal(t, "z x.y xzy", res.Source)
}

func TestApplyFuncReplacement(t *testing.T) {
	p := preparedPatch(t, &Patch{Replacements: []Replacement{{
		Match: canon.ValueOf[canon.Template](canon.Regex{Source: `render\((\w+)\)`}),
		Replace: canon.ValueOf(canon.Func(func(match string, groups ...string) string {
			return "$self.render(" + strings.ToUpper(groups[0]) + ")"
		})),
	}}})

	res := Apply("render(props)", p, nil)
	assert.Equal(t, "plugins/Foo.render(PROPS)", res.Source)
}

func TestApplyChainsReplacements(t *testing.T) {
	p := preparedPatch(t, &Patch{Replacements: []Replacement{
		textReplacement(canon.Literal("a"), "b"),
		textReplacement(canon.Literal("b"), "c"),
		textReplacement(canon.Literal("missing"), "d"),
	}})

	res := Apply("a", p, nil)
	assert.Equal(t, "c", res.Source)
	require.Len(t, res.Replacements, 3)
	assert.Equal(t, Applied, res.Replacements[1].Outcome)
	assert.Equal(t, NoEffect, res.Replacements[2].Outcome)
	assert.Equal(t, "missing", res.Replacements[2].Match)
	assert.False(t, res.Reverted)
}

func TestApplyGroupReverts(t *testing.T) {
	p := preparedPatch(t, &Patch{Group: true, Replacements: []Replacement{
		textReplacement(canon.Literal("a"), "b"),
		textReplacement(canon.Literal("missing"), "d"),
		textReplacement(canon.Literal("b"), "c"),
	}})

	res := Apply("a", p, nil)
	assert.True(t, res.Reverted)
	assert.Equal(t, "a", res.Source)
	assert.False(t, res.Changed())
	assert.Len(t, res.Replacements, 2, "replacements after the failure are not attempted")
}

func TestApplyPredicates(t *testing.T) {
	off := func() bool { return false }

	disabled := preparedPatch(t, &Patch{Predicate: off, Replacements: []Replacement{
		textReplacement(canon.Literal("a"), "b"),
	}})
	res := Apply("a", disabled, nil)
	assert.True(t, res.Disabled)
	assert.Equal(t, "a", res.Source)

	r := textReplacement(canon.Literal("a"), "b")
	r.Predicate = off
	partial := preparedPatch(t, &Patch{Replacements: []Replacement{r, textReplacement(canon.Literal("a"), "c")}})
	res = Apply("a", partial, nil)
	assert.Equal(t, Skipped, res.Replacements[0].Outcome)
	assert.Equal(t, "c", res.Source)
}

func TestApplyComputedMatch(t *testing.T) {
	p := preparedPatch(t, &Patch{Replacements: []Replacement{{
		Match: canon.ComputedFrom(func() (canon.Template, error) {
			return canon.Literal("#{intl::DONE}"), nil
		}),
		Replace: canon.ValueOf(canon.Text("X")),
	}}})

	res := Apply("e.Wl0TH1", p, nil)
	assert.Equal(t, "eX", res.Source)
}

func TestApplyFailures(t *testing.T) {
	boom := errors.New("boom")
	p := preparedPatch(t, &Patch{Group: true, Replacements: []Replacement{{
		Match: canon.ComputedFrom(func() (canon.Template, error) { return nil, boom }),
		Replace: canon.ValueOf(canon.Text("x")),
	}}})

	res := Apply("a", p, nil)
	require.Len(t, res.Replacements, 1)
	assert.Equal(t, Failed, res.Replacements[0].Outcome)
	assert.ErrorIs(t, res.Replacements[0].Err, boom)
	assert.True(t, res.Reverted)

	noReplace := preparedPatch(t, &Patch{Replacements: []Replacement{{
		Match: canon.ValueOf[canon.Template](canon.Literal("a")),
	}}})
	res = Apply("a", noReplace, nil)
	assert.Equal(t, Failed, res.Replacements[0].Outcome)
}
