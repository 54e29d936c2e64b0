package canon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteValueField(t *testing.T) {
	f := ValueOf[Template](Literal("a.b"))
	require.NoError(t, RewriteMatch(&f, nil))
	assert.Equal(t, FieldValue, f.Kind())

	v, err := f.Get()
	require.NoError(t, err)
	p, ok := v.(*Pattern)
	require.True(t, ok)
	assert.Equal(t, `a\.b`, p.Canonical())

	// A second rewrite is a no-op by idempotence.
	require.NoError(t, RewriteMatch(&f, nil))
	v2, _ := f.Get()
	assert.Same(t, p, v2)
}

func TestRewriteComputedField(t *testing.T) {
	reads := 0
	f := ComputedFrom(func() (Template, error) {
		reads++
		if reads%2 == 1 {
			return Literal("#{intl::DONE}"), nil
		}
		return Literal("plain"), nil
	})

	require.NoError(t, RewriteMatch(&f, nil))
	assert.Equal(t, FieldComputed, f.Kind())
	assert.Equal(t, 0, reads, "rewrite must not evaluate the computation")

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, `(?:(?:\.i4jeWV)|(?:\.Wl0TH1))`, v.(*Pattern).Canonical())

	v, err = f.Get()
	require.NoError(t, err)
	assert.Equal(t, "plain", v.(*Pattern).Canonical())
	assert.Equal(t, 2, reads)
}

func TestRewriteErrors(t *testing.T) {
	f := ValueOf[Template](Literal("#{intl::BROKEN"))
	err := RewriteMatch(&f, nil)
	assert.ErrorIs(t, err, ErrMalformedTemplate)

	lazy := ComputedFrom(func() (Template, error) { return Literal("#{nope}"), nil })
	require.NoError(t, RewriteMatch(&lazy, nil))
	_, err = lazy.Get()
	assert.ErrorIs(t, err, ErrMalformedTemplate)

	boom := errors.New("boom")
	failing := ComputedFrom(func() (Template, error) { return nil, boom })
	require.NoError(t, RewriteMatch(&failing, nil))
	_, err = failing.Get()
	assert.ErrorIs(t, err, boom)
}

func TestRewriteUnsetField(t *testing.T) {
	var f Field[Replacement]
	require.NoError(t, RewriteReplace(&f, "plugins/Foo"))
	assert.Equal(t, FieldUnset, f.Kind())
	assert.False(t, f.IsSet())

	nilFn := ComputedFrom[Replacement](nil)
	assert.False(t, nilFn.IsSet())
}

func TestRewriteReplaceField(t *testing.T) {
	stored := ValueOf(Text("$self.x"))
	require.NoError(t, RewriteReplace(&stored, "plugins/Foo"))
	r, _ := stored.Get()
	assert.Equal(t, "plugins/Foo.x", r.String())

	n := 0
	computed := ComputedFrom(func() (Replacement, error) {
		n++
		return Text("$self.y"), nil
	})
	require.NoError(t, RewriteReplace(&computed, "plugins/Bar"))
	assert.Equal(t, FieldComputed, computed.Kind())
	r, _ = computed.Get()
	assert.Equal(t, "plugins/Bar.y", r.String())
	assert.Equal(t, "computed", computed.Kind().String())
	assert.Equal(t, 1, n)
}
