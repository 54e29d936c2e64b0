package modgraph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSnapshot = `{
  "build": "stable-372210",
  "version": "v0.0.372",
  "modules": [
    {"id": 48211, "source": "e.exports={getCurrentUser:function(){}}",
     "exports": {"getCurrentUser": {"$function": "function(){return n}"}, "count": 3}},
    {"id": "popout", "source": "renderPopout:this.renderPopout",
     "exports": {"default": {"Z": {"$function": "function(e){return e.i4jeWV}", "name": "Popout"}}, "tags": ["a", 1]}},
    {"id": "bare", "source": "x"}
  ]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ReadSnapshot(strings.NewReader(sampleSnapshot))
	require.NoError(t, err)

	assert.Equal(t, "stable-372210", snap.Build)
	assert.Equal(t, "v0.0.372", snap.Version)
	require.Len(t, snap.Modules, 3)

	first := snap.Modules[0]
	assert.Equal(t, "48211", first.ID)
	fn, ok := first.Exports["getCurrentUser"].(Function)
	require.True(t, ok)
	assert.Equal(t, "getCurrentUser", fn.Name)
	assert.Equal(t, "function(){return n}", fn.Source)
	assert.Equal(t, 3.0, first.Exports["count"])

	second := snap.Modules[1]
	def, ok := second.Exports["default"].(Exports)
	require.True(t, ok)
	z, ok := def["Z"].(Function)
	require.True(t, ok)
	assert.Equal(t, "Popout", z.Name)
	assert.Equal(t, []any{"a", 1.0}, second.Exports["tags"])

	assert.Nil(t, snap.Modules[2].Exports)
}

func TestParseSnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"invalid json", `{"modules": [`},
		{"modules not array", `{"modules": {}}`},
		{"missing id", `{"modules": [{"source": "x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestWriteSnapshotRoundTrip(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleSnapshot))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, snap))

	again, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestReplay(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleSnapshot))
	require.NoError(t, err)

	g := New()
	var order []string
	g.Subscribe(func(m *Module) { order = append(order, m.ID) })

	require.NoError(t, Replay(g, snap))
	assert.Equal(t, []string{"48211", "popout", "bare"}, order)

	err = Replay(g, snap)
	assert.ErrorIs(t, err, ErrDuplicateModule)
}
