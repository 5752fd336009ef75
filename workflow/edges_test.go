package workflow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEdgeMap_JSONKeepsOrder(t *testing.T) {
	t.Parallel()

	var m EdgeMap
	require.NoError(t, json.Unmarshal([]byte(`{"z":["a"],"b":["c","a"],"a":[]}`), &m))

	assert.Equal(t, []string{"z", "b", "a"}, m.Sources())
	assert.Equal(t, []string{"c", "a"}, m.Targets("b"))
	assert.Empty(t, m.Targets("a"))
	assert.Nil(t, m.Targets("missing"))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":["a"],"b":["c","a"],"a":[]}`, string(data))
}

func TestEdgeMap_JSONNullAndErrors(t *testing.T) {
	t.Parallel()

	var m EdgeMap
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, 0, m.Len())

	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &m))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"b"}`), &m))
}

func TestEdgeMap_DuplicateKeyReplacesInPlace(t *testing.T) {
	t.Parallel()

	var m EdgeMap
	require.NoError(t, json.Unmarshal([]byte(`{"a":["b"],"c":["d"],"a":["e"]}`), &m))
	assert.Equal(t, []string{"a", "c"}, m.Sources())
	assert.Equal(t, []string{"e"}, m.Targets("a"))
}

func TestEdgeMap_YAMLKeepsOrder(t *testing.T) {
	t.Parallel()

	src := "edges:\n  trigger: [set, tpl]\n  set: [tpl]\n  \"10\": []\n"
	var holder struct {
		Edges EdgeMap `yaml:"edges"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(src), &holder))
	assert.Equal(t, []string{"trigger", "set", "10"}, holder.Edges.Sources())

	out, err := yaml.Marshal(holder)
	require.NoError(t, err)

	var again struct {
		Edges EdgeMap `yaml:"edges"`
	}
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, holder.Edges.Entries(), again.Edges.Entries())
}

func TestEdgeMap_Upstream(t *testing.T) {
	t.Parallel()

	m := NewEdgeMap(
		Edge("b", "d"),
		Edge("a", "d", "d"),
		Edge("c", "e"),
	)
	up := m.Upstream()
	assert.Equal(t, []string{"b", "a"}, up["d"])
	assert.Equal(t, []string{"c"}, up["e"])
	assert.Nil(t, up["a"])
}

func TestEdgeMap_EntriesIsCopy(t *testing.T) {
	t.Parallel()

	m := NewEdgeMap(Edge("a", "b"))
	entries := m.Entries()
	entries[0].Targets[0] = "mutated"
	assert.Equal(t, []string{"b"}, m.Targets("a"))
}
