package workflow

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/openflow/types"
)

const sampleJSON = `{
  "id": "wf-1",
  "name": "demo",
  "nodes": [
    {"id": "trigger", "type": "manual_trigger"},
    {"id": "set", "type": "set_fields", "params": {"fields": {"n": 3}}}
  ],
  "edges": {"trigger": ["set"]}
}`

func TestParseJSON_DefaultsCreatedAtAndParams(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	wf, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "wf-1", wf.ID)
	assert.False(t, wf.Active)
	assert.True(t, wf.CreatedAt.After(before))
	require.Len(t, wf.Nodes, 2)
	assert.NotNil(t, wf.Nodes[0].Params)
	assert.Equal(t, types.Object{"n": types.Int(3)}, wf.Nodes[1].Params["fields"])
	assert.Equal(t, []string{"set"}, wf.Edges.Targets("trigger"))
}

func TestParseJSON_KeepsCreatedAt(t *testing.T) {
	t.Parallel()

	wf, err := ParseJSON([]byte(`{"id":"x","name":"x","nodes":[],"created_at":"2024-05-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), wf.CreatedAt.UTC())
}

func TestLoadFile_YAML(t *testing.T) {
	t.Parallel()

	src := `id: wf-yaml
name: yaml demo
active: true
nodes:
  - id: trigger
    type: manual_trigger
  - id: tpl
    type: template
    params:
      template: "payload={{json}}"
edges:
  trigger: [tpl]
`
	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	wf, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, wf.Active)
	assert.Equal(t, types.String("payload={{json}}"), wf.Nodes[1].Params["template"])
	assert.Equal(t, []string{"trigger"}, wf.Edges.Sources())
	assert.False(t, wf.CreatedAt.IsZero())
}

func TestWorkflow_ToJSONRoundTrip(t *testing.T) {
	t.Parallel()

	wf, err := ParseJSON([]byte(sampleJSON))
	require.NoError(t, err)
	data, err := wf.ToJSON()
	require.NoError(t, err)

	again, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, wf.Edges.Entries(), again.Edges.Entries())
	assert.Equal(t, wf.Nodes, again.Nodes)
	assert.True(t, wf.CreatedAt.Equal(again.CreatedAt))
}

func TestWorkflow_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wf   Workflow
		ok   bool
	}{
		{"valid", Workflow{ID: "a", Name: "a", Nodes: []Node{{ID: "n", Type: "t"}}}, true},
		{"missing id", Workflow{Name: "a"}, false},
		{"missing name", Workflow{ID: "a"}, false},
		{"node without type", Workflow{ID: "a", Name: "a", Nodes: []Node{{ID: "n"}}}, false},
		{"duplicate node", Workflow{ID: "a", Name: "a", Nodes: []Node{{ID: "n", Type: "t"}, {ID: "n", Type: "t"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wf.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
		})
	}
}
