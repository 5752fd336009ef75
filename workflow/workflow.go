package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/openflow/types"
)

// Node is one processing step of a workflow.
type Node struct {
	ID     string       `json:"id" yaml:"id"`
	Type   string       `json:"type" yaml:"type"`
	Params types.Object `json:"params" yaml:"params,omitempty"`
}

// Workflow is a directed graph of nodes. Edges map a source node id to the
// ids of the nodes that consume its output.
type Workflow struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     EdgeMap   `json:"edges" yaml:"edges"`
	Active    bool      `json:"active" yaml:"active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at,omitempty"`
}

// UnmarshalJSON decodes a workflow and stamps CreatedAt when absent.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	type alias Workflow
	aux := (*alias)(w)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	w.normalize()
	return nil
}

// UnmarshalYAML decodes a workflow and stamps CreatedAt when absent.
func (w *Workflow) UnmarshalYAML(node *yaml.Node) error {
	type alias Workflow
	aux := (*alias)(w)
	if err := node.Decode(aux); err != nil {
		return err
	}
	w.normalize()
	return nil
}

func (w *Workflow) normalize() {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	if w.Nodes == nil {
		w.Nodes = []Node{}
	}
	for i := range w.Nodes {
		if w.Nodes[i].Params == nil {
			w.Nodes[i].Params = types.Object{}
		}
	}
}

// Validate checks the structural fields required before a workflow is stored.
// Graph consistency (dangling edges, cycles) is checked at run time.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return types.NewError(types.ErrInvalidRequest, "workflow id is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return types.NewError(types.ErrInvalidRequest, "workflow name is required")
	}
	seen := make(map[string]bool, len(w.Nodes))
	for i, n := range w.Nodes {
		if n.ID == "" {
			return types.Errorf(types.ErrInvalidRequest, "nodes[%d]: id is required", i)
		}
		if n.Type == "" {
			return types.Errorf(types.ErrInvalidRequest, "node %q: type is required", n.ID)
		}
		if seen[n.ID] {
			return types.Errorf(types.ErrInvalidRequest, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	return nil
}

// ToJSON renders the workflow as indented JSON.
func (w *Workflow) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow: %w", err)
	}
	return data, nil
}

// ParseJSON decodes a workflow from JSON.
func ParseJSON(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow from JSON: %w", err)
	}
	return &wf, nil
}

// ParseYAML decodes a workflow from YAML.
func ParseYAML(data []byte) (*Workflow, error) {
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow from YAML: %w", err)
	}
	return &wf, nil
}

// LoadFile reads a workflow from a .json, .yaml or .yml file.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}
