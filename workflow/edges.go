package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Adjacency is one entry of an EdgeMap: a source node and its ordered targets.
type Adjacency struct {
	Source  string
	Targets []string
}

// Edge builds an Adjacency.
func Edge(source string, targets ...string) Adjacency {
	return Adjacency{Source: source, Targets: targets}
}

// EdgeMap maps a source node id to its ordered target ids. Sources keep
// declaration order, including across JSON and YAML round trips, because
// topological order and merge order depend on it. The zero value is empty
// and ready to use.
type EdgeMap struct {
	list []Adjacency
}

// NewEdgeMap builds an EdgeMap from adjacency entries in order.
func NewEdgeMap(entries ...Adjacency) EdgeMap {
	var m EdgeMap
	for _, e := range entries {
		m.Set(e.Source, e.Targets...)
	}
	return m
}

// Set replaces the targets of source. A new source is appended; an existing
// one keeps its position.
func (m *EdgeMap) Set(source string, targets ...string) {
	cp := append([]string(nil), targets...)
	for i := range m.list {
		if m.list[i].Source == source {
			m.list[i].Targets = cp
			return
		}
	}
	m.list = append(m.list, Adjacency{Source: source, Targets: cp})
}

// Targets returns the targets of source, or nil.
func (m EdgeMap) Targets(source string) []string {
	for _, e := range m.list {
		if e.Source == source {
			return e.Targets
		}
	}
	return nil
}

// Sources returns the source ids in declaration order.
func (m EdgeMap) Sources() []string {
	out := make([]string, 0, len(m.list))
	for _, e := range m.list {
		out = append(out, e.Source)
	}
	return out
}

// Entries returns a copy of the adjacency entries in declaration order.
func (m EdgeMap) Entries() []Adjacency {
	out := make([]Adjacency, len(m.list))
	for i, e := range m.list {
		out[i] = Adjacency{Source: e.Source, Targets: append([]string(nil), e.Targets...)}
	}
	return out
}

// Len returns the number of sources.
func (m EdgeMap) Len() int { return len(m.list) }

// Upstream returns, for every target, the sources whose target list contains
// it. Sources appear once each, in edge-map order.
func (m EdgeMap) Upstream() map[string][]string {
	up := make(map[string][]string)
	for _, e := range m.list {
		seen := make(map[string]bool, len(e.Targets))
		for _, t := range e.Targets {
			if seen[t] {
				continue
			}
			seen[t] = true
			up[t] = append(up[t], e.Source)
		}
	}
	return up
}

// MarshalJSON writes the map as a JSON object in declaration order.
func (m EdgeMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.list {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Source)
		if err != nil {
			return nil, err
		}
		targets := e.Targets
		if targets == nil {
			targets = []string{}
		}
		val, err := json.Marshal(targets)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping key order. A repeated key
// replaces the earlier targets in place.
func (m *EdgeMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read edges: %w", err)
	}
	if tok == nil {
		*m = EdgeMap{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("edges must be a JSON object")
	}

	var out EdgeMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read edge source: %w", err)
		}
		source, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("edge source must be a string")
		}
		var targets []string
		if err := dec.Decode(&targets); err != nil {
			return fmt.Errorf("edges[%q]: %w", source, err)
		}
		out.Set(source, targets...)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to read edges: %w", err)
	}
	*m = out
	return nil
}

// MarshalYAML writes the map as a YAML mapping in declaration order.
func (m EdgeMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range m.list {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Source}
		val := &yaml.Node{}
		targets := e.Targets
		if targets == nil {
			targets = []string{}
		}
		if err := val.Encode(targets); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// UnmarshalYAML reads a YAML mapping keeping key order.
func (m *EdgeMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = EdgeMap{}
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("edges must be a mapping (line %d)", node.Line)
	}

	var out EdgeMap
	for i := 0; i+1 < len(node.Content); i += 2 {
		var source string
		if err := node.Content[i].Decode(&source); err != nil {
			return fmt.Errorf("edge source (line %d): %w", node.Content[i].Line, err)
		}
		var targets []string
		if err := node.Content[i+1].Decode(&targets); err != nil {
			return fmt.Errorf("edges[%q]: %w", source, err)
		}
		out.Set(source, targets...)
	}
	*m = out
	return nil
}
