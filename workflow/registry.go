package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/BaSui01/openflow/types"
)

// Handler executes one node: it receives the node's params and its resolved
// input payload and returns the node's output payload.
type Handler interface {
	Handle(ctx context.Context, params types.Object, input types.Object) (types.Object, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params types.Object, input types.Object) (types.Object, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, params types.Object, input types.Object) (types.Object, error) {
	return f(ctx, params, input)
}

// NodeSpec binds a node type name to its handler.
type NodeSpec struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Handler     Handler `json:"-"`
}

// NodeRegistry maps node type names to specs. It is safe for concurrent use.
type NodeRegistry struct {
	mu    sync.RWMutex
	specs map[string]NodeSpec
}

// NewNodeRegistry creates an empty registry.
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{specs: make(map[string]NodeSpec)}
}

// Register binds spec under spec.Type. A later registration of the same type
// replaces the earlier one.
func (r *NodeRegistry) Register(spec NodeSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Type] = spec
}

// RegisterFunc registers a function handler.
func (r *NodeRegistry) RegisterFunc(typeName, description string, fn HandlerFunc) {
	r.Register(NodeSpec{Type: typeName, Description: description, Handler: fn})
}

// Resolve returns the spec registered for typeName.
func (r *NodeRegistry) Resolve(typeName string) (NodeSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[typeName]
	if !ok {
		return NodeSpec{}, types.Errorf(types.ErrHandlerNotFound, "no handler registered for node type %q", typeName)
	}
	return spec, nil
}

// ListTypes returns the registered type names, sorted.
func (r *NodeRegistry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.specs))
	for name := range r.specs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListSpecs returns the registered specs sorted by type name.
func (r *NodeRegistry) ListSpecs() []NodeSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeSpec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
