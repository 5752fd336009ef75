package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/types"
)

// ============================================================
// Test helpers
// ============================================================

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, id)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// recordingRegistry registers "emit" (outputs params["emit"]) and "pass"
// (returns its input), both logging the node id they ran for.
func recordingRegistry(log *callLog) *NodeRegistry {
	r := NewNodeRegistry()
	r.RegisterFunc("emit", "emits params.emit", func(ctx context.Context, params, input types.Object) (types.Object, error) {
		id, _ := types.NodeID(ctx)
		log.add(id)
		out, _ := params["emit"].(types.Object)
		return out.Clone(), nil
	})
	r.RegisterFunc("pass", "returns input", func(ctx context.Context, params, input types.Object) (types.Object, error) {
		id, _ := types.NodeID(ctx)
		log.add(id)
		return input, nil
	})
	return r
}

type fakeRecorder struct {
	mu    sync.Mutex
	runs  []string
	nodes []string
}

func (f *fakeRecorder) ObserveRun(_ string, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, status)
}

func (f *fakeRecorder) ObserveNode(nodeType, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, nodeType+":"+status)
}

func ids(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

// ============================================================
// TopologicalOrder
// ============================================================

func TestTopologicalOrder_DeclarationOrderSeedsQueue(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		Nodes: []Node{{ID: "c", Type: "pass"}, {ID: "a", Type: "pass"}, {ID: "b", Type: "pass"}, {ID: "d", Type: "pass"}},
		Edges: NewEdgeMap(Edge("a", "d"), Edge("c", "d")),
	}
	order, err := TopologicalOrder(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids(order))
}

func TestTopologicalOrder_TargetsReleasedInOrder(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		Nodes: []Node{{ID: "root"}, {ID: "x"}, {ID: "y"}, {ID: "z"}},
		Edges: NewEdgeMap(Edge("root", "z", "x", "y")),
	}
	order, err := TopologicalOrder(wf)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "z", "x", "y"}, ids(order))
}

func TestTopologicalOrder_UnknownReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edges EdgeMap
		want  string
	}{
		{"unknown source", NewEdgeMap(Edge("ghost", "a")), `"ghost"`},
		{"unknown target", NewEdgeMap(Edge("a", "b", "phantom")), `"phantom"`},
		{"first dangling reported", NewEdgeMap(Edge("a", "x1"), Edge("y1", "a")), `"x1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := &Workflow{Nodes: []Node{{ID: "a"}, {ID: "b"}}, Edges: tt.edges}
			_, err := TopologicalOrder(wf)
			require.Error(t, err)
			assert.Equal(t, types.ErrUnknownNodeReference, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	t.Parallel()

	wf := &Workflow{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: NewEdgeMap(Edge("a", "b"), Edge("b", "c"), Edge("c", "b")),
	}
	_, err := TopologicalOrder(wf)
	require.Error(t, err)
	assert.Equal(t, types.ErrCyclicGraph, types.GetErrorCode(err))
}

func TestTopologicalOrder_SelfLoop(t *testing.T) {
	t.Parallel()

	wf := &Workflow{Nodes: []Node{{ID: "a"}}, Edges: NewEdgeMap(Edge("a", "a"))}
	_, err := TopologicalOrder(wf)
	assert.Equal(t, types.ErrCyclicGraph, types.GetErrorCode(err))
}

// ============================================================
// Engine.Run
// ============================================================

func TestEngine_MergeLaterUpstreamWins(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	engine := NewEngine(recordingRegistry(log), WithLogger(zap.NewNop()))
	wf := &Workflow{
		ID: "merge",
		Nodes: []Node{
			{ID: "A", Type: "emit", Params: types.Object{"emit": types.Object{"x": types.Int(1), "y": types.Int(2)}}},
			{ID: "B", Type: "emit", Params: types.Object{"emit": types.Object{"y": types.Int(3), "z": types.Int(4)}}},
			{ID: "C", Type: "pass"},
		},
		Edges: NewEdgeMap(Edge("A", "C"), Edge("B", "C")),
	}

	out, err := engine.Run(context.Background(), wf, types.Object{"ignored": types.Bool(true)})
	require.NoError(t, err)
	assert.Equal(t, types.Object{"x": types.Int(1), "y": types.Int(3), "z": types.Int(4)}, out)
	assert.Equal(t, []string{"A", "B", "C"}, log.list())
}

func TestEngine_MergeFollowsEdgeMapOrder(t *testing.T) {
	t.Parallel()

	engine := NewEngine(recordingRegistry(&callLog{}))
	wf := &Workflow{
		Nodes: []Node{
			{ID: "A", Type: "emit", Params: types.Object{"emit": types.Object{"k": types.String("A")}}},
			{ID: "B", Type: "emit", Params: types.Object{"emit": types.Object{"k": types.String("B")}}},
			{ID: "C", Type: "pass"},
		},
		Edges: NewEdgeMap(Edge("B", "C"), Edge("A", "C")),
	}

	out, err := engine.Run(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, types.String("A"), out["k"])
}

func TestEngine_EmptyWorkflowReturnsInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(NewNodeRegistry())
	input := types.Object{"message": types.String("hi")}

	out, err := engine.Run(context.Background(), &Workflow{ID: "empty"}, input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestEngine_PassThroughIdentity(t *testing.T) {
	t.Parallel()

	engine := NewEngine(recordingRegistry(&callLog{}))
	input := types.Object{"a": types.Int(1), "nested": types.Object{"b": types.List{types.String("c")}}}
	wf := &Workflow{Nodes: []Node{{ID: "only", Type: "pass"}}}

	out, err := engine.Run(context.Background(), wf, input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestEngine_RootNodesReceiveRunInput(t *testing.T) {
	t.Parallel()

	engine := NewEngine(recordingRegistry(&callLog{}))
	wf := &Workflow{
		Nodes: []Node{
			{ID: "root", Type: "pass"},
			{ID: "side", Type: "emit", Params: types.Object{"emit": types.Object{"side": types.Bool(true)}}},
			{ID: "tail", Type: "pass"},
		},
		Edges: NewEdgeMap(Edge("side", "tail")),
	}
	input := types.Object{"seed": types.Int(7)}

	out, err := engine.Run(context.Background(), wf, input)
	require.NoError(t, err)
	// tail is last in topological order and only sees side's output
	assert.Equal(t, types.Object{"side": types.Bool(true)}, out)
}

func TestEngine_CycleRunsNoHandlers(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	rec := &fakeRecorder{}
	engine := NewEngine(recordingRegistry(log), WithRecorder(rec))
	wf := &Workflow{
		Nodes: []Node{{ID: "a", Type: "pass"}, {ID: "b", Type: "pass"}},
		Edges: NewEdgeMap(Edge("a", "b"), Edge("b", "a")),
	}

	out, err := engine.Run(context.Background(), wf, types.Object{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Equal(t, types.ErrCyclicGraph, types.GetErrorCode(err))
	assert.Empty(t, log.list())
	assert.Equal(t, []string{"failed"}, rec.runs)
	assert.Empty(t, rec.nodes)
}

func TestEngine_UnknownReferenceRunsNoHandlers(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	engine := NewEngine(recordingRegistry(log))
	wf := &Workflow{
		Nodes: []Node{{ID: "a", Type: "pass"}},
		Edges: NewEdgeMap(Edge("a", "missing")),
	}

	_, err := engine.Run(context.Background(), wf, types.Object{})
	assert.Equal(t, types.ErrUnknownNodeReference, types.GetErrorCode(err))
	assert.Empty(t, log.list())
}

func TestEngine_HandlerNotFoundAtDispatch(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	engine := NewEngine(recordingRegistry(log))
	wf := &Workflow{
		Nodes: []Node{{ID: "first", Type: "pass"}, {ID: "second", Type: "unregistered"}},
		Edges: NewEdgeMap(Edge("first", "second")),
	}

	_, err := engine.Run(context.Background(), wf, types.Object{})
	require.Error(t, err)
	assert.Equal(t, types.ErrHandlerNotFound, types.GetErrorCode(err))
	assert.NotContains(t, err.Error(), "second")
	assert.Equal(t, []string{"first"}, log.list())
}

func TestEngine_HandlerErrorAbortsRun(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	log := &callLog{}
	r := recordingRegistry(log)
	r.RegisterFunc("fail", "always fails", func(ctx context.Context, params, input types.Object) (types.Object, error) {
		log.add("fail")
		return nil, boom
	})
	rec := &fakeRecorder{}
	engine := NewEngine(r, WithRecorder(rec))
	wf := &Workflow{
		Nodes: []Node{{ID: "a", Type: "pass"}, {ID: "b", Type: "fail"}, {ID: "c", Type: "pass"}},
		Edges: NewEdgeMap(Edge("a", "b"), Edge("b", "c")),
	}

	out, err := engine.Run(context.Background(), wf, types.Object{})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Same(t, boom, err)
	assert.Equal(t, "boom", err.Error())
	assert.Equal(t, []string{"a", "fail"}, log.list())
	assert.Equal(t, []string{"pass:success", "fail:failed"}, rec.nodes)
}

func TestEngine_CodedHandlerErrorStaysInspectable(t *testing.T) {
	t.Parallel()

	coded := types.NewError(types.ErrMissingInputField, "missing input field 'message'")
	r := NewNodeRegistry()
	r.RegisterFunc("agent", "", func(ctx context.Context, params, input types.Object) (types.Object, error) {
		return nil, coded
	})
	engine := NewEngine(r)

	_, err := engine.Run(context.Background(), &Workflow{Nodes: []Node{{ID: "n", Type: "agent"}}}, nil)
	assert.Equal(t, types.ErrMissingInputField, types.GetErrorCode(err))
	assert.Same(t, coded, err)
	assert.Equal(t, "[MISSING_INPUT_FIELD] missing input field 'message'", err.Error())
}

func TestEngine_NilWorkflow(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(NewNodeRegistry()).Run(context.Background(), nil, nil)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestEngine_ConcurrentRuns(t *testing.T) {
	t.Parallel()

	engine := NewEngine(recordingRegistry(&callLog{}))
	wf := &Workflow{
		Nodes: []Node{
			{ID: "A", Type: "emit", Params: types.Object{"emit": types.Object{"x": types.Int(1)}}},
			{ID: "B", Type: "pass"},
		},
		Edges: NewEdgeMap(Edge("A", "B")),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := engine.Run(context.Background(), wf, types.Object{})
			assert.NoError(t, err)
			assert.Equal(t, types.Object{"x": types.Int(1)}, out)
		}()
	}
	wg.Wait()
}
