package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/types"
)

// Recorder receives timing for runs and node dispatches.
type Recorder interface {
	ObserveRun(workflowID, status string, d time.Duration)
	ObserveNode(nodeType, status string, d time.Duration)
}

// Engine executes workflows against a NodeRegistry. It holds no per-run
// state, so concurrent Run calls are safe.
type Engine struct {
	registry *NodeRegistry
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With(zap.String("component", "workflow_engine"))
		}
	}
}

// WithTracer sets the tracer used for run and node spans.
func WithTracer(tracer trace.Tracer) EngineOption {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine dispatching through registry.
func NewEngine(registry *NodeRegistry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/BaSui01/openflow/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry the engine dispatches through.
func (e *Engine) Registry() *NodeRegistry { return e.registry }

// Run executes wf once with the given input payload and returns the output
// of the last node in topological order. An empty workflow returns input.
//
// A node with no upstream receives input unchanged. A node with upstream
// nodes receives the shallow merge of their outputs in edge-map order, later
// sources overwriting earlier ones on key collision.
//
// The first failing node aborts the run; no partial result is returned.
func (e *Engine) Run(ctx context.Context, wf *Workflow, input types.Object) (types.Object, error) {
	if wf == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "workflow cannot be nil")
	}
	if input == nil {
		input = types.Object{}
	}

	start := time.Now()
	ctx = types.WithWorkflowID(ctx, wf.ID)
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.Int("workflow.nodes", len(wf.Nodes)),
	))
	defer span.End()

	e.logger.Info("starting workflow run",
		zap.String("workflow_id", wf.ID),
		zap.Int("nodes", len(wf.Nodes)),
	)

	result, err := e.run(ctx, wf, input)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.observeRun(wf.ID, "failed", duration)
		e.logger.Error("workflow run failed",
			zap.String("workflow_id", wf.ID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	e.observeRun(wf.ID, "success", duration)
	e.logger.Info("workflow run completed",
		zap.String("workflow_id", wf.ID),
		zap.Duration("duration", duration),
	)
	return result, nil
}

func (e *Engine) run(ctx context.Context, wf *Workflow, input types.Object) (types.Object, error) {
	order, err := TopologicalOrder(wf)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return input, nil
	}

	upstream := wf.Edges.Upstream()
	outputs := make(map[string]types.Object, len(order))
	var last types.Object

	for _, node := range order {
		nodeInput := input
		if parents := upstream[node.ID]; len(parents) > 0 {
			nodeInput = types.Object{}
			for _, parent := range parents {
				nodeInput.Merge(outputs[parent])
			}
		}

		out, err := e.dispatch(ctx, node, nodeInput)
		if err != nil {
			return nil, err
		}
		outputs[node.ID] = out
		last = out
	}
	return last, nil
}

func (e *Engine) dispatch(ctx context.Context, node Node, input types.Object) (types.Object, error) {
	spec, err := e.registry.Resolve(node.Type)
	if err != nil {
		e.logger.Error("node type not registered",
			zap.String("node_id", node.ID),
			zap.String("node_type", node.Type),
		)
		return nil, err
	}

	ctx = types.WithNodeID(ctx, node.ID)
	ctx, span := e.tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", node.Type),
	))
	defer span.End()

	e.logger.Debug("executing node",
		zap.String("node_id", node.ID),
		zap.String("node_type", node.Type),
	)

	start := time.Now()
	out, err := spec.Handler.Handle(ctx, node.Params, input)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.observeNode(node.Type, "failed", duration)
		e.logger.Error("node execution failed",
			zap.String("node_id", node.ID),
			zap.String("node_type", node.Type),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}
	if out == nil {
		out = types.Object{}
	}

	e.observeNode(node.Type, "success", duration)
	e.logger.Debug("node execution completed",
		zap.String("node_id", node.ID),
		zap.Duration("duration", duration),
	)
	return out, nil
}

func (e *Engine) observeRun(workflowID, status string, d time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveRun(workflowID, status, d)
	}
}

func (e *Engine) observeNode(nodeType, status string, d time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveNode(nodeType, status, d)
	}
}

// TopologicalOrder returns the nodes of wf in execution order.
//
// Every edge endpoint must name a node (UNKNOWN_NODE_REFERENCE otherwise).
// Nodes with no incoming edge seed a FIFO queue in declaration order; each
// dequeued node releases its targets in target-list order. A graph that
// cannot be fully ordered contains a cycle (CYCLIC_GRAPH). When node ids
// repeat, the last definition wins and keeps the first position.
func TopologicalOrder(wf *Workflow) ([]Node, error) {
	ids := make([]string, 0, len(wf.Nodes))
	byID := make(map[string]Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if _, ok := byID[n.ID]; !ok {
			ids = append(ids, n.ID)
		}
		byID[n.ID] = n
	}

	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
	}
	for _, adj := range wf.Edges.list {
		if _, ok := byID[adj.Source]; !ok {
			return nil, types.Errorf(types.ErrUnknownNodeReference, "edge source %q is not a node", adj.Source)
		}
		for _, target := range adj.Targets {
			if _, ok := byID[target]; !ok {
				return nil, types.Errorf(types.ErrUnknownNodeReference, "edge target %q is not a node", target)
			}
		}
	}
	for _, adj := range wf.Edges.list {
		for _, target := range adj.Targets {
			inDegree[target]++
		}
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]Node, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, byID[id])
		for _, target := range wf.Edges.Targets(id) {
			inDegree[target]--
			if inDegree[target] == 0 {
				queue = append(queue, target)
			}
		}
	}

	if len(order) != len(ids) {
		return nil, types.Errorf(types.ErrCyclicGraph, "workflow graph contains a cycle (%d of %d nodes ordered)", len(order), len(ids))
	}
	return order, nil
}
