package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyTraceID     contextKey = "trace_id"
	keyWorkflowID  contextKey = "workflow_id"
	keyExecutionID contextKey = "execution_id"
	keyNodeID      contextKey = "node_id"
)

// WithTraceID adds trace ID to context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID extracts trace ID from context.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyTraceID).(string)
	return v, ok && v != ""
}

// WithWorkflowID adds the running workflow's id to context.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyWorkflowID, id)
}

// WorkflowID extracts the workflow id from context.
func WorkflowID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyWorkflowID).(string)
	return v, ok && v != ""
}

// WithExecutionID adds the execution record id to context.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyExecutionID, id)
}

// ExecutionID extracts the execution id from context.
func ExecutionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyExecutionID).(string)
	return v, ok && v != ""
}

// WithNodeID adds the node currently being dispatched to context.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyNodeID, id)
}

// NodeID extracts the node id from context.
func NodeID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyNodeID).(string)
	return v, ok && v != ""
}
