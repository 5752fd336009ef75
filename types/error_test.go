package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, "[UPSTREAM_ERROR] upstream failed: root", err.Error())
}

func TestGetErrorCode_Wrapped(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrCyclicGraph, "cycle detected among %d nodes", 2)
	wrapped := fmt.Errorf("node n1 failed: %w", inner)

	assert.Equal(t, ErrCyclicGraph, GetErrorCode(wrapped))
	assert.True(t, IsErrorCode(wrapped, ErrCyclicGraph))
	assert.False(t, IsErrorCode(wrapped, ErrHandlerNotFound))
	assert.Equal(t, "[CYCLIC_GRAPH] cycle detected among 2 nodes", inner.Error())
}

func TestGetErrorCode_Plain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("boom")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(nil))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "plain", Describe(errors.New("plain")))
	assert.Equal(t, "edge source \"x\" is not a node",
		Describe(Errorf(ErrUnknownNodeReference, "edge source %q is not a node", "x")))
	assert.Equal(t, "upstream failed: boom",
		Describe(NewError(ErrUpstreamError, "upstream failed").WithCause(errors.New("boom"))))

	wrapped := fmt.Errorf("node n1: %w", NewError(ErrMissingInputField, "missing"))
	assert.Equal(t, "node n1: missing", Describe(wrapped))
}
