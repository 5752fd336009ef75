package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/BaSui01/openflow/types"
)

// MapHTTPError converts an upstream error status into a coded error.
func MapHTTPError(status int, msg string, provider string) *types.Error {
	switch {
	case status == http.StatusNotFound:
		return types.Errorf(types.ErrModelNotFound, "%s: %s", provider, msg).
			WithHTTPStatus(http.StatusBadGateway)
	case status == http.StatusTooManyRequests:
		return types.Errorf(types.ErrRateLimited, "%s: %s", provider, msg).
			WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.Errorf(types.ErrUpstreamTimeout, "%s: %s", provider, msg).
			WithHTTPStatus(http.StatusGatewayTimeout).WithRetryable(true)
	case status >= 500:
		return types.Errorf(types.ErrUpstreamError, "%s: %s", provider, msg).
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true)
	default:
		return types.Errorf(types.ErrUpstreamError, "%s returned status %d: %s", provider, status, msg).
			WithHTTPStatus(http.StatusBadGateway)
	}
}

// MapTransportError converts a failed round trip into a coded error.
func MapTransportError(err error, provider string) *types.Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.Errorf(types.ErrUpstreamTimeout, "%s request timed out", provider).
			WithCause(err).WithHTTPStatus(http.StatusGatewayTimeout).WithRetryable(true)
	}
	return types.Errorf(types.ErrUpstreamError, "%s request failed", provider).
		WithCause(err).WithHTTPStatus(http.StatusBadGateway).WithRetryable(true)
}

// ReadErrorMessage extracts a readable message from an error body.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && len(errResp.Error) > 0 {
		var s string
		if json.Unmarshal(errResp.Error, &s) == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if json.Unmarshal(errResp.Error, &obj) == nil && obj.Message != "" {
			if obj.Type != "" {
				return fmt.Sprintf("%s (type: %s)", obj.Message, obj.Type)
			}
			return obj.Message
		}
	}
	return string(data)
}
