package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/openflow/types"
)

// maxBodyBytes 请求体上限（1 MB）
const maxBodyBytes = 1 << 20

// ErrorBody 是所有错误响应的形状
type ErrorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// WriteJSON 写入 JSON 响应。头部写出后编码失败无法再改状态码，只能忽略。
func WriteJSON(w http.ResponseWriter, status int, data any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError 写入错误响应。err.HTTPStatus 非零时优先使用；5xx 记 Error，其余记 Debug。
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}
	if logger != nil {
		logAPIError(logger, err, status)
	}
	WriteJSON(w, status, ErrorBody{Detail: err.Message, Code: string(err.Code)})
}

func logAPIError(logger *zap.Logger, err *types.Error, status int) {
	fields := make([]zap.Field, 0, 4)
	fields = append(fields,
		zap.String("code", string(err.Code)),
		zap.String("message", err.Message),
		zap.Int("status", status))
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}
	if status >= http.StatusInternalServerError {
		logger.Error("API error", fields...)
		return
	}
	logger.Debug("API error", fields...)
}

// WriteErrorMessage 以给定状态码写入错误
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// writeFailure 编码错误原样写出；其它错误只以 500 暴露通用文本
func writeFailure(w http.ResponseWriter, err error, logger *zap.Logger) {
	if e, ok := types.AsError(err); ok {
		WriteError(w, e, logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, "Internal server error").WithCause(err), logger)
}

// statusByCode 未列出的错误码按 500 处理
var statusByCode = map[types.ErrorCode]int{
	types.ErrInvalidRequest:       http.StatusBadRequest,
	types.ErrExecutionFailed:      http.StatusBadRequest,
	types.ErrUnknownNodeReference: http.StatusBadRequest,
	types.ErrCyclicGraph:          http.StatusBadRequest,
	types.ErrHandlerNotFound:      http.StatusBadRequest,
	types.ErrInvalidNodeParams:    http.StatusBadRequest,
	types.ErrInvalidAgentConfig:   http.StatusBadRequest,
	types.ErrMissingInputField:    http.StatusBadRequest,

	types.ErrUnauthorized:      http.StatusUnauthorized,
	types.ErrWorkflowNotFound:  http.StatusNotFound,
	types.ErrExecutionNotFound: http.StatusNotFound,
	types.ErrModelNotFound:     http.StatusNotFound,
	types.ErrConflict:          http.StatusConflict,
	types.ErrRateLimited:       http.StatusTooManyRequests,

	types.ErrUpstreamTimeout:   http.StatusGatewayTimeout,
	types.ErrUpstreamError:     http.StatusBadGateway,
	types.ErrToolLoopLimit:     http.StatusBadGateway,
	types.ErrMissingCapability: http.StatusServiceUnavailable,
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DecodeJSONBody 把请求体解码进 dst，未知字段忽略，只接受单个 JSON 值。
// 失败时已写出 400。allowEmpty 为 true 时空请求体保持 dst 不变。
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool, logger *zap.Logger) error {
	reject := func(msg string, cause error) error {
		apiErr := types.NewError(types.ErrInvalidRequest, msg)
		if cause != nil {
			apiErr = apiErr.WithCause(cause)
		}
		WriteError(w, apiErr, logger)
		return apiErr
	}

	if r.Body == nil || r.Body == http.NoBody {
		if allowEmpty {
			return nil
		}
		return reject("request body is empty", nil)
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := dec.Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		return reject("request body is empty", nil)
	case errors.As(err, &tooLarge):
		return reject("request body exceeds 1 MB", err)
	default:
		return reject("invalid JSON body: "+err.Error(), err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return reject("request body must contain a single JSON value", err)
	}
	return nil
}

// ResponseWriter 记录写出的状态码，供日志、指标与追踪使用
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter 状态码默认为 200
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader 只有第一次调用生效
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.Written {
		return
	}
	rw.StatusCode = code
	rw.Written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap 让 http.ResponseController 访问底层连接
func (rw *ResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
