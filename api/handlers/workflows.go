package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/openflow/internal/store"
	"github.com/BaSui01/openflow/types"
	"github.com/BaSui01/openflow/workflow"
)

// WorkflowStore 工作流与执行记录存储
type WorkflowStore interface {
	CreateWorkflow(ctx context.Context, wf *workflow.Workflow) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, wf *workflow.Workflow) (*workflow.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error)
	CreateExecution(ctx context.Context, workflowID string) (*store.Execution, error)
	FinishExecution(ctx context.Context, id, status string, result types.Object, errMsg string) error
	GetExecution(ctx context.Context, id string) (*store.Execution, error)
	ListExecutions(ctx context.Context, workflowID string) ([]*store.Execution, error)
}

// WorkflowRunner 执行工作流，由 *workflow.Engine 实现
type WorkflowRunner interface {
	Run(ctx context.Context, wf *workflow.Workflow, input types.Object) (types.Object, error)
}

// RunRequest POST /workflows/{id}/run 的请求体
type RunRequest struct {
	InputData types.Object `json:"input_data"`
}

// =============================================================================
// 🗂️ 工作流 Handler
// =============================================================================

// WorkflowHandler 工作流 CRUD 与执行
type WorkflowHandler struct {
	store  WorkflowStore
	runner WorkflowRunner
	logger *zap.Logger
}

// NewWorkflowHandler 创建工作流处理器
func NewWorkflowHandler(s WorkflowStore, runner WorkflowRunner, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{
		store:  s,
		runner: runner,
		logger: logger.With(zap.String("component", "workflow_handler")),
	}
}

func (h *WorkflowHandler) decodeWorkflow(w http.ResponseWriter, r *http.Request) (*workflow.Workflow, bool) {
	var wf workflow.Workflow
	if err := DecodeJSONBody(w, r, &wf, false, h.logger); err != nil {
		return nil, false
	}
	return &wf, true
}

func (h *WorkflowHandler) validate(w http.ResponseWriter, wf *workflow.Workflow) bool {
	if err := wf.Validate(); err != nil {
		writeFailure(w, err, h.logger)
		return false
	}
	return true
}

// HandleCreate 处理 POST /workflows，id 已存在时返回 409
func (h *WorkflowHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.decodeWorkflow(w, r)
	if !ok || !h.validate(w, wf) {
		return
	}

	created, err := h.store.CreateWorkflow(r.Context(), wf)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	h.logger.Info("workflow created", zap.String("workflow_id", created.ID))
	WriteJSON(w, http.StatusOK, created)
}

// HandleCreateWithGeneratedID 处理 POST /workflows/new，忽略请求中的 id
func (h *WorkflowHandler) HandleCreateWithGeneratedID(w http.ResponseWriter, r *http.Request) {
	wf, ok := h.decodeWorkflow(w, r)
	if !ok {
		return
	}
	wf.ID = uuid.NewString()
	if !h.validate(w, wf) {
		return
	}

	created, err := h.store.CreateWorkflow(r.Context(), wf)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	h.logger.Info("workflow created", zap.String("workflow_id", created.ID))
	WriteJSON(w, http.StatusOK, created)
}

// HandleList 处理 GET /workflows，按创建时间倒序
func (h *WorkflowHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListWorkflows(r.Context())
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// HandleGet 处理 GET /workflows/{id}
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	wf, err := h.store.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, wf)
}

// HandleUpdate 处理 PUT /workflows/{id}
func (h *WorkflowHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wf, ok := h.decodeWorkflow(w, r)
	if !ok {
		return
	}
	if wf.ID != id {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "Workflow id mismatch", h.logger)
		return
	}
	if !h.validate(w, wf) {
		return
	}

	updated, err := h.store.UpdateWorkflow(r.Context(), id, wf)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// HandleRun 处理 POST /workflows/{id}/run。
// 先创建执行记录，执行失败时记录错误并返回 400。
func (h *WorkflowHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	wf, err := h.store.GetWorkflow(ctx, id)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}

	req := RunRequest{InputData: types.Object{}}
	if err := DecodeJSONBody(w, r, &req, true, h.logger); err != nil {
		return
	}
	if req.InputData == nil {
		req.InputData = types.Object{}
	}

	exec, err := h.store.CreateExecution(ctx, id)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	logger := h.logger.With(zap.String("workflow_id", id), zap.String("execution_id", exec.ID))

	runCtx := types.WithExecutionID(types.WithWorkflowID(ctx, id), exec.ID)
	result, runErr := h.runner.Run(runCtx, wf, req.InputData)
	if runErr != nil {
		msg := types.Describe(runErr)
		if err := h.store.FinishExecution(ctx, exec.ID, store.StatusFailed, nil, msg); err != nil {
			logger.Error("failed to record execution failure", zap.Error(err))
		}
		logger.Info("workflow execution failed", zap.String("error", msg))
		WriteError(w, types.NewError(types.ErrExecutionFailed, "Execution failed: "+msg).
			WithHTTPStatus(http.StatusBadRequest).
			WithCause(runErr), h.logger)
		return
	}

	if err := h.store.FinishExecution(ctx, exec.ID, store.StatusSuccess, result, ""); err != nil {
		writeFailure(w, err, logger)
		return
	}

	updated, err := h.store.GetExecution(ctx, exec.ID)
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "Execution record missing", logger)
		return
	}
	logger.Info("workflow execution succeeded")
	WriteJSON(w, http.StatusOK, updated)
}

// HandleListExecutions 处理 GET /workflows/{id}/executions
func (h *WorkflowHandler) HandleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.GetWorkflow(r.Context(), id); err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	list, err := h.store.ListExecutions(r.Context(), id)
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// HandleGetExecution 处理 GET /executions/{id}
func (h *WorkflowHandler) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.store.GetExecution(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, exec)
}
