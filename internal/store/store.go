package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/openflow/internal/database"
	"github.com/BaSui01/openflow/types"
	"github.com/BaSui01/openflow/workflow"
)

// Execution statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Execution is the record of one workflow run.
type Execution struct {
	ID         string       `json:"id"`
	WorkflowID string       `json:"workflow_id"`
	Status     string       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at"`
	Result     types.Object `json:"result"`
	Error      *string      `json:"error"`
}

type workflowRow struct {
	ID         string    `gorm:"primaryKey;size:191"`
	Name       string    `gorm:"not null"`
	Definition string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (workflowRow) TableName() string { return "workflows" }

type executionRow struct {
	ID         string    `gorm:"primaryKey;size:36"`
	WorkflowID string    `gorm:"size:191;not null;index"`
	Status     string    `gorm:"size:16;not null"`
	StartedAt  time.Time `gorm:"not null"`
	FinishedAt *time.Time
	Result     *string `gorm:"type:text"`
	Error      *string `gorm:"type:text"`
}

func (executionRow) TableName() string { return "executions" }

// Store persists workflows and execution records.
type Store struct {
	pool   *database.PoolManager
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for execution timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New migrates the schema and returns a Store.
func New(pool *database.PoolManager, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		pool:   pool,
		db:     pool.DB(),
		now:    time.Now,
		logger: logger.With(zap.String("component", "store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.db.AutoMigrate(&workflowRow{}, &executionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

func workflowNotFound() error {
	return types.NewError(types.ErrWorkflowNotFound, "Workflow not found")
}

// CreateWorkflow inserts wf. An existing id fails with CONFLICT.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Workflow) (*workflow.Workflow, error) {
	row, err := toWorkflowRow(wf)
	if err != nil {
		return nil, err
	}

	err = s.pool.RunInTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&workflowRow{}).Where("id = ?", wf.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return types.NewError(types.ErrConflict, "Workflow id already exists")
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("workflow created", zap.String("workflow_id", wf.ID))
	return wf, nil
}

// UpdateWorkflow replaces the stored definition of id. CreatedAt of the row
// is kept so list order does not change.
func (s *Store) UpdateWorkflow(ctx context.Context, id string, wf *workflow.Workflow) (*workflow.Workflow, error) {
	row, err := toWorkflowRow(wf)
	if err != nil {
		return nil, err
	}

	err = s.pool.RunInTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&workflowRow{}).Where("id = ?", id).Updates(map[string]any{
			"name":       row.Name,
			"definition": row.Definition,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return workflowNotFound()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// GetWorkflow loads one workflow.
func (s *Store) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	var row workflowRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflowNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}
	return workflow.ParseJSON([]byte(row.Definition))
}

// ListWorkflows returns all workflows, newest first.
func (s *Store) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	var rows []workflowRow
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	out := make([]*workflow.Workflow, 0, len(rows))
	for _, row := range rows {
		wf, err := workflow.ParseJSON([]byte(row.Definition))
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", row.ID, err)
		}
		out = append(out, wf)
	}
	return out, nil
}

// CreateExecution records a running execution of workflowID.
func (s *Store) CreateExecution(ctx context.Context, workflowID string) (*Execution, error) {
	row := executionRow{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     StatusRunning,
		StartedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}
	return fromExecutionRow(row)
}

// FinishExecution stores the terminal status with either result or errMsg.
func (s *Store) FinishExecution(ctx context.Context, id, status string, result types.Object, errMsg string) error {
	finished := s.now().UTC()
	updates := map[string]any{
		"status":      status,
		"finished_at": finished,
		"result":      nil,
		"error":       nil,
	}
	if result != nil {
		blob, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode execution result: %w", err)
		}
		updates["result"] = string(blob)
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}

	return s.pool.RunInTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&executionRow{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.NewError(types.ErrExecutionNotFound, "Execution not found")
		}
		return nil
	})
}

// GetExecution loads one execution record.
func (s *Store) GetExecution(ctx context.Context, id string) (*Execution, error) {
	var row executionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrExecutionNotFound, "Execution not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution: %w", err)
	}
	return fromExecutionRow(row)
}

// ListExecutions returns the executions of workflowID, newest first.
func (s *Store) ListExecutions(ctx context.Context, workflowID string) ([]*Execution, error) {
	var rows []executionRow
	err := s.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		Order("started_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	out := make([]*Execution, 0, len(rows))
	for _, row := range rows {
		e, err := fromExecutionRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toWorkflowRow(wf *workflow.Workflow) (workflowRow, error) {
	blob, err := json.Marshal(wf)
	if err != nil {
		return workflowRow{}, fmt.Errorf("failed to encode workflow: %w", err)
	}
	return workflowRow{
		ID:         wf.ID,
		Name:       wf.Name,
		Definition: string(blob),
		CreatedAt:  wf.CreatedAt.UTC(),
	}, nil
}

func fromExecutionRow(row executionRow) (*Execution, error) {
	e := &Execution{
		ID:         row.ID,
		WorkflowID: row.WorkflowID,
		Status:     row.Status,
		StartedAt:  row.StartedAt.UTC(),
		Error:      row.Error,
	}
	if row.FinishedAt != nil {
		t := row.FinishedAt.UTC()
		e.FinishedAt = &t
	}
	if row.Result != nil && *row.Result != "" {
		var result types.Object
		if err := json.Unmarshal([]byte(*row.Result), &result); err != nil {
			return nil, fmt.Errorf("execution %q: invalid result: %w", row.ID, err)
		}
		e.Result = result
	}
	return e, nil
}
