// Package aigateway 提供面向业务的 AI 任务入口：配额检查、工作流调用、用量记录与结果整形
package aigateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"growth-journal-api/internal/application/quota"
	"growth-journal-api/internal/infrastructure/workflow"
	"growth-journal-api/pkg/logger"
	"growth-journal-api/pkg/metrics"
)

// Status 调用结果分类
type Status string

const (
	StatusOK            Status = "ok"
	StatusInvalidInput  Status = "invalid_input"
	StatusQuotaExceeded Status = "quota_exceeded"
	StatusServiceError  Status = "service_error"
)

// ErrInvalidInput 参数校验失败
var ErrInvalidInput = errors.New("invalid input")

// ErrWorkflowNotConfigured 任务未配置工作流 ID
var ErrWorkflowNotConfigured = errors.New("workflow id not configured")

// Outcome 带分类的调用结果，仅 StatusOK 时 Data 非空
type Outcome[T any] struct {
	Status Status
	Data   *T
	Err    error
}

// OK 是否成功
func (o Outcome[T]) OK() bool { return o.Status == StatusOK }

// WorkflowInvoker 调用外部工作流
type WorkflowInvoker interface {
	Invoke(ctx context.Context, req workflow.Request) (*workflow.Result, error)
}

// Ledger 配额与用量记录
type Ledger interface {
	CheckQuota(ctx context.Context, userID string) (int64, error)
	RecordCall(ctx context.Context, userID, apiName string, success bool) error
}

// Workflows 各任务对应的工作流 ID
type Workflows struct {
	EmotionAnalysis   string
	CareerAnalysis    string
	ContentSummary    string
	AbilityEvaluation string
	EmotionPhoto      string
	EmotionCurve      string
	CareerAction      string
	CareerAbility     string
	CollectionSummary string
}

// Gateway AI 任务门面，构造后只读，可并发使用
type Gateway struct {
	invoker   WorkflowInvoker
	ledger    Ledger
	workflows Workflows
}

// New 创建 Gateway
func New(invoker WorkflowInvoker, ledger Ledger, workflows Workflows) *Gateway {
	return &Gateway{invoker: invoker, ledger: ledger, workflows: workflows}
}

// task 一次任务调用的描述
type task[T any] struct {
	apiName    string
	workflowID string
	taskType   string
	inputs     map[string]any
	additional map[string]any
	project    func(*workflow.Result) *T
}

func invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidInput, field, reason)
}

// run 固定流程：校验 -> 配额 -> 调用 -> 记录 -> 整形。
// 配额检查通过后无论调用结果如何都恰好记录一次。
func run[T any](ctx context.Context, g *Gateway, userID string, t task[T], validateErr error) (out Outcome[T]) {
	ctx = logger.WithContext(ctx, logger.APINameKey, t.apiName)
	start := time.Now()
	defer func() {
		metrics.AICallTotal.WithLabelValues(t.apiName, string(out.Status)).Inc()
		metrics.AICallDuration.WithLabelValues(t.apiName).Observe(time.Since(start).Seconds())
	}()

	if validateErr == nil && userID == "" {
		validateErr = invalid("user_id", "is required")
	}
	if validateErr != nil {
		return Outcome[T]{Status: StatusInvalidInput, Err: validateErr}
	}
	if t.workflowID == "" {
		err := fmt.Errorf("%w: %s", ErrWorkflowNotConfigured, t.apiName)
		logger.Error(ctx, "AI task misconfigured", err)
		return Outcome[T]{Status: StatusServiceError, Err: err}
	}

	if _, err := g.ledger.CheckQuota(ctx, userID); err != nil {
		var exceeded quota.QuotaExceededError
		if errors.As(err, &exceeded) {
			metrics.QuotaRejectedTotal.WithLabelValues(t.apiName).Inc()
			logger.Info(ctx, "AI call rejected by daily quota", "used", exceeded.Used, "limit", exceeded.Limit)
			return Outcome[T]{Status: StatusQuotaExceeded, Err: err}
		}
		logger.Error(ctx, "quota check failed", err)
		return Outcome[T]{Status: StatusServiceError, Err: err}
	}

	res, err := g.invoker.Invoke(ctx, workflow.Request{
		WorkflowID:       t.workflowID,
		TaskType:         t.taskType,
		Inputs:           t.inputs,
		AdditionalParams: t.additional,
	})

	// 调用方取消后仍需落账
	if recErr := g.ledger.RecordCall(context.WithoutCancel(ctx), userID, t.apiName, err == nil); recErr != nil {
		logger.Warn(ctx, "usage record lost", "error", recErr.Error())
	}

	if err != nil {
		logger.Error(ctx, "AI task failed", err, "workflow_id", t.workflowID)
		return Outcome[T]{Status: StatusServiceError, Err: err}
	}
	return Outcome[T]{Status: StatusOK, Data: t.project(res)}
}
