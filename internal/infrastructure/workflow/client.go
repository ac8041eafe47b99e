// Package workflow 提供外部 AI 工作流服务的签名调用客户端
package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"growth-journal-api/pkg/logger"
	"growth-journal-api/pkg/metrics"
	"growth-journal-api/pkg/tracer"
)

const (
	headerFingerprint = "X-Public-Key-Fingerprint"
	headerSignature   = "X-Signature"
	headerRequestID   = "X-Request-ID"

	defaultEndpoint = "/workflow/invoke"
	defaultTimeout  = 30 * time.Second

	// 日志中 payload 与响应体的最大长度
	logPayloadLimit = 512
	// 响应体读取上限
	maxResponseBytes = 4 << 20
)

// PayloadSigner 对请求体做规范化并签名
type PayloadSigner interface {
	SignPayload(payload map[string]any) ([]byte, string, error)
	Fingerprint() string
}

// Request 一次逻辑调用
type Request struct {
	WorkflowID string
	// TaskType 非空时写入 inputs.task_type
	TaskType string
	Inputs   map[string]any
	// AdditionalParams 非空时写入 inputs.additional_params
	AdditionalParams map[string]any
}

// Options 客户端配置
type Options struct {
	BaseURL    string
	Endpoint   string
	AppID      string
	Timeout    time.Duration // 单次尝试超时
	Retry      RetryPolicy
	HTTPClient *http.Client
}

// Client 工作流客户端，构造后只读，可并发使用
type Client struct {
	url        string
	endpoint   string
	appID      string
	timeout    time.Duration
	retry      RetryPolicy
	signer     PayloadSigner
	httpClient *http.Client
	now        func() time.Time
}

// NewClient 创建工作流客户端
func NewClient(opts Options, signer PayloadSigner) (*Client, error) {
	if signer == nil {
		return nil, errors.New("workflow: signer is required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("workflow: base url is required")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		url:        strings.TrimRight(opts.BaseURL, "/") + endpoint,
		endpoint:   endpoint,
		appID:      opts.AppID,
		timeout:    timeout,
		retry:      opts.Retry,
		signer:     signer,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Invoke 调用工作流，传输与解析错误按策略重试，业务错误立即返回。
// 返回的错误总是 *Error。
func (c *Client) Invoke(ctx context.Context, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "workflow.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.id", req.WorkflowID),
		attribute.String("workflow.task_type", req.TaskType),
	)

	attempts := 0
	var result *Result
	operation := func() error {
		attempts++
		res, err := c.attempt(ctx, req, attempts)
		if err != nil {
			var wfErr *Error
			if errors.As(err, &wfErr) && !wfErr.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn(ctx, "workflow attempt failed, retrying",
			"workflow_id", req.WorkflowID,
			"attempt", attempts,
			"wait", wait.String(),
			"error", err.Error(),
		)
	}

	err := backoff.RetryNotify(operation, c.retry.newBackOff(ctx), notify)
	if err != nil {
		wfErr := c.finalError(err, req, attempts)
		span.RecordError(wfErr)
		span.SetStatus(codes.Error, string(wfErr.Kind))
		logger.Error(ctx, "workflow invoke failed", wfErr,
			"endpoint", c.endpoint,
			"workflow_id", req.WorkflowID,
			"kind", string(wfErr.Kind),
			"attempts", attempts,
		)
		return nil, wfErr
	}

	result.Attempts = attempts
	span.SetAttributes(attribute.Int("workflow.attempts", attempts))
	return result, nil
}

// finalError 统一为 *Error；退避等待期间 ctx 被取消时 backoff 直接返回 ctx.Err()
func (c *Client) finalError(err error, req Request, attempts int) *Error {
	var wfErr *Error
	if !errors.As(err, &wfErr) {
		wfErr = &Error{Kind: KindTransport, Endpoint: c.endpoint, Err: err}
	}
	wfErr.WorkflowID = req.WorkflowID
	wfErr.Attempts = attempts
	return wfErr
}

// attempt 单次尝试：时间戳在每次发送前重新注入，签名与发送使用同一份字节
func (c *Client) attempt(ctx context.Context, req Request, attempt int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: c.endpoint, Err: err}
	}

	payload := c.buildPayload(req)
	body, signature, err := c.signer.SignPayload(payload)
	if err != nil {
		metrics.WorkflowAttemptsTotal.WithLabelValues(req.WorkflowID, string(KindSigning)).Inc()
		return nil, &Error{Kind: KindSigning, Endpoint: c.endpoint, Err: err}
	}

	res, err := c.send(ctx, body, signature)
	if err != nil {
		var wfErr *Error
		kind := KindTransport
		if errors.As(err, &wfErr) {
			kind = wfErr.Kind
		}
		metrics.WorkflowAttemptsTotal.WithLabelValues(req.WorkflowID, string(kind)).Inc()
		logger.Warn(ctx, "workflow request failed",
			"endpoint", c.endpoint,
			"workflow_id", req.WorkflowID,
			"attempt", attempt,
			"kind", string(kind),
			"payload", logger.Truncate(string(body), logPayloadLimit),
			"error", err.Error(),
		)
		return nil, err
	}

	metrics.WorkflowAttemptsTotal.WithLabelValues(req.WorkflowID, "ok").Inc()
	return res, nil
}

func (c *Client) buildPayload(req Request) map[string]any {
	inputs := make(map[string]any, len(req.Inputs)+2)
	for k, v := range req.Inputs {
		inputs[k] = v
	}
	if req.TaskType != "" {
		inputs["task_type"] = req.TaskType
	}
	if len(req.AdditionalParams) > 0 {
		inputs["additional_params"] = req.AdditionalParams
	}

	return map[string]any{
		"workflow_id": req.WorkflowID,
		"inputs":      inputs,
		"timestamp":   c.now().Unix(),
		"app_id":      c.appID,
	}
}

func (c *Client) send(ctx context.Context, body []byte, signature string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: c.endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerFingerprint, c.signer.Fingerprint())
	httpReq.Header.Set(headerSignature, signature)
	httpReq.Header.Set(headerRequestID, uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: c.endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Endpoint: c.endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindTransport,
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Message:    logger.Truncate(string(raw), logPayloadLimit),
		}
	}

	res, err := parseResponse(raw)
	if err != nil {
		var wfErr *Error
		if errors.As(err, &wfErr) {
			wfErr.Endpoint = c.endpoint
			wfErr.StatusCode = resp.StatusCode
		}
		return nil, err
	}
	return res, nil
}
