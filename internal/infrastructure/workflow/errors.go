package workflow

import (
	"errors"
	"fmt"
)

// Kind 工作流错误分类
type Kind string

const (
	// KindTransport 超时、连接失败或 HTTP 非 2xx
	KindTransport Kind = "transport"
	// KindParse 响应体不是合法 JSON
	KindParse Kind = "parse"
	// KindBusiness 响应 code != 200，不重试
	KindBusiness Kind = "business"
	// KindSigning 签名失败，属于配置问题，不重试
	KindSigning Kind = "signing"
)

// Error 工作流调用最终返回的唯一错误类型
type Error struct {
	Kind       Kind
	WorkflowID string
	Endpoint   string
	StatusCode int    // HTTP 状态码，未拿到响应时为 0
	Code       int64  // 业务码，仅 KindBusiness
	Message    string // 业务消息或响应摘要
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("workflow %s error", e.Kind)
	if e.WorkflowID != "" {
		msg += " (workflow_id=" + e.WorkflowID + ")"
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": http status %d", e.StatusCode)
	}
	if e.Kind == KindBusiness {
		msg += fmt.Sprintf(": code %d", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable 仅传输与解析错误允许重试
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindParse
}

// IsKind 判断 err 链中是否存在指定分类的工作流错误
func IsKind(err error, kind Kind) bool {
	var wfErr *Error
	return errors.As(err, &wfErr) && wfErr.Kind == kind
}
