package dto

import (
	"growth-journal-api/internal/application/quota"
)

// AnalyzeEmotionRequest 情绪分析请求
type AnalyzeEmotionRequest struct {
	Content string `json:"content" binding:"required"`
}

// AnalyzeCareerRequest 职业分析请求
type AnalyzeCareerRequest struct {
	Content        string `json:"content" binding:"required"`
	ActionType     string `json:"action_type,omitempty"`
	TargetPosition string `json:"target_position,omitempty"`
}

// SummaryRequest 内容摘要请求
type SummaryRequest struct {
	Content string `json:"content" binding:"required"`
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
}

// EvaluateAbilityRequest 能力评估请求
type EvaluateAbilityRequest struct {
	Actions []map[string]any `json:"actions" binding:"required"`
}

// EmotionPhotoRequest 情绪照片请求
type EmotionPhotoRequest struct {
	Text  string `json:"text" binding:"required"`
	Style string `json:"style,omitempty"`
}

// EmotionCurveRequest 情绪曲线请求
type EmotionCurveRequest struct {
	Emotions []map[string]any `json:"emotions" binding:"required"`
}

// CareerActionRequest 职业行动建议请求
type CareerActionRequest struct {
	Description string `json:"description" binding:"required"`
}

// CareerAbilityRequest 能力画像请求
type CareerAbilityRequest struct {
	Experience string `json:"experience" binding:"required"`
}

// CollectionSummaryRequest 收藏摘要请求
type CollectionSummaryRequest struct {
	Content string `json:"content" binding:"required"`
}

// UsageRecordResponse 单个接口的当日调用统计
type UsageRecordResponse struct {
	APIName      string `json:"api_name"`
	CallCount    int64  `json:"call_count"`
	SuccessCount int64  `json:"success_count"`
	ErrorCount   int64  `json:"error_count"`
}

// UsageResponse 当日用量
type UsageResponse struct {
	Date      string                `json:"date"`
	Limit     int64                 `json:"limit"`
	Used      int64                 `json:"used"`
	Remaining int64                 `json:"remaining"`
	Records   []UsageRecordResponse `json:"records"`
}

// ToUsageResponse 转换用量
func ToUsageResponse(u *quota.Usage) *UsageResponse {
	if u == nil {
		return nil
	}
	resp := &UsageResponse{
		Date:      u.Date.Format("2006-01-02"),
		Limit:     u.Limit,
		Used:      u.Used,
		Remaining: u.Remaining,
		Records:   make([]UsageRecordResponse, 0, len(u.Records)),
	}
	for _, r := range u.Records {
		resp.Records = append(resp.Records, UsageRecordResponse{
			APIName:      r.APIName,
			CallCount:    r.CallCount,
			SuccessCount: r.SuccessCount,
			ErrorCount:   r.ErrorCount,
		})
	}
	return resp
}
