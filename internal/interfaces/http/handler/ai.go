package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"growth-journal-api/internal/application/aigateway"
	"growth-journal-api/internal/application/quota"
	"growth-journal-api/internal/infrastructure/workflow"
	"growth-journal-api/internal/interfaces/http/dto"
	"growth-journal-api/internal/interfaces/http/middleware"
	apperrors "growth-journal-api/pkg/errors"
	"growth-journal-api/pkg/logger"
)

// UsageReader 读取用户当日用量
type UsageReader interface {
	Usage(ctx context.Context, userID string) (*quota.Usage, error)
}

// AIHandler AI 任务处理器，只做参数绑定与结果映射
type AIHandler struct {
	gateway *aigateway.Gateway
	usage   UsageReader
}

// NewAIHandler 创建 AI 任务处理器
func NewAIHandler(gateway *aigateway.Gateway, usage UsageReader) *AIHandler {
	return &AIHandler{
		gateway: gateway,
		usage:   usage,
	}
}

// writeOutcome 将调用结果映射为 HTTP 响应
func writeOutcome[T any](c *gin.Context, out aigateway.Outcome[T]) {
	switch out.Status {
	case aigateway.StatusOK:
		dto.Success(c, out.Data)
	case aigateway.StatusInvalidInput:
		dto.BadRequest(c, errMessage(out.Err, "invalid input"))
	case aigateway.StatusQuotaExceeded:
		dto.AppError(c, apperrors.ErrQuotaExceeded)
	default:
		dto.AppError(c, serviceError(out.Err))
	}
}

// serviceError 按工作流错误类别区分错误码
func serviceError(err error) *apperrors.AppError {
	switch {
	case workflow.IsKind(err, workflow.KindBusiness):
		return apperrors.ErrWorkflowRejected
	case workflow.IsKind(err, workflow.KindSigning):
		return apperrors.ErrSigningFailed
	default:
		return apperrors.ErrAIServiceFailed
	}
}

func errMessage(err error, def string) string {
	if err == nil {
		return def
	}
	return err.Error()
}

// bind 绑定 JSON 请求体，失败时直接写 400
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// AnalyzeEmotion 情绪分析
// @Summary 情绪分析
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.AnalyzeEmotionRequest true "日记内容"
// @Success 200 {object} dto.Response[aigateway.EmotionAnalysis]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/ai/emotion/analyze [post]
func (h *AIHandler) AnalyzeEmotion(c *gin.Context) {
	var req dto.AnalyzeEmotionRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.AnalyzeEmotion(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Content))
}

// AnalyzeCareer 职业发展分析
// @Summary 职业发展分析
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.AnalyzeCareerRequest true "职业描述"
// @Success 200 {object} dto.Response[aigateway.CareerAnalysis]
// @Router /v1/ai/career/analyze [post]
func (h *AIHandler) AnalyzeCareer(c *gin.Context) {
	var req dto.AnalyzeCareerRequest
	if !bind(c, &req) {
		return
	}
	opts := aigateway.CareerOptions{ActionType: req.ActionType, TargetPosition: req.TargetPosition}
	writeOutcome(c, h.gateway.AnalyzeCareer(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Content, opts))
}

// GenerateSummary 内容摘要
// @Summary 内容摘要
// @Tags AI
// @Router /v1/ai/summary [post]
func (h *AIHandler) GenerateSummary(c *gin.Context) {
	var req dto.SummaryRequest
	if !bind(c, &req) {
		return
	}
	in := aigateway.SummaryInput{Title: req.Title, Content: req.Content, URL: req.URL}
	writeOutcome(c, h.gateway.GenerateSummary(c.Request.Context(), middleware.GetUserIDFromGin(c), in))
}

// EvaluateAbility 能力评估
// @Summary 能力评估
// @Tags AI
// @Router /v1/ai/ability/evaluate [post]
func (h *AIHandler) EvaluateAbility(c *gin.Context) {
	var req dto.EvaluateAbilityRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.EvaluateAbility(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Actions))
}

// GenerateEmotionPhoto 情绪照片
// @Summary 情绪照片
// @Tags AI
// @Router /v1/ai/emotion/photo [post]
func (h *AIHandler) GenerateEmotionPhoto(c *gin.Context) {
	var req dto.EmotionPhotoRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.GenerateEmotionPhoto(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Text, req.Style))
}

// GenerateEmotionCurve 情绪曲线
// @Summary 情绪曲线
// @Tags AI
// @Router /v1/ai/emotion/curve [post]
func (h *AIHandler) GenerateEmotionCurve(c *gin.Context) {
	var req dto.EmotionCurveRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.GenerateEmotionCurve(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Emotions))
}

// GenerateCareerAction 职业行动建议
// @Summary 职业行动建议
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.CareerActionRequest true "目标描述"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/ai/career/action [post]
func (h *AIHandler) GenerateCareerAction(c *gin.Context) {
	var req dto.CareerActionRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.GenerateCareerAction(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Description))
}

// GenerateCareerAbility 职业能力分析
// @Summary 职业能力分析
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.CareerAbilityRequest true "经历描述"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/ai/career/ability [post]
func (h *AIHandler) GenerateCareerAbility(c *gin.Context) {
	var req dto.CareerAbilityRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.GenerateCareerAbility(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Experience))
}

// GenerateCollectionSummary 收藏内容总结
// @Summary 收藏内容总结
// @Tags AI
// @Accept json
// @Produce json
// @Param body body dto.CollectionSummaryRequest true "收藏内容"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/ai/collection/summary [post]
func (h *AIHandler) GenerateCollectionSummary(c *gin.Context) {
	var req dto.CollectionSummaryRequest
	if !bind(c, &req) {
		return
	}
	writeOutcome(c, h.gateway.GenerateCollectionSummary(c.Request.Context(), middleware.GetUserIDFromGin(c), req.Content))
}

// GetUsage 当日用量
// @Summary 当日 AI 调用用量
// @Tags AI
// @Produce json
// @Success 200 {object} dto.Response[dto.UsageResponse]
// @Router /v1/ai/usage [get]
func (h *AIHandler) GetUsage(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserIDFromGin(c)
	if userID == "" {
		dto.AppError(c, apperrors.ErrUnauthorized)
		return
	}

	usage, err := h.usage.Usage(ctx, userID)
	if err != nil {
		logger.Error(ctx, "failed to read usage", err)
		dto.AppError(c, apperrors.ErrUsageRecordFailed)
		return
	}
	dto.Success(c, dto.ToUsageResponse(usage))
}
