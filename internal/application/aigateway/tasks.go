package aigateway

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// 用量记录中的接口名
const (
	APIEmotionAnalysis   = "emotion_analysis"
	APICareerAnalysis    = "career_analysis"
	APIContentSummary    = "content_summary"
	APIAbilityEvaluation = "ability_evaluation"
	APIEmotionPhoto      = "emotion_photo"
	APIEmotionCurve      = "emotion_curve"
	APICareerAction      = "career_action"
	APICareerAbility     = "career_ability"
	APICollectionSummary = "collection_summary"
)

const (
	defaultPhotoStyle   = "写实风格"
	maxPhotoTextRunes   = 500
	maxCurveEmotionsLen = 30
)

// CareerOptions 职业分析可选参数
type CareerOptions struct {
	ActionType     string
	TargetPosition string
}

// SummaryInput 摘要输入
type SummaryInput struct {
	Title   string
	Content string
	URL     string
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}

// optionalParams 仅保留非空字段
func optionalParams(kv ...string) map[string]any {
	params := map[string]any{}
	for i := 0; i+1 < len(kv); i += 2 {
		if v := strings.TrimSpace(kv[i+1]); v != "" {
			params[kv[i]] = v
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// AnalyzeEmotion 情绪分析
func (g *Gateway) AnalyzeEmotion(ctx context.Context, userID, content string) Outcome[EmotionAnalysis] {
	return run(ctx, g, userID, task[EmotionAnalysis]{
		apiName:    APIEmotionAnalysis,
		workflowID: g.workflows.EmotionAnalysis,
		taskType:   "emotion",
		inputs:     map[string]any{"content": content},
		project:    projectEmotion,
	}, required("content", content))
}

// AnalyzeCareer 职业发展分析
func (g *Gateway) AnalyzeCareer(ctx context.Context, userID, content string, opts CareerOptions) Outcome[CareerAnalysis] {
	return run(ctx, g, userID, task[CareerAnalysis]{
		apiName:    APICareerAnalysis,
		workflowID: g.workflows.CareerAnalysis,
		taskType:   "career",
		inputs:     map[string]any{"content": content},
		additional: optionalParams("action_type", opts.ActionType, "target_position", opts.TargetPosition),
		project:    projectCareer,
	}, required("content", content))
}

// GenerateSummary 内容摘要
func (g *Gateway) GenerateSummary(ctx context.Context, userID string, in SummaryInput) Outcome[Summary] {
	return run(ctx, g, userID, task[Summary]{
		apiName:    APIContentSummary,
		workflowID: g.workflows.ContentSummary,
		taskType:   "summary",
		inputs:     map[string]any{"content": in.Content},
		additional: optionalParams("title", in.Title, "url", in.URL),
		project:    projectSummary,
	}, required("content", in.Content))
}

// EvaluateAbility 根据行动记录评估能力，actions 以 JSON 文本作为 content 发送
func (g *Gateway) EvaluateAbility(ctx context.Context, userID string, actions []map[string]any) Outcome[AbilityEvaluation] {
	var validateErr error
	var content string
	if len(actions) == 0 {
		validateErr = invalid("actions", "must not be empty")
	} else if raw, err := json.Marshal(actions); err != nil {
		validateErr = invalid("actions", "must be JSON serializable")
	} else {
		content = string(raw)
	}

	return run(ctx, g, userID, task[AbilityEvaluation]{
		apiName:    APIAbilityEvaluation,
		workflowID: g.workflows.AbilityEvaluation,
		taskType:   "ability",
		inputs:     map[string]any{"content": content},
		project:    projectAbility,
	}, validateErr)
}

// GenerateEmotionPhoto 情绪照片，style 为空时使用写实风格
func (g *Gateway) GenerateEmotionPhoto(ctx context.Context, userID, text, style string) Outcome[EmotionPhoto] {
	validateErr := required("text", text)
	if validateErr == nil && utf8.RuneCountInString(text) > maxPhotoTextRunes {
		validateErr = invalid("text", "must be at most 500 characters")
	}
	if strings.TrimSpace(style) == "" {
		style = defaultPhotoStyle
	}

	return run(ctx, g, userID, task[EmotionPhoto]{
		apiName:    APIEmotionPhoto,
		workflowID: g.workflows.EmotionPhoto,
		inputs:     map[string]any{"text": text, "style": style},
		project:    projectEmotionPhoto,
	}, validateErr)
}

// GenerateEmotionCurve 情绪曲线，最多 30 条情绪记录
func (g *Gateway) GenerateEmotionCurve(ctx context.Context, userID string, emotions []map[string]any) Outcome[EmotionCurve] {
	var validateErr error
	switch {
	case len(emotions) == 0:
		validateErr = invalid("emotions", "must not be empty")
	case len(emotions) > maxCurveEmotionsLen:
		validateErr = invalid("emotions", "must contain at most 30 entries")
	}

	return run(ctx, g, userID, task[EmotionCurve]{
		apiName:    APIEmotionCurve,
		workflowID: g.workflows.EmotionCurve,
		inputs:     map[string]any{"emotions": emotions},
		project:    projectEmotionCurve,
	}, validateErr)
}

// GenerateCareerAction 职业行动建议
func (g *Gateway) GenerateCareerAction(ctx context.Context, userID, description string) Outcome[CareerActions] {
	return run(ctx, g, userID, task[CareerActions]{
		apiName:    APICareerAction,
		workflowID: g.workflows.CareerAction,
		inputs:     map[string]any{"description": description},
		project:    projectCareerActions,
	}, required("description", description))
}

// GenerateCareerAbility 能力画像
func (g *Gateway) GenerateCareerAbility(ctx context.Context, userID, experience string) Outcome[CareerAbility] {
	return run(ctx, g, userID, task[CareerAbility]{
		apiName:    APICareerAbility,
		workflowID: g.workflows.CareerAbility,
		inputs:     map[string]any{"experience": experience},
		project:    projectCareerAbility,
	}, required("experience", experience))
}

// GenerateCollectionSummary 收藏内容智能摘要
func (g *Gateway) GenerateCollectionSummary(ctx context.Context, userID, content string) Outcome[CollectionSummary] {
	return run(ctx, g, userID, task[CollectionSummary]{
		apiName:    APICollectionSummary,
		workflowID: g.workflows.CollectionSummary,
		inputs:     map[string]any{"content": content},
		project:    projectCollectionSummary,
	}, required("content", content))
}
