package aigateway

import (
	"github.com/tidwall/gjson"

	"growth-journal-api/internal/infrastructure/workflow"
)

const defaultEmotionLevel = 50

// EmotionAnalysis 情绪分析结果，工作流未给出 emotion_type / image_url 时输出 null
type EmotionAnalysis struct {
	EmotionType  *string `json:"emotion_type"`
	EmotionLevel int64   `json:"emotion_level"`
	Analysis     string  `json:"analysis"`
	ImageURL     *string `json:"image_url"`
}

// CareerAnalysis 职业发展分析结果
type CareerAnalysis struct {
	Suggestion      string   `json:"suggestion"`
	Skills          []string `json:"skills"`
	DevelopmentPath []string `json:"development_path"`
}

// Summary 内容摘要
type Summary struct {
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Keywords []string `json:"keywords"`
}

// AbilityEvaluation 能力评估，skills 元素由工作流决定结构
type AbilityEvaluation struct {
	OverallScore float64  `json:"overall_score"`
	Skills       []any    `json:"skills"`
	Suggestions  []string `json:"suggestions"`
}

// EmotionPhoto 情绪照片
type EmotionPhoto struct {
	PhotoURL string `json:"photo_url"`
}

// EmotionCurve 情绪曲线
type EmotionCurve struct {
	CurveURL string `json:"curve_url"`
	Analysis string `json:"analysis"`
}

// CareerActions 职业行动建议
type CareerActions struct {
	Actions    []any  `json:"actions"`
	Suggestion string `json:"suggestion"`
}

// CareerAbility 能力画像
type CareerAbility struct {
	Abilities []any  `json:"abilities"`
	Summary   string `json:"summary"`
}

// CollectionSummary 收藏内容智能摘要
type CollectionSummary struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

func projectEmotion(r *workflow.Result) *EmotionAnalysis {
	return &EmotionAnalysis{
		EmotionType:  optStr(r.Get("emotion_type")),
		EmotionLevel: integer(r.Get("emotion_level"), defaultEmotionLevel),
		Analysis:     str(r.Get("analysis"), ""),
		ImageURL:     optStr(r.Get("image_url")),
	}
}

func projectCareer(r *workflow.Result) *CareerAnalysis {
	return &CareerAnalysis{
		Suggestion:      str(r.Get("suggestion"), ""),
		Skills:          stringList(r.Get("skills")),
		DevelopmentPath: stringList(r.Get("development_path")),
	}
}

func projectSummary(r *workflow.Result) *Summary {
	return &Summary{
		Summary:  str(r.Get("summary"), ""),
		Tags:     stringList(r.Get("tags")),
		Keywords: stringList(r.Get("keywords")),
	}
}

func projectAbility(r *workflow.Result) *AbilityEvaluation {
	score := r.Get("overall_score")
	overall := 0.0
	if score.Type == gjson.Number {
		overall = score.Float()
	}
	return &AbilityEvaluation{
		OverallScore: overall,
		Skills:       valueList(r.Get("skills")),
		Suggestions:  stringList(r.Get("suggestions")),
	}
}

func projectEmotionPhoto(r *workflow.Result) *EmotionPhoto {
	return &EmotionPhoto{PhotoURL: str(r.Get("photo_url"), "")}
}

func projectEmotionCurve(r *workflow.Result) *EmotionCurve {
	return &EmotionCurve{
		CurveURL: str(r.Get("curve_url"), ""),
		Analysis: str(r.Get("analysis"), ""),
	}
}

func projectCareerActions(r *workflow.Result) *CareerActions {
	return &CareerActions{
		Actions:    valueList(r.Get("actions")),
		Suggestion: str(r.Get("suggestion"), ""),
	}
}

func projectCareerAbility(r *workflow.Result) *CareerAbility {
	return &CareerAbility{
		Abilities: valueList(r.Get("abilities")),
		Summary:   str(r.Get("summary"), ""),
	}
}

func projectCollectionSummary(r *workflow.Result) *CollectionSummary {
	return &CollectionSummary{
		Summary: str(r.Get("summary"), ""),
		Tags:    stringList(r.Get("tags")),
	}
}

func str(v gjson.Result, def string) string {
	if !v.Exists() || v.Type == gjson.Null {
		return def
	}
	return v.String()
}

// optStr 缺失或 null 返回 nil
func optStr(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}

func integer(v gjson.Result, def int64) int64 {
	if v.Type != gjson.Number {
		return def
	}
	return v.Int()
}

// stringList 缺失或非数组时返回空切片，序列化为 []
func stringList(v gjson.Result) []string {
	out := []string{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		out = append(out, item.String())
	}
	return out
}

func valueList(v gjson.Result) []any {
	out := []any{}
	if !v.IsArray() {
		return out
	}
	for _, item := range v.Array() {
		out = append(out, item.Value())
	}
	return out
}
