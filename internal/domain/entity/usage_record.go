// Package entity 定义领域实体
package entity

import "time"

// UsageRecord 用户每日每个 AI 接口的调用统计，(user_id, api_name, call_date) 唯一
type UsageRecord struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string    `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:uniq_usage_user_api_date,priority:1;index:idx_usage_user_date,priority:1"`
	APIName      string    `json:"api_name" gorm:"type:varchar(64);not null;uniqueIndex:uniq_usage_user_api_date,priority:2"`
	CallDate     time.Time `json:"call_date" gorm:"type:date;not null;uniqueIndex:uniq_usage_user_api_date,priority:3;index:idx_usage_user_date,priority:2"`
	CallCount    int64     `json:"call_count" gorm:"not null"`
	SuccessCount int64     `json:"success_count" gorm:"not null"`
	ErrorCount   int64     `json:"error_count" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (UsageRecord) TableName() string {
	return "ai_usage_stats"
}

// CivilDate 将时间换算为 loc 中的日历日期，以 UTC 零点表示，便于作为 date 列比较
func CivilDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
