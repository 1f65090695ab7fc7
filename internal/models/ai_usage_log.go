package models

import "time"

// AIUsageLog records each classifier call for cost and failure tracking.
type AIUsageLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	BrandID      *uint     `gorm:"index" json:"brand_id"`
	SourceType   string    `gorm:"size:20" json:"source_type"`
	SourceID     *uint     `json:"source_id"`
	Provider     string    `gorm:"size:50" json:"provider"`
	Model        string    `gorm:"size:100" json:"model"`
	InputChars   int       `json:"input_chars"`
	LatencyMs    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	FailureKind  string    `gorm:"size:30" json:"failure_kind,omitempty"`
	ErrorMessage string    `gorm:"size:500" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (AIUsageLog) TableName() string { return "ai_usage_logs" }
