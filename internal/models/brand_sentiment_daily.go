package models

import (
	"time"

	"gorm.io/datatypes"
)

// BrandSentimentDaily is the per-(brand, UTC day) rollup of sentiment events.
// Rows are always fully recomputed from the bucket's events and overwritten.
type BrandSentimentDaily struct {
	ID          uint                        `gorm:"primaryKey" json:"-"`
	BrandID     uint                        `gorm:"uniqueIndex:idx_brand_day,priority:1;not null" json:"brand_id"`
	Day         time.Time                   `gorm:"uniqueIndex:idx_brand_day,priority:2;not null" json:"day"`
	Count       int                         `json:"count"`
	AvgScore    float64                     `json:"avg_score"`
	AvgUrgency  float64                     `json:"avg_urgency"`
	AvgStars    *float64                    `json:"avg_stars"`
	PositivePct float64                     `json:"positive_pct"`
	NegativePct float64                     `json:"negative_pct"`
	NeutralPct  float64                     `json:"neutral_pct"`
	TopTopics   datatypes.JSONSlice[string] `json:"top_topics"`
	UpdatedAt   time.Time                   `json:"updated_at"` // created_at of the newest event in the bucket
}

func (BrandSentimentDaily) TableName() string { return "brand_sentiment_dailies" }
