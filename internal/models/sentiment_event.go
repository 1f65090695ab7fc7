package models

import (
	"time"

	"gorm.io/datatypes"
)

// SourceType identifies the kind of record a sentiment event was derived from.
type SourceType string

const (
	SourceComplaint SourceType = "COMPLAINT"
	SourceRating    SourceType = "RATING"
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	return t == SourceComplaint || t == SourceRating
}

// SentimentLabel is the 5-value ordinal classification of a feedback text.
type SentimentLabel string

const (
	LabelVeryNegative SentimentLabel = "VERY_NEGATIVE"
	LabelNegative     SentimentLabel = "NEGATIVE"
	LabelNeutral      SentimentLabel = "NEUTRAL"
	LabelPositive     SentimentLabel = "POSITIVE"
	LabelVeryPositive SentimentLabel = "VERY_POSITIVE"
)

// Labels lists every label in ordinal order.
var Labels = []SentimentLabel{LabelVeryNegative, LabelNegative, LabelNeutral, LabelPositive, LabelVeryPositive}

func (l SentimentLabel) Valid() bool {
	for _, v := range Labels {
		if l == v {
			return true
		}
	}
	return false
}

func (l SentimentLabel) IsPositive() bool { return l == LabelPositive || l == LabelVeryPositive }
func (l SentimentLabel) IsNegative() bool { return l == LabelNegative || l == LabelVeryNegative }

// SentimentEvent is an immutable classification of one complaint or rating.
// (source_type, source_id) is unique: at most one event per source record.
type SentimentEvent struct {
	ID                string                      `gorm:"primaryKey;size:36" json:"id"`
	BrandID           uint                        `gorm:"index:idx_sentiment_brand_created,priority:1;not null" json:"brand_id"`
	ComplaintID       *uint                       `gorm:"index" json:"complaint_id"`
	SourceType        SourceType                  `gorm:"uniqueIndex:idx_sentiment_source,priority:1;size:20;not null" json:"source_type"`
	SourceID          uint                        `gorm:"uniqueIndex:idx_sentiment_source,priority:2;not null" json:"source_id"`
	TextHash          string                      `gorm:"size:64;index;not null" json:"text_hash"`
	Language          string                      `gorm:"size:16;default:en" json:"language"`
	Label             SentimentLabel              `gorm:"size:20;not null" json:"label"`
	Score             float64                     `json:"score"`
	Intensity         float64                     `json:"intensity"`
	Urgency           int                         `json:"urgency"`
	Topics            datatypes.JSONSlice[string] `json:"topics"`
	KeyPhrases        datatypes.JSONSlice[string] `json:"key_phrases"`
	Summary           string                      `gorm:"type:text" json:"summary"`
	Stars             *int                        `json:"stars"`
	Model             string                      `gorm:"size:100" json:"model"`
	Provider          string                      `gorm:"size:50" json:"provider"`
	ModerationFlagged bool                        `gorm:"default:false" json:"moderation_flagged"`
	Raw               datatypes.JSON              `json:"raw,omitempty"`
	CreatedAt         time.Time                   `gorm:"index:idx_sentiment_brand_created,priority:2" json:"created_at"`
}

func (SentimentEvent) TableName() string { return "sentiment_events" }
