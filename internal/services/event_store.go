package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services/classifier"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventStore is the only writer of sentiment_events and the single place the
// one-event-per-source rule is enforced.
type EventStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

// Exists reports whether an event was already stored for the source record.
func (s *EventStore) Exists(ctx context.Context, sourceType models.SourceType, sourceID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SentimentEvent{}).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check sentiment event: %w", err)
	}
	return count > 0, nil
}

// Ingest stores the classification of item. It returns skipped=true, with a nil
// event, when an event already exists for (source_type, source_id), including
// when a concurrent writer inserted it first.
func (s *EventStore) Ingest(ctx context.Context, item *FeedbackItem, c *classifier.Classification) (*models.SentimentEvent, bool, error) {
	if c == nil {
		return nil, false, errors.New("ingest: classification is required")
	}
	exists, err := s.Exists(ctx, item.SourceType, item.SourceID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, true, nil
	}

	text, hash := Normalize(item)
	if text == "" {
		return nil, false, errors.New("ingest: empty canonical text")
	}

	createdAt := item.OccurredAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	event := &models.SentimentEvent{
		ID:          uuid.New().String(),
		BrandID:     item.BrandID,
		ComplaintID: item.ComplaintID,
		SourceType:  item.SourceType,
		SourceID:    item.SourceID,
		TextHash:    hash,
		Language:    c.Language,
		Label:       c.Label,
		Score:       c.Score,
		Intensity:   c.Intensity,
		Urgency:     c.Urgency,
		Topics:      datatypes.JSONSlice[string](c.Topics),
		KeyPhrases:  datatypes.JSONSlice[string](c.KeyPhrases),
		Summary:     c.Summary,
		Stars:       item.Stars,
		Model:       c.Model,
		Provider:    c.Provider,
		Raw:         datatypes.JSON(c.Raw),
		CreatedAt:   createdAt.UTC(),
	}
	if event.Language == "" {
		event.Language = "en"
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_type"}, {Name: "source_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return nil, false, fmt.Errorf("insert sentiment event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, true, nil
	}
	return event, false, nil
}

// ListRecent returns the newest events of a brand.
func (s *EventStore) ListRecent(ctx context.Context, brandID uint, limit int) ([]models.SentimentEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var events []models.SentimentEvent
	err := s.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListDaily returns the rollups of the last days UTC days, today included, oldest first.
func (s *EventStore) ListDaily(ctx context.Context, brandID uint, days int) ([]models.BrandSentimentDaily, error) {
	if days <= 0 || days > 366 {
		days = 30
	}
	since := BucketDay(s.now()).AddDate(0, 0, -(days - 1))
	var rows []models.BrandSentimentDaily
	err := s.db.WithContext(ctx).
		Where("brand_id = ? AND day >= ?", brandID, since).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BucketDay truncates t to its UTC day.
func BucketDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
