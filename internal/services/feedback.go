package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huangang/brandsentry/internal/models"
)

// FeedbackItem is one complaint or rating on its way through the pipeline.
type FeedbackItem struct {
	BrandID     uint              `json:"brand_id"`
	ComplaintID *uint             `json:"complaint_id,omitempty"`
	SourceType  models.SourceType `json:"source_type"`
	SourceID    uint              `json:"source_id"`
	Title       string            `json:"title,omitempty"`
	Text        string            `json:"text"`
	Stars       *int              `json:"stars,omitempty"`
	// OccurredAt is the creation time of the source record. Zero means now.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

var ErrInvalidItem = errors.New("invalid feedback item")

// Validate checks the fields every source type needs.
func (f *FeedbackItem) Validate() error {
	if f.BrandID == 0 {
		return fmt.Errorf("%w: brand_id is required", ErrInvalidItem)
	}
	if !f.SourceType.Valid() {
		return fmt.Errorf("%w: source_type %q", ErrInvalidItem, f.SourceType)
	}
	if f.SourceID == 0 {
		return fmt.Errorf("%w: source_id is required", ErrInvalidItem)
	}
	if f.SourceType == models.SourceRating {
		if f.Stars == nil || *f.Stars < 1 || *f.Stars > 5 {
			return fmt.Errorf("%w: rating stars must be between 1 and 5", ErrInvalidItem)
		}
	}
	return nil
}

// Normalize returns the canonical text of item and its SHA-256 fingerprint.
// An empty canonical text means the item has nothing to classify.
func Normalize(item *FeedbackItem) (string, string) {
	text := CanonicalText(item)
	return text, Fingerprint(text)
}

// CanonicalText builds the text sent to the classifier. Only a complaint
// without a description yields ""; a rating always carries its star count.
func CanonicalText(item *FeedbackItem) string {
	switch item.SourceType {
	case models.SourceComplaint:
		if strings.TrimSpace(item.Text) == "" {
			return ""
		}
		return strings.TrimSpace(item.Title + "\n\n" + item.Text)
	case models.SourceRating:
		stars := 0
		if item.Stars != nil {
			stars = *item.Stars
		}
		return strings.TrimSpace(fmt.Sprintf("%d star rating: %s", stars, item.Text))
	default:
		return strings.TrimSpace(item.Text)
	}
}

// Fingerprint is the hex SHA-256 digest of canonical text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ComplaintFeedback builds the feedback item of a stored complaint.
func ComplaintFeedback(c *models.Complaint) *FeedbackItem {
	id := c.ID
	return &FeedbackItem{
		BrandID:     c.BrandID,
		ComplaintID: &id,
		SourceType:  models.SourceComplaint,
		SourceID:    c.ID,
		Title:       c.Title,
		Text:        c.Description,
		OccurredAt:  c.CreatedAt,
	}
}

// RatingFeedback builds the feedback item of a stored rating.
func RatingFeedback(r *models.Rating) *FeedbackItem {
	stars := r.Stars
	return &FeedbackItem{
		BrandID:     r.BrandID,
		ComplaintID: r.ComplaintID,
		SourceType:  models.SourceRating,
		SourceID:    r.ID,
		Text:        r.Comment,
		Stars:       &stars,
		OccurredAt:  r.CreatedAt,
	}
}
