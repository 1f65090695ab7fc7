package services

import (
	"errors"
	"testing"

	"github.com/huangang/brandsentry/internal/models"
)

func TestCanonicalText(t *testing.T) {
	tests := []struct {
		name string
		item *FeedbackItem
		want string
	}{
		{
			name: "complaint joins title and description",
			item: &FeedbackItem{SourceType: models.SourceComplaint, Title: "Late refund", Text: "Refund never arrived"},
			want: "Late refund\n\nRefund never arrived",
		},
		{
			name: "complaint without title is trimmed",
			item: &FeedbackItem{SourceType: models.SourceComplaint, Text: "  Refund never arrived  "},
			want: "Refund never arrived",
		},
		{
			name: "complaint without description is empty",
			item: &FeedbackItem{SourceType: models.SourceComplaint, Title: "Only a title", Text: "   "},
			want: "",
		},
		{
			name: "rating carries stars",
			item: &FeedbackItem{SourceType: models.SourceRating, Stars: intPtr(4), Text: "Quick fix"},
			want: "4 star rating: Quick fix",
		},
		{
			name: "rating without comment keeps stars",
			item: &FeedbackItem{SourceType: models.SourceRating, Stars: intPtr(5)},
			want: "5 star rating:",
		},
		{
			name: "rating with blank comment keeps stars",
			item: &FeedbackItem{SourceType: models.SourceRating, Stars: intPtr(1), Text: " \n "},
			want: "1 star rating:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalText(tt.item); got != tt.want {
				t.Errorf("CanonicalText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalize_Fingerprint(t *testing.T) {
	a := &FeedbackItem{SourceType: models.SourceComplaint, Title: "Late", Text: "Refund never arrived"}
	b := &FeedbackItem{SourceType: models.SourceComplaint, Title: "Late", Text: "Refund never arrived"}
	c := &FeedbackItem{SourceType: models.SourceComplaint, Title: "Late", Text: "Refund arrived"}

	_, ha := Normalize(a)
	_, hb := Normalize(b)
	_, hc := Normalize(c)

	if len(ha) != 64 {
		t.Errorf("fingerprint should be 64 hex chars, got %d", len(ha))
	}
	if ha != hb {
		t.Error("identical text should have identical fingerprints")
	}
	if ha == hc {
		t.Error("different text should have different fingerprints")
	}
}

func TestFeedbackItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    FeedbackItem
		wantErr bool
	}{
		{"valid complaint", FeedbackItem{BrandID: 1, SourceType: models.SourceComplaint, SourceID: 3}, false},
		{"valid rating", FeedbackItem{BrandID: 1, SourceType: models.SourceRating, SourceID: 3, Stars: intPtr(1)}, false},
		{"missing brand", FeedbackItem{SourceType: models.SourceComplaint, SourceID: 3}, true},
		{"unknown source type", FeedbackItem{BrandID: 1, SourceType: "REVIEW", SourceID: 3}, true},
		{"missing source id", FeedbackItem{BrandID: 1, SourceType: models.SourceComplaint}, true},
		{"rating without stars", FeedbackItem{BrandID: 1, SourceType: models.SourceRating, SourceID: 3}, true},
		{"rating with six stars", FeedbackItem{BrandID: 1, SourceType: models.SourceRating, SourceID: 3, Stars: intPtr(6)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidItem) {
				t.Errorf("error should wrap ErrInvalidItem, got %v", err)
			}
		})
	}
}

func TestSourceFeedback(t *testing.T) {
	complaint := &models.Complaint{ID: 7, BrandID: 2, Title: "Broken", Description: "Arrived broken"}
	item := ComplaintFeedback(complaint)
	if item.SourceType != models.SourceComplaint || item.SourceID != 7 || *item.ComplaintID != 7 {
		t.Errorf("unexpected complaint item: %+v", item)
	}

	rating := &models.Rating{ID: 9, BrandID: 2, ComplaintID: uintPtr(7), Stars: 2, Comment: "Slow"}
	item = RatingFeedback(rating)
	if item.SourceType != models.SourceRating || item.SourceID != 9 || *item.Stars != 2 || *item.ComplaintID != 7 {
		t.Errorf("unexpected rating item: %+v", item)
	}
}
