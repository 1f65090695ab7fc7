package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services/classifier"
)

func classification(r classifier.Result) *classifier.Classification {
	return &classifier.Classification{Result: r, Provider: "fake", Model: "fake-1"}
}

func TestEventStore_IngestTwiceStoresOnce(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	item := complaintItem(1, 10, "Late", "Refund never arrived")

	first, skipped, err := store.Ingest(ctx, item, classification(negativeResult("refund")))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if skipped || first == nil {
		t.Fatalf("first ingest should store an event, skipped=%v", skipped)
	}

	second, skipped, err := store.Ingest(ctx, item, classification(negativeResult("refund")))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !skipped || second != nil {
		t.Errorf("second ingest should be skipped, got event=%v skipped=%v", second, skipped)
	}

	var count int64
	db.Model(&models.SentimentEvent{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 event, got %d", count)
	}
}

func TestEventStore_ConcurrentIngest(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	item := complaintItem(1, 11, "", "Charged twice")

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	stored := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event, skipped, err := store.Ingest(context.Background(), item, classification(negativeResult("billing")))
			if err != nil {
				t.Errorf("ingest: %v", err)
				return
			}
			if !skipped && event != nil {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if stored != 1 {
		t.Errorf("expected exactly one writer to store, got %d", stored)
	}
	var count int64
	db.Model(&models.SentimentEvent{}).Where("source_type = ? AND source_id = ?", models.SourceComplaint, 11).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 event row, got %d", count)
	}
}

func TestEventStore_IngestKeepsProvenance(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	occurred := time.Date(2026, 1, 2, 23, 59, 0, 0, time.FixedZone("UTC+2", 2*3600))
	item := &FeedbackItem{
		BrandID:    3,
		SourceType: models.SourceRating,
		SourceID:   5,
		Stars:      intPtr(2),
		Text:       "Slow support",
		OccurredAt: occurred,
	}

	event, _, err := store.Ingest(context.Background(), item, classification(negativeResult("support")))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !event.CreatedAt.Equal(occurred) || event.CreatedAt.Location() != time.UTC {
		t.Errorf("created_at should be the source time in UTC, got %v", event.CreatedAt)
	}
	if event.Stars == nil || *event.Stars != 2 {
		t.Errorf("stars should be copied, got %v", event.Stars)
	}
	_, hash := Normalize(item)
	if event.TextHash != hash {
		t.Errorf("text hash = %q, want %q", event.TextHash, hash)
	}
	if event.Provider != "fake" || event.Model != "fake-1" {
		t.Errorf("provenance not stored: %s/%s", event.Provider, event.Model)
	}
}

func TestEventStore_IngestRejectsEmptyText(t *testing.T) {
	store := NewEventStore(newTestDB(t))
	item := complaintItem(1, 12, "Title only", "")

	if _, _, err := store.Ingest(context.Background(), item, classification(negativeResult())); err == nil {
		t.Error("expected an error for empty canonical text")
	}
}

func TestEventStore_ListRecent(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()

	for i := uint(1); i <= 3; i++ {
		item := complaintItem(4, i, "", "Issue")
		item.OccurredAt = time.Date(2026, 3, int(i), 8, 0, 0, 0, time.UTC)
		if _, _, err := store.Ingest(ctx, item, classification(negativeResult())); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	events, err := store.ListRecent(ctx, 4, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].SourceID != 3 || events[1].SourceID != 2 {
		t.Errorf("events should be newest first, got %d, %d", events[0].SourceID, events[1].SourceID)
	}
}

func TestBucketDay(t *testing.T) {
	in := time.Date(2026, 5, 1, 1, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))
	want := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	if got := BucketDay(in); !got.Equal(want) {
		t.Errorf("BucketDay() = %v, want %v", got, want)
	}
}
