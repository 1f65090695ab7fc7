package services

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/huangang/brandsentry/internal/models"
)

var testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func event(id string, label models.SentimentLabel, score float64, urgency int, topics ...string) models.SentimentEvent {
	return models.SentimentEvent{
		ID:      id,
		BrandID: 1,
		Label:   label,
		Score:   score,
		Urgency: urgency,
		Topics:  topics,
	}
}

func TestComputeDaily_EmptyBucket(t *testing.T) {
	row := ComputeDaily(1, testDay.Add(5*time.Hour), nil)

	if row.Count != 0 || row.AvgScore != 0 || row.AvgUrgency != 0 {
		t.Errorf("empty bucket should be all zeros, got %+v", row)
	}
	if row.PositivePct != 0 || row.NegativePct != 0 || row.NeutralPct != 0 {
		t.Errorf("empty bucket percentages should be zero, got %+v", row)
	}
	if row.AvgStars != nil {
		t.Errorf("avg stars should be nil, got %v", *row.AvgStars)
	}
	if row.TopTopics == nil || len(row.TopTopics) != 0 {
		t.Errorf("top topics should be an empty list, got %v", row.TopTopics)
	}
	if !row.Day.Equal(testDay) {
		t.Errorf("day should be truncated to %v, got %v", testDay, row.Day)
	}
}

func TestComputeDaily_TopicRanking(t *testing.T) {
	events := []models.SentimentEvent{
		event("a", models.LabelNegative, -0.5, 60, "billing", "billing", "delivery"),
		event("b", models.LabelNegative, -0.7, 80, "billing", "fraud"),
	}

	row := ComputeDaily(1, testDay, events)
	want := []string{"billing", "delivery", "fraud"}
	if !reflect.DeepEqual([]string(row.TopTopics), want) {
		t.Errorf("TopTopics = %v, want %v", row.TopTopics, want)
	}
}

func TestComputeDaily_TopicCap(t *testing.T) {
	topics := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	row := ComputeDaily(1, testDay, []models.SentimentEvent{event("a", models.LabelNeutral, 0, 0, topics...)})
	if len(row.TopTopics) != MaxTopTopics {
		t.Errorf("expected %d topics, got %d", MaxTopTopics, len(row.TopTopics))
	}
}

func TestComputeDaily_Averages(t *testing.T) {
	stars := 4
	e1 := event("a", models.LabelVeryNegative, -0.9, 90)
	e2 := event("b", models.LabelNeutral, 0.0, 30)
	e3 := event("c", models.LabelPositive, 0.6, 0)
	e3.Stars = &stars

	row := ComputeDaily(1, testDay, []models.SentimentEvent{e1, e2, e3})

	if row.Count != 3 {
		t.Errorf("count = %d, want 3", row.Count)
	}
	if math.Abs(row.AvgScore-(-0.1)) > 1e-9 {
		t.Errorf("avg score = %v, want -0.1", row.AvgScore)
	}
	if row.AvgUrgency != 40 {
		t.Errorf("avg urgency = %v, want 40", row.AvgUrgency)
	}
	if row.AvgStars == nil || *row.AvgStars != 4 {
		t.Errorf("avg stars should average only rated events, got %v", row.AvgStars)
	}
	if row.NegativePct != 0.3333 || row.NeutralPct != 0.3333 || row.PositivePct != 0.3333 {
		t.Errorf("unexpected percentages: %+v", row)
	}
}

func TestComputeDaily_PercentagesSumToOne(t *testing.T) {
	labels := []models.SentimentLabel{
		models.LabelVeryNegative, models.LabelNegative, models.LabelNeutral,
		models.LabelPositive, models.LabelVeryPositive, models.LabelPositive, models.LabelNegative,
	}
	var events []models.SentimentEvent
	for i, l := range labels {
		events = append(events, event(string(rune('a'+i)), l, 0, 0))
	}

	row := ComputeDaily(1, testDay, events)
	sum := row.PositivePct + row.NegativePct + row.NeutralPct
	if math.Abs(sum-1) > 0.001 {
		t.Errorf("percentages should sum to 1, got %v", sum)
	}
}

func TestComputeDaily_Pure(t *testing.T) {
	events := []models.SentimentEvent{
		event("a", models.LabelNegative, -0.5, 60, "billing"),
		event("b", models.LabelPositive, 0.5, 10, "delivery"),
	}
	first := ComputeDaily(1, testDay, events)
	second := ComputeDaily(1, testDay, events)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ComputeDaily should be deterministic:\n%+v\n%+v", first, second)
	}
}

func TestAggregator_RecomputeBucketIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	agg := NewAggregator(db, nil)
	ctx := context.Background()

	for i, topic := range []string{"refund", "refund", "delivery"} {
		item := complaintItem(1, uint(i+1), "", "Problem")
		item.OccurredAt = testDay.Add(time.Duration(i+1) * time.Hour)
		if _, _, err := store.Ingest(ctx, item, classification(negativeResult(topic))); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	// Next day's event must not leak into the bucket.
	late := complaintItem(1, 99, "", "Problem")
	late.OccurredAt = testDay.Add(24 * time.Hour)
	if _, _, err := store.Ingest(ctx, late, classification(negativeResult("other"))); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := agg.RecomputeBucket(ctx, 1, testDay.Add(12*time.Hour)); err != nil {
			t.Fatalf("recompute %d: %v", i, err)
		}
	}

	var rows []models.BrandSentimentDaily
	db.Where("brand_id = ?", 1).Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("expected one rollup row, got %d", len(rows))
	}
	row := rows[0]
	if row.Count != 3 {
		t.Errorf("count = %d, want 3", row.Count)
	}
	if !reflect.DeepEqual([]string(row.TopTopics), []string{"refund", "delivery"}) {
		t.Errorf("top topics = %v", row.TopTopics)
	}

	stored, err := agg.GetDaily(ctx, 1, testDay)
	if err != nil {
		t.Fatalf("get daily: %v", err)
	}
	if stored.NegativePct != 1 {
		t.Errorf("negative pct = %v, want 1", stored.NegativePct)
	}
}

func TestAggregator_RecomputeBucketIsByteIdentical(t *testing.T) {
	db := newTestDB(t)
	store := NewEventStore(db)
	agg := NewAggregator(db, nil)
	ctx := context.Background()

	for i, topic := range []string{"billing", "delivery"} {
		item := complaintItem(1, uint(i+1), "", "Problem")
		item.OccurredAt = testDay.Add(time.Duration(i+2) * time.Hour)
		if _, _, err := store.Ingest(ctx, item, classification(negativeResult(topic))); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	first, err := agg.RecomputeBucket(ctx, 1, testDay)
	if err != nil {
		t.Fatalf("first recompute: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := agg.RecomputeBucket(ctx, 1, testDay)
	if err != nil {
		t.Fatalf("second recompute: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Errorf("recompute output differs:\n%s\n%s", a, b)
	}
	if want := testDay.Add(3 * time.Hour); !second.UpdatedAt.Equal(want) {
		t.Errorf("updated_at = %v, want newest event %v", second.UpdatedAt, want)
	}

	stored, err := agg.GetDaily(ctx, 1, testDay)
	if err != nil {
		t.Fatalf("get daily: %v", err)
	}
	if !stored.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("stored updated_at = %v, want %v", stored.UpdatedAt, second.UpdatedAt)
	}
}

func TestBucketKey(t *testing.T) {
	if got := BucketKey(7, testDay.Add(23*time.Hour)); got != "7:2026-03-14" {
		t.Errorf("BucketKey() = %q", got)
	}
}
