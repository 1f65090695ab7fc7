package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/huangang/brandsentry/internal/metrics"
	"github.com/huangang/brandsentry/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxTopTopics caps BrandSentimentDaily.TopTopics.
const MaxTopTopics = 8

// ComputeDaily folds the events of one bucket into its rollup. events must be
// in (created_at, id) order for the topic tie-break to be stable. UpdatedAt is
// the created_at of the newest event, or the day itself for an empty bucket, so
// the row depends on nothing but the events.
func ComputeDaily(brandID uint, day time.Time, events []models.SentimentEvent) models.BrandSentimentDaily {
	row := models.BrandSentimentDaily{
		BrandID:   brandID,
		Day:       BucketDay(day),
		Count:     len(events),
		TopTopics: datatypes.JSONSlice[string]{},
		UpdatedAt: BucketDay(day),
	}
	if len(events) == 0 {
		return row
	}

	var scoreSum, urgencySum float64
	var starsSum, starsCount int
	var positive, negative, neutral int
	freq := make(map[string]int)
	var order []string

	for _, e := range events {
		if at := e.CreatedAt.UTC(); at.After(row.UpdatedAt) {
			row.UpdatedAt = at
		}
		scoreSum += e.Score
		urgencySum += float64(e.Urgency)
		if e.Stars != nil {
			starsSum += *e.Stars
			starsCount++
		}
		switch {
		case e.Label.IsPositive():
			positive++
		case e.Label.IsNegative():
			negative++
		case e.Label == models.LabelNeutral:
			neutral++
		}
		for _, topic := range e.Topics {
			if _, ok := freq[topic]; !ok {
				order = append(order, topic)
			}
			freq[topic]++
		}
	}

	n := float64(len(events))
	row.AvgScore = scoreSum / n
	row.AvgUrgency = urgencySum / n
	if starsCount > 0 {
		avg := float64(starsSum) / float64(starsCount)
		row.AvgStars = &avg
	}
	row.PositivePct = round4(float64(positive) / n)
	row.NegativePct = round4(float64(negative) / n)
	row.NeutralPct = round4(float64(neutral) / n)
	row.TopTopics = rankTopics(order, freq, MaxTopTopics)
	return row
}

// rankTopics sorts by descending frequency; sort.SliceStable keeps first-seen
// order among equal counts.
func rankTopics(order []string, freq map[string]int, limit int) datatypes.JSONSlice[string] {
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return freq[ranked[i]] > freq[ranked[j]]
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return datatypes.JSONSlice[string](ranked)
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

// Aggregator recomputes and persists daily rollups.
type Aggregator struct {
	db     *gorm.DB
	locker BucketLocker
}

func NewAggregator(db *gorm.DB, locker BucketLocker) *Aggregator {
	if locker == nil {
		locker = NewLocalBucketLocker()
	}
	return &Aggregator{db: db, locker: locker}
}

// BucketKey names the (brand, day) bucket for locks and debouncing.
func BucketKey(brandID uint, day time.Time) string {
	return fmt.Sprintf("%d:%s", brandID, BucketDay(day).Format("2006-01-02"))
}

// RecomputeBucket rebuilds the rollup of (brandID, day) from every stored event
// in [day, day+24h) and overwrites the stored row. Calls for the same bucket
// are serialized by the locker.
func (a *Aggregator) RecomputeBucket(ctx context.Context, brandID uint, day time.Time) (*models.BrandSentimentDaily, error) {
	day = BucketDay(day)
	start := time.Now()

	unlock, err := a.locker.Lock(ctx, BucketKey(brandID, day))
	if err != nil {
		return nil, fmt.Errorf("lock bucket: %w", err)
	}
	defer unlock()

	var events []models.SentimentEvent
	err = a.db.WithContext(ctx).
		Where("brand_id = ? AND created_at >= ? AND created_at < ?", brandID, day, day.Add(24*time.Hour)).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load bucket events: %w", err)
	}

	row := ComputeDaily(brandID, day, events)

	err = a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "brand_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"count",
			"avg_score",
			"avg_urgency",
			"avg_stars",
			"positive_pct",
			"negative_pct",
			"neutral_pct",
			"top_topics",
			"updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upsert daily rollup: %w", err)
	}

	metrics.RecomputeTotal.WithLabelValues("ok").Inc()
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	return &row, nil
}

// GetDaily reads the stored rollup of a bucket.
func (a *Aggregator) GetDaily(ctx context.Context, brandID uint, day time.Time) (*models.BrandSentimentDaily, error) {
	var row models.BrandSentimentDaily
	err := a.db.WithContext(ctx).
		Where("brand_id = ? AND day = ?", brandID, BucketDay(day)).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
