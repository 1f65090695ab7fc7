package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/huangang/brandsentry/internal/config"
	"github.com/huangang/brandsentry/internal/metrics"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const backfillLockName = "sentiment_backfill"

// BackfillOptions narrows a run. Zero values mean every brand, all history
// and no cap.
type BackfillOptions struct {
	BrandID  uint      `json:"brand_id"`
	MaxItems int       `json:"max_items"`
	Since    time.Time `json:"since"` // only records created at or after this instant
}

// WindowOptions returns options limited to records created within window
// of now. A non-positive window leaves the run unbounded.
func WindowOptions(window time.Duration, now time.Time) BackfillOptions {
	var opts BackfillOptions
	if window > 0 {
		opts.Since = now.UTC().Add(-window)
	}
	return opts
}

// BackfillReport summarizes one run.
type BackfillReport struct {
	Scanned     int64     `json:"scanned"`
	Ingested    int64     `json:"ingested"`
	Duplicates  int64     `json:"duplicates"`
	Empty       int64     `json:"empty"`
	Failed      int64     `json:"failed"`
	Interrupted bool      `json:"interrupted"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// BackfillService replays complaints and ratings that have no sentiment event
// through the pipeline. Every item goes through the same idempotent Process,
// so a run can be cancelled and restarted at any point.
type BackfillService struct {
	db        *gorm.DB
	processor Processor
	locks     *SchedulerLockService
	batchSize int
	workers   int
	lockTTL   time.Duration
}

func NewBackfillService(db *gorm.DB, processor Processor, cfg config.SentimentConfig) *BackfillService {
	s := &BackfillService{
		db:        db,
		processor: processor,
		locks:     NewSchedulerLockService(db),
		batchSize: cfg.BackfillBatchSize,
		workers:   cfg.BackfillConcurrency,
		lockTTL:   cfg.BackfillLockTTL,
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	if s.lockTTL <= 0 {
		s.lockTTL = 2 * time.Hour
	}
	return s
}

type backfillCounters struct {
	scanned, ingested, duplicates, empty, failed atomic.Int64
}

// Run processes every pending complaint, then every pending rating. It returns
// ErrJobRunning when another run holds the lease.
func (s *BackfillService) Run(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	release, err := s.locks.Acquire(ctx, backfillLockName, "global", s.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.run(ctx, opts)
}

// Start takes the lease and runs in the background until done or ctx ends.
// It returns ErrJobRunning synchronously so callers can report the conflict.
func (s *BackfillService) Start(ctx context.Context, opts BackfillOptions) error {
	release, err := s.locks.Acquire(ctx, backfillLockName, "global", s.lockTTL)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		if _, err := s.run(ctx, opts); err != nil {
			log := logger.Component("backfill")
			log.Error().Err(err).Msg("backfill failed")
			LogError("sentiment", "backfill", err.Error(), nil, opts)
		}
	}()
	return nil
}

func (s *BackfillService) run(ctx context.Context, opts BackfillOptions) (*BackfillReport, error) {
	log := logger.Component("backfill")
	report := &BackfillReport{StartedAt: time.Now()}
	var c backfillCounters

	log.Info().Uint("brand_id", opts.BrandID).Int("batch_size", s.batchSize).Int("workers", s.workers).Msg("backfill started")

	err := s.scan(ctx, models.SourceComplaint, opts, &c)
	if err == nil {
		err = s.scan(ctx, models.SourceRating, opts, &c)
	}

	report.Scanned = c.scanned.Load()
	report.Ingested = c.ingested.Load()
	report.Duplicates = c.duplicates.Load()
	report.Empty = c.empty.Load()
	report.Failed = c.failed.Load()
	report.FinishedAt = time.Now()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		report.Interrupted = true
		err = nil
	}

	log.Info().
		Int64("scanned", report.Scanned).
		Int64("ingested", report.Ingested).
		Int64("duplicates", report.Duplicates).
		Int64("empty", report.Empty).
		Int64("failed", report.Failed).
		Bool("interrupted", report.Interrupted).
		Msg("backfill finished")
	LogInfo("sentiment", "backfill", fmt.Sprintf("backfill scanned %d items, ingested %d, failed %d", report.Scanned, report.Ingested, report.Failed), nil, report)

	return report, err
}

func (s *BackfillService) scan(ctx context.Context, sourceType models.SourceType, opts BackfillOptions, c *backfillCounters) error {
	var cursor uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		limit := s.batchSize
		if opts.MaxItems > 0 {
			remaining := int64(opts.MaxItems) - c.scanned.Load()
			if remaining <= 0 {
				return nil
			}
			if remaining < int64(limit) {
				limit = int(remaining)
			}
		}

		items, last, err := s.pending(ctx, sourceType, opts, cursor, limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		cursor = last

		if err := s.processBatch(ctx, items, c); err != nil {
			return err
		}
	}
}

func (s *BackfillService) processBatch(ctx context.Context, items []*FeedbackItem, c *backfillCounters) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		item := item
		g.Go(func() error {
			c.scanned.Add(1)
			metrics.BackfillItems.WithLabelValues(string(item.SourceType)).Inc()

			res, err := s.processor.Process(gctx, item)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.failed.Add(1)
				return nil
			}
			switch res.Outcome {
			case OutcomeIngested:
				c.ingested.Add(1)
			case OutcomeSkippedExists:
				c.duplicates.Add(1)
			case OutcomeSkippedEmpty:
				c.empty.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// pending returns up to limit source records after cursor that have no event,
// in id order, and the highest id seen. Records whose canonical text is empty
// never get an event, so opts.Since is what keeps them from being rescanned
// forever by scheduled runs.
func (s *BackfillService) pending(ctx context.Context, sourceType models.SourceType, opts BackfillOptions, cursor uint, limit int) ([]*FeedbackItem, uint, error) {
	db := s.db.WithContext(ctx)
	var items []*FeedbackItem

	switch sourceType {
	case models.SourceComplaint:
		query := db.Model(&models.Complaint{}).
			Joins("LEFT JOIN sentiment_events ON sentiment_events.source_type = ? AND sentiment_events.source_id = complaints.id", models.SourceComplaint).
			Where("sentiment_events.id IS NULL AND complaints.id > ?", cursor)
		if opts.BrandID != 0 {
			query = query.Where("complaints.brand_id = ?", opts.BrandID)
		}
		if !opts.Since.IsZero() {
			query = query.Where("complaints.created_at >= ?", opts.Since.UTC())
		}
		var rows []models.Complaint
		if err := query.Order("complaints.id ASC").Limit(limit).Find(&rows).Error; err != nil {
			return nil, 0, fmt.Errorf("scan pending complaints: %w", err)
		}
		for i := range rows {
			items = append(items, ComplaintFeedback(&rows[i]))
		}
	case models.SourceRating:
		query := db.Model(&models.Rating{}).
			Joins("LEFT JOIN sentiment_events ON sentiment_events.source_type = ? AND sentiment_events.source_id = ratings.id", models.SourceRating).
			Where("sentiment_events.id IS NULL AND ratings.id > ?", cursor)
		if opts.BrandID != 0 {
			query = query.Where("ratings.brand_id = ?", opts.BrandID)
		}
		if !opts.Since.IsZero() {
			query = query.Where("ratings.created_at >= ?", opts.Since.UTC())
		}
		var rows []models.Rating
		if err := query.Order("ratings.id ASC").Limit(limit).Find(&rows).Error; err != nil {
			return nil, 0, fmt.Errorf("scan pending ratings: %w", err)
		}
		for i := range rows {
			items = append(items, RatingFeedback(&rows[i]))
		}
	default:
		return nil, 0, fmt.Errorf("unknown source type %q", sourceType)
	}

	var last uint
	for _, item := range items {
		if item.SourceID > last {
			last = item.SourceID
		}
	}
	return items, last, nil
}
