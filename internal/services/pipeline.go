package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/brandsentry/internal/metrics"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services/classifier"
	"github.com/huangang/brandsentry/pkg/logger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Outcome is the terminal state of one Process call.
type Outcome string

const (
	OutcomeIngested       Outcome = "ingested"
	OutcomeSkippedEmpty   Outcome = "skipped_empty"
	OutcomeSkippedExists  Outcome = "skipped_duplicate"
	OutcomeClassifyFailed Outcome = "classify_failed"
	OutcomeStoreFailed    Outcome = "store_failed"
)

type ProcessResult struct {
	Outcome Outcome                   `json:"outcome"`
	Event   *models.SentimentEvent    `json:"event,omitempty"`
	Alerts  []models.NotificationType `json:"alerts,omitempty"`
}

// Notifier is the pipeline's view of the notification gate.
type Notifier interface {
	NotifyBrand(ctx context.Context, brandID uint, eventType models.NotificationType, payload NotifyPayload) (*NotifyResult, error)
}

// Processor runs one feedback item through the pipeline.
type Processor interface {
	Process(ctx context.Context, item *FeedbackItem) (*ProcessResult, error)
}

// Pipeline wires normalizer, classifier, event store, aggregation and the
// notification gate. Only classification and storage errors are returned;
// recompute and notification failures are logged and the item still counts
// as ingested.
type Pipeline struct {
	store      *EventStore
	classifier classifier.Classifier
	aggregator *Aggregator
	notifier   Notifier
	configs    *SystemConfigService
	usage      *AIUsageService
	limiter    *rate.Limiter
	debouncer  *Debouncer
}

type PipelineOptions struct {
	// RatePerSecond bounds provider calls; 0 disables the limiter.
	RatePerSecond float64
	RateBurst     int
	// RecomputeDebounce coalesces rollup recomputation per bucket; 0 recomputes inline.
	RecomputeDebounce time.Duration
}

func NewPipeline(db *gorm.DB, c classifier.Classifier, aggregator *Aggregator, notifier Notifier, opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		store:      NewEventStore(db),
		classifier: c,
		aggregator: aggregator,
		notifier:   notifier,
		configs:    NewSystemConfigService(db),
		usage:      NewAIUsageService(db),
		debouncer:  NewDebouncer(opts.RecomputeDebounce),
	}
	if opts.RatePerSecond > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return p
}

func (p *Pipeline) Store() *EventStore { return p.store }

func (p *Pipeline) Aggregator() *Aggregator { return p.aggregator }

// Process normalizes, classifies, stores and rolls up one item, then raises
// threshold alerts for the stored event.
func (p *Pipeline) Process(ctx context.Context, item *FeedbackItem) (*ProcessResult, error) {
	log := logger.Component("pipeline")
	source := string(item.SourceType)

	if err := item.Validate(); err != nil {
		metrics.PipelineOutcomes.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}

	text, _ := Normalize(item)
	if text == "" {
		metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeSkippedEmpty)).Inc()
		return &ProcessResult{Outcome: OutcomeSkippedEmpty}, nil
	}

	// Cheap pre-check so replays do not pay for a provider call. The insert
	// below is still conflict-safe on its own.
	exists, err := p.store.Exists(ctx, item.SourceType, item.SourceID)
	if err != nil {
		metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeStoreFailed)).Inc()
		return &ProcessResult{Outcome: OutcomeStoreFailed}, err
	}
	if exists {
		metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeSkippedExists)).Inc()
		return &ProcessResult{Outcome: OutcomeSkippedExists}, nil
	}

	result, err := p.classify(ctx, item, text)
	if err != nil {
		metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeClassifyFailed)).Inc()
		log.Warn().Err(err).Str("source_type", source).Uint("source_id", item.SourceID).Msg("classification failed")
		brandID := item.BrandID
		LogWarning("sentiment", "classify", err.Error(), &brandID, map[string]interface{}{
			"source_type": source,
			"source_id":   item.SourceID,
		})
		return &ProcessResult{Outcome: OutcomeClassifyFailed}, err
	}

	event, skipped, err := p.store.Ingest(ctx, item, result)
	if err != nil {
		metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeStoreFailed)).Inc()
		return &ProcessResult{Outcome: OutcomeStoreFailed}, err
	}
	if skipped {
		metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeSkippedExists)).Inc()
		return &ProcessResult{Outcome: OutcomeSkippedExists}, nil
	}
	metrics.PipelineOutcomes.WithLabelValues(source, string(OutcomeIngested)).Inc()

	p.recompute(ctx, event.BrandID, event.CreatedAt)

	alerts := AlertsFor(event, p.configs.Thresholds())
	for _, alert := range alerts {
		p.raise(ctx, event, alert)
	}

	return &ProcessResult{Outcome: OutcomeIngested, Event: event, Alerts: alerts}, nil
}

func (p *Pipeline) classify(ctx context.Context, item *FeedbackItem, text string) (*classifier.Classification, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("classifier rate limit: %w", err)
		}
	}

	provider, model := "unknown", ""
	if named, ok := p.classifier.(interface {
		Provider() string
		Model() string
	}); ok {
		provider, model = named.Provider(), named.Model()
	}

	start := time.Now()
	c, err := p.classifier.Classify(ctx, text)
	latency := time.Since(start)
	metrics.ClassifyDuration.WithLabelValues(provider).Observe(latency.Seconds())

	brandID, sourceID := item.BrandID, item.SourceID
	usage := &models.AIUsageLog{
		BrandID:    &brandID,
		SourceType: string(item.SourceType),
		SourceID:   &sourceID,
		Provider:   provider,
		Model:      model,
		InputChars: len(text),
		LatencyMs:  latency.Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		kind := "unknown"
		if f, ok := classifier.AsFailure(err); ok {
			kind = string(f.Kind)
		}
		usage.FailureKind = kind
		usage.ErrorMessage = truncateUTF8String(err.Error(), 500)
		metrics.ClassifyFailures.WithLabelValues(provider, kind).Inc()
	} else {
		usage.Provider, usage.Model = c.Provider, c.Model
	}
	p.usage.Record(usage)

	return c, err
}

func (p *Pipeline) recompute(ctx context.Context, brandID uint, at time.Time) {
	run := func(ctx context.Context) {
		if _, err := p.aggregator.RecomputeBucket(ctx, brandID, at); err != nil {
			log := logger.Component("aggregation")
			log.Error().Err(err).Uint("brand_id", brandID).Time("day", BucketDay(at)).Msg("rollup recompute failed")
			id := brandID
			LogError("sentiment", "recompute", err.Error(), &id, map[string]interface{}{"day": BucketDay(at).Format("2006-01-02")})
		}
	}

	if p.debouncer == nil || p.debouncer.delay <= 0 {
		run(ctx)
		return
	}
	p.debouncer.Schedule(BucketKey(brandID, at), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		run(ctx)
	})
}

func (p *Pipeline) raise(ctx context.Context, event *models.SentimentEvent, alert models.NotificationType) {
	if p.notifier == nil {
		return
	}
	payload := NotifyPayload{
		Message: event.Summary,
		Data: map[string]interface{}{
			"event_id":     event.ID,
			"source_type":  event.SourceType,
			"source_id":    event.SourceID,
			"complaint_id": event.ComplaintID,
			"label":        event.Label,
			"score":        event.Score,
			"urgency":      event.Urgency,
		},
	}
	if _, err := p.notifier.NotifyBrand(ctx, event.BrandID, alert, payload); err != nil {
		log := logger.Component("notification")
		log.Error().Err(err).Uint("brand_id", event.BrandID).Str("type", string(alert)).Msg("notify brand failed")
		id := event.BrandID
		LogError("notification", string(alert), err.Error(), &id, map[string]interface{}{"event_id": event.ID})
	}
}

// Flush runs pending debounced recomputations. Called on shutdown.
func (p *Pipeline) Flush() {
	if p.debouncer != nil {
		p.debouncer.Flush()
	}
}

// HandleClassifyTask adapts Process to the queue's handler signature.
// Invalid items are dropped, since retrying them cannot succeed.
func (p *Pipeline) HandleClassifyTask(ctx context.Context, item *FeedbackItem) error {
	_, err := p.Process(ctx, item)
	if err != nil {
		if f, ok := classifier.AsFailure(err); ok && f.Kind == classifier.FailureInput {
			return nil
		}
		if errors.Is(err, ErrInvalidItem) {
			return nil
		}
	}
	return err
}

// AlertsFor applies the threshold policy to a stored event.
func AlertsFor(event *models.SentimentEvent, t Thresholds) []models.NotificationType {
	var alerts []models.NotificationType
	if event.Label.IsNegative() && event.Score <= t.NegativeScore {
		alerts = append(alerts, models.NotifyNegativeSentiment)
	}
	if event.Urgency >= t.Urgency {
		alerts = append(alerts, models.NotifyUrgencyAlert)
	}
	return alerts
}

func truncateUTF8String(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
