package services

import (
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/pkg/logger"
)

// TriggerService is the live producer. Record creation hands items to the
// queue and returns; nothing here can fail the caller.
type TriggerService struct {
	queue TaskQueue
}

func NewTriggerService(queue TaskQueue) *TriggerService {
	return &TriggerService{queue: queue}
}

// OnComplaintCreated queues a stored complaint for classification.
func (t *TriggerService) OnComplaintCreated(c *models.Complaint) {
	_ = t.Dispatch(ComplaintFeedback(c))
}

// OnRatingCreated queues a stored rating for classification.
func (t *TriggerService) OnRatingCreated(r *models.Rating) {
	_ = t.Dispatch(RatingFeedback(r))
}

// Dispatch enqueues item and reports whether it was accepted. Rejections are
// logged; the backfill job picks the item up later.
func (t *TriggerService) Dispatch(item *FeedbackItem) error {
	log := logger.Component("trigger")
	if t.queue == nil {
		log.Warn().Uint("source_id", item.SourceID).Msg("no task queue, item left for backfill")
		return ErrQueueClosed
	}
	if err := item.Validate(); err != nil {
		log.Warn().Err(err).Msg("invalid feedback item")
		return err
	}
	if err := t.queue.EnqueueClassify(item); err != nil {
		log.Warn().Err(err).
			Str("source_type", string(item.SourceType)).
			Uint("source_id", item.SourceID).
			Msg("failed to enqueue classify task")
		return err
	}
	return nil
}
