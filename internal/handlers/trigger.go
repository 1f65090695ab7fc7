package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/models"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/pkg/response"
)

// TriggerHandler receives record-created hooks from the complaint and rating
// services and hands them to the task queue. The caller's record is already
// committed; a rejected hook is left for the backfill job.
type TriggerHandler struct {
	triggerService *services.TriggerService
}

func NewTriggerHandler(triggerService *services.TriggerService) *TriggerHandler {
	return &TriggerHandler{triggerService: triggerService}
}

func (h *TriggerHandler) ComplaintCreated(c *gin.Context) {
	var complaint models.Complaint
	if err := c.ShouldBindJSON(&complaint); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.dispatch(c, services.ComplaintFeedback(&complaint))
}

func (h *TriggerHandler) RatingCreated(c *gin.Context) {
	var rating models.Rating
	if err := c.ShouldBindJSON(&rating); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	h.dispatch(c, services.RatingFeedback(&rating))
}

func (h *TriggerHandler) dispatch(c *gin.Context, item *services.FeedbackItem) {
	err := h.triggerService.Dispatch(item)
	switch {
	case errors.Is(err, services.ErrInvalidItem):
		response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrQueueFull), errors.Is(err, services.ErrQueueClosed):
		response.Error(c, response.NewUnavailable(err.Error()))
	case err != nil:
		response.ServerError(c, "failed to enqueue feedback: "+err.Error())
	default:
		response.Accepted(c, gin.H{
			"source_type": item.SourceType,
			"source_id":   item.SourceID,
		})
	}
}
