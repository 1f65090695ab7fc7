package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/pkg/response"
)

type BackfillHandler struct {
	// ctx bounds background runs; it is cancelled on server shutdown.
	ctx             context.Context
	backfillService *services.BackfillService
}

func NewBackfillHandler(ctx context.Context, backfillService *services.BackfillService) *BackfillHandler {
	return &BackfillHandler{ctx: ctx, backfillService: backfillService}
}

// Run starts a backfill. With ?wait=true it blocks and returns the report,
// otherwise the run continues in the background and 202 is returned.
func (h *BackfillHandler) Run(c *gin.Context) {
	var opts services.BackfillOptions
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	if c.Query("wait") == "true" {
		report, err := h.backfillService.Run(c.Request.Context(), opts)
		if errors.Is(err, services.ErrJobRunning) {
			response.Conflict(c, err.Error())
			return
		}
		if err != nil {
			response.ServerError(c, "backfill failed: "+err.Error())
			return
		}
		response.Success(c, report)
		return
	}

	if err := h.backfillService.Start(h.ctx, opts); err != nil {
		if errors.Is(err, services.ErrJobRunning) {
			response.Conflict(c, err.Error())
			return
		}
		response.ServerError(c, "failed to start backfill: "+err.Error())
		return
	}
	response.Accepted(c, gin.H{"started": true})
}
