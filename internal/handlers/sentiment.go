package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/pkg/response"
)

// SentimentHandler serves the read API over events and daily rollups.
type SentimentHandler struct {
	store      *services.EventStore
	aggregator *services.Aggregator
}

func NewSentimentHandler(store *services.EventStore, aggregator *services.Aggregator) *SentimentHandler {
	return &SentimentHandler{store: store, aggregator: aggregator}
}

// ListEvents returns the newest sentiment events of a brand.
func (h *SentimentHandler) ListEvents(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}

	events, err := h.store.ListRecent(c.Request.Context(), brandID, intQuery(c, "limit", 50))
	if err != nil {
		response.ServerError(c, "failed to list sentiment events: "+err.Error())
		return
	}
	response.Success(c, events)
}

// ListDaily returns the rollups of the last N days.
func (h *SentimentHandler) ListDaily(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}

	rows, err := h.store.ListDaily(c.Request.Context(), brandID, intQuery(c, "days", 30))
	if err != nil {
		response.ServerError(c, "failed to list daily sentiment: "+err.Error())
		return
	}
	response.Success(c, rows)
}

// Recompute rebuilds one bucket from its events.
func (h *SentimentHandler) Recompute(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}
	day, err := dayQuery(c, "day")
	if err != nil {
		response.BadRequest(c, "day must be YYYY-MM-DD")
		return
	}

	row, err := h.aggregator.RecomputeBucket(c.Request.Context(), brandID, day)
	if err != nil {
		response.ServerError(c, "failed to recompute rollup: "+err.Error())
		return
	}
	response.Success(c, row)
}
