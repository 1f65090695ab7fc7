package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/brandsentry/internal/services"
	"github.com/huangang/brandsentry/pkg/response"
)

type TrustScoreHandler struct {
	trustService *services.TrustScoreService
}

func NewTrustScoreHandler(trustService *services.TrustScoreService) *TrustScoreHandler {
	return &TrustScoreHandler{trustService: trustService}
}

func (h *TrustScoreHandler) GetBrand(c *gin.Context) {
	brandID, ok := uintParam(c, "id")
	if !ok {
		response.BadRequest(c, "invalid brand id")
		return
	}

	score, err := h.trustService.ForBrand(c.Request.Context(), brandID)
	if err != nil {
		response.ServerError(c, "failed to compute trust score: "+err.Error())
		return
	}
	response.Success(c, score)
}

func (h *TrustScoreHandler) GetPlatform(c *gin.Context) {
	score, err := h.trustService.Platform(c.Request.Context())
	if err != nil {
		response.ServerError(c, "failed to compute platform trust score: "+err.Error())
		return
	}
	response.Success(c, score)
}
