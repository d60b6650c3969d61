package rating

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookingcore/internal/pkg/response"
)

type Handler struct {
	aggregator *Aggregator
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

// RegisterRoutes mounts the public rating read.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/businesses/:id/rating", h.GetRatingSummary)
}

func (h *Handler) GetRatingSummary(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid business id")
		return
	}

	s, err := h.aggregator.Summary(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load rating")
		return
	}
	response.Success(c, http.StatusOK, s)
}
