package review

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookingcore/internal/domain"
	"bookingcore/internal/pkg/response"
	"bookingcore/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	if public != nil {
		public.GET("/businesses/:id/reviews", h.ListByBusiness)
	}

	if protected != nil {
		protected.POST("/reviews", h.Create)
		protected.PATCH("/reviews/:id/status", h.SetStatus)
		protected.PATCH("/reviews/:id/rating", h.UpdateRating)
		protected.DELETE("/reviews/:id", h.Delete)
	}
}

// Create writes a pending review for a completed booking.
// @Summary		Write a review
// @Tags		Reviews
// @Security	BearerAuth
// @Param		request	body	CreateReviewRequest	true	"booking_id, rating, comment"
// @Success		201	{object}	map[string]interface{}
// @Failure		400	{object}	map[string]interface{}
// @Failure		403	{object}	map[string]interface{}	"booking not completed or not yours"
// @Failure		409	{object}	map[string]interface{}	"review already exists"
// @Router		/reviews [POST]
func (h *Handler) Create(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", errs)
		return
	}

	rv, err := h.svc.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, rv)
}

// SetStatus moderates a review.
// @Summary		Moderate a review
// @Tags		Reviews
// @Security	BearerAuth
// @Param		id		path	int					true	"review id"
// @Param		request	body	SetStatusRequest	true	"pending, approved, rejected or hidden"
// @Router		/reviews/{id}/status [PATCH]
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := reviewID(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", errs)
		return
	}

	rv, err := h.svc.SetStatus(c.Request.Context(), actorFrom(c), id, domain.ReviewStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, rv)
}

func (h *Handler) UpdateRating(c *gin.Context) {
	id, ok := reviewID(c)
	if !ok {
		return
	}

	var req UpdateRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", errs)
		return
	}

	rv, err := h.svc.UpdateRating(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, rv)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := reviewID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": id})
}

// ListByBusiness returns approved reviews only.
// @Summary		Business reviews
// @Tags		Reviews
// @Param		id	path	int	true	"business id"
// @Router		/businesses/{id}/reviews [GET]
func (h *Handler) ListByBusiness(c *gin.Context) {
	businessID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || businessID <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid business ID")
		return
	}

	items, err := h.svc.ListApproved(c.Request.Context(), businessID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reviews": items})
}

func reviewID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid review ID")
		return 0, false
	}
	return id, true
}

func actorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:   c.GetInt64("user_id"),
		Role: domain.UserRole(c.GetString("role")),
	}
}
