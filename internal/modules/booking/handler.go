package booking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bookingcore/internal/domain"
	"bookingcore/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects rg to be behind JWT auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", h.CreateBooking)
	rg.GET("/bookings/:id", h.GetBooking)
	rg.GET("/bookings/:id/history", h.GetHistory)
	rg.POST("/bookings/:id/cancel", h.CancelBooking)
	rg.POST("/bookings/:id/transition", h.TransitionBooking)
	rg.POST("/bookings/:id/complete", h.CompleteBooking)
	rg.GET("/users/:id/bookings", h.ListUserBookings)
	rg.GET("/businesses/:id/bookings", h.ListBusinessBookings)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	actor := actorFrom(c)
	// Staff may book on behalf of a customer; everybody else books for themselves.
	if req.UserID == 0 || !actor.IsStaff() {
		req.UserID = actor.ID
	}

	b, err := h.service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, CreateBookingResponse{
		BookingID:        b.ID,
		Reference:        b.Reference,
		ConfirmationCode: b.ConfirmationCode,
		Status:           b.Status,
	})
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	details, err := h.service.GetBooking(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, details)
}

func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	history, err := h.service.GetHistory(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"history": history})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req CancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	b, err := h.service.CancelBooking(c.Request.Context(), id, actorFrom(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) TransitionBooking(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	target, err := domain.ParseBookingStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	b, err := h.service.TransitionBooking(c.Request.Context(), id, target, actorFrom(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) CompleteBooking(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	b, err := h.service.CompleteBooking(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) ListUserBookings(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}

	items, err := h.service.ListUserBookings(c.Request.Context(), id, actorFrom(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": items})
}

func (h *Handler) ListBusinessBookings(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	f, ok := bindFilter(c)
	if !ok {
		return
	}

	items, err := h.service.ListBusinessBookings(c.Request.Context(), id, actorFrom(c), f)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": items})
}

func bindFilter(c *gin.Context) (domain.BookingFilter, bool) {
	var q ListBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters")
		return domain.BookingFilter{}, false
	}
	f, err := q.Filter()
	if err != nil {
		writeError(c, err)
		return domain.BookingFilter{}, false
	}
	return f, true
}

func actorFrom(c *gin.Context) Actor {
	return Actor{
		ID:   c.GetInt64("user_id"),
		Role: domain.UserRole(c.GetString("role")),
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid id")
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	api := mapError(err)
	if api.status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	response.Error(c, api.status, api.code, api.message)
}
