package review

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookingcore/internal/domain"
	"bookingcore/internal/pkg/response"
	"bookingcore/internal/repository"
)

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotEligible):
		response.Error(c, http.StatusForbidden, "REVIEW_NOT_ALLOWED", "You can review only your own completed booking")
	case errors.Is(err, repository.ErrDuplicateReview):
		response.Error(c, http.StatusConflict, "CONFLICT", "This booking already has a review")
	case errors.Is(err, domain.ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Not allowed to change this review")
	case errors.Is(err, domain.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Review or booking not found")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Internal error")
	}
}
