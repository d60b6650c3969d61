package booking

import (
	"errors"
	"fmt"
	"net/http"

	"bookingcore/internal/domain"
)

var (
	ErrUserInactive = fmt.Errorf("%w: user is not active", domain.ErrValidation)
	ErrUnknownUnit  = fmt.Errorf("%w: unknown or inactive unit", domain.ErrValidation)
)

type apiError struct {
	status  int
	code    string
	message string
}

// errorTable maps service errors to the HTTP envelope. Order matters:
// the first match wins.
var errorTable = []struct {
	err error
	api apiError
}{
	{domain.ErrValidation, apiError{http.StatusBadRequest, "VALIDATION_ERROR", ""}},
	{domain.ErrNotFound, apiError{http.StatusNotFound, "NOT_FOUND", "Booking not found"}},
	{domain.ErrForbidden, apiError{http.StatusForbidden, "FORBIDDEN", "Not allowed to change this booking"}},
	{domain.ErrBlocked, apiError{http.StatusConflict, "UNIT_BLOCKED", "Unit is blocked for the selected time"}},
	{domain.ErrCapacityExceeded, apiError{http.StatusConflict, "CAPACITY_EXCEEDED", "Not enough capacity for the selected time"}},
	{domain.ErrInvalidTransition, apiError{http.StatusConflict, "INVALID_TRANSITION", ""}},
	{domain.ErrContention, apiError{http.StatusServiceUnavailable, "CONTENTION", "Too many concurrent requests, please retry"}},
	{domain.ErrReferenceGenerationFailed, apiError{http.StatusInternalServerError, "REFERENCE_GENERATION_FAILED", "Could not allocate a booking reference"}},
}

func mapError(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			out := e.api
			if out.message == "" {
				out.message = err.Error()
			}
			return out
		}
	}
	return apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process booking"}
}
