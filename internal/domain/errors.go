package domain

import "errors"

var (
	ErrValidation                = errors.New("validation error")
	ErrNotFound                  = errors.New("not found")
	ErrForbidden                 = errors.New("forbidden")
	ErrBlocked                   = errors.New("unit is blocked for the requested window")
	ErrCapacityExceeded          = errors.New("capacity exceeded")
	ErrContention                = errors.New("too much contention, retry later")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrReferenceGenerationFailed = errors.New("could not generate a unique booking reference")

	// ErrWriteConflict is a lost optimistic race. It never leaves the
	// retry loop; callers see ErrContention once attempts run out.
	ErrWriteConflict = errors.New("write conflict")
	// ErrNotReserved means a release found nothing to give back.
	ErrNotReserved = errors.New("capacity was not reserved")
)
