package booking

import (
	"context"

	"bookingcore/internal/domain"
)

// UserDirectory is the identity collaborator.
type UserDirectory interface {
	IsActive(ctx context.Context, userID int64) (bool, error)
}

// Catalog describes bookable units. Read only.
type Catalog interface {
	UnitDefinition(ctx context.Context, unit domain.UnitRef) (*domain.UnitDefinition, error)
}

// PaymentSignaler is told about completed bookings after commit. It must not
// block for long; failures are logged and never undo the transition.
type PaymentSignaler interface {
	OnBookingCompleted(ctx context.Context, bookingID int64) error
}
