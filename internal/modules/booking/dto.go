package booking

import (
	"fmt"
	"time"

	"bookingcore/internal/domain"
)

type CreateBookingRequest struct {
	UserID          int64     `json:"user_id"`
	ServiceID       *int64    `json:"service_id"`
	ResourceID      *int64    `json:"resource_id"`
	SlotID          *int64    `json:"slot_id"`
	StartAt         time.Time `json:"start_at" binding:"required"`
	EndAt           time.Time `json:"end_at" binding:"required"`
	Participants    int       `json:"participants" binding:"required,min=1"`
	DiscountAmount  float64   `json:"discount_amount" binding:"gte=0"`
	SpecialRequests string    `json:"special_requests" binding:"max=2000"`
}

// Unit resolves the booking target. Exactly one of service_id and
// resource_id must be set.
func (r CreateBookingRequest) Unit() (domain.UnitRef, error) {
	switch {
	case r.ServiceID != nil && r.ResourceID != nil:
		return domain.UnitRef{}, fmt.Errorf("%w: service_id and resource_id are mutually exclusive", domain.ErrValidation)
	case r.ServiceID != nil:
		return domain.UnitRef{Kind: domain.UnitService, ID: *r.ServiceID}, nil
	case r.ResourceID != nil:
		if r.SlotID != nil {
			return domain.UnitRef{}, fmt.Errorf("%w: slot_id only applies to service bookings", domain.ErrValidation)
		}
		return domain.UnitRef{Kind: domain.UnitResource, ID: *r.ResourceID}, nil
	}
	return domain.UnitRef{}, fmt.Errorf("%w: service_id or resource_id is required", domain.ErrValidation)
}

type CreateBookingResponse struct {
	BookingID        int64                `json:"booking_id"`
	Reference        string               `json:"reference"`
	ConfirmationCode string               `json:"confirmation_code"`
	Status           domain.BookingStatus `json:"status"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason" binding:"max=500"`
}

type ListBookingsQuery struct {
	Status string     `form:"status"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int        `form:"limit,default=50" binding:"min=1,max=100"`
	Offset int        `form:"offset,default=0" binding:"min=0"`
}

func (q ListBookingsQuery) Filter() (domain.BookingFilter, error) {
	f := domain.BookingFilter{From: q.From, To: q.To, Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		s, err := domain.ParseBookingStatus(q.Status)
		if err != nil {
			return f, err
		}
		f.Status = &s
	}
	return f, nil
}

// BookingDetails is a booking with its audit trail.
type BookingDetails struct {
	Booking *domain.Booking       `json:"booking"`
	History []domain.HistoryEntry `json:"history"`
}
