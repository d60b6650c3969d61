package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no_show"
)

// validTransitions is the booking lifecycle. Any edge not listed is rejected.
var validTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCancelled, BookingNoShow},
	BookingInProgress: {BookingCompleted, BookingNoShow},
	BookingCompleted:  {},
	BookingCancelled:  {},
	BookingNoShow:     {},
}

// ActiveBookingStatuses hold capacity.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingConfirmed, BookingInProgress}

func (s BookingStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

func (s BookingStatus) IsActive() bool {
	for _, a := range ActiveBookingStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// ReleasesCapacity reports whether entering s gives the booking's
// participants back to the ledger.
func (s BookingStatus) ReleasesCapacity() bool {
	return s == BookingCancelled || s == BookingNoShow
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown booking status %q", ErrValidation, s)
	}
	return status, nil
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentFailed   PaymentStatus = "failed"
)

const DefaultCurrency = "USD"

type Booking struct {
	ID               int64         `json:"id"`
	Reference        string        `json:"reference"`
	ConfirmationCode string        `json:"confirmation_code"`
	UserID           int64         `json:"user_id"`
	BusinessID       int64         `json:"business_id"`
	ServiceID        *int64        `json:"service_id,omitempty"`
	ResourceID       *int64        `json:"resource_id,omitempty"`
	SlotID           *int64        `json:"slot_id,omitempty"`
	StartAt          time.Time     `json:"start_at"`
	EndAt            time.Time     `json:"end_at"`
	Participants     int           `json:"participants"`
	TotalAmount      float64       `json:"total_amount"`
	DepositAmount    float64       `json:"deposit_amount"`
	TaxAmount        float64       `json:"tax_amount"`
	DiscountAmount   float64       `json:"discount_amount"`
	FinalAmount      float64       `json:"final_amount"`
	Currency         string        `json:"currency"`
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	SpecialRequests  string        `json:"special_requests,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
	CancelledBy      *int64        `json:"cancelled_by,omitempty"`
	CancelReason     string        `json:"cancellation_reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (b *Booking) Window() TimeWindow {
	return TimeWindow{Start: b.StartAt, End: b.EndAt}
}

// Unit returns the capacity unit the booking draws from.
func (b *Booking) Unit() UnitRef {
	if b.ResourceID != nil {
		return UnitRef{Kind: UnitResource, ID: *b.ResourceID}
	}
	var id int64
	if b.ServiceID != nil {
		id = *b.ServiceID
	}
	return UnitRef{Kind: UnitService, ID: id}
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	Status *BookingStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
