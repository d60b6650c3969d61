package events

import (
	"context"
	"time"
)

// JSONPublisher is satisfied by *Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type BookingCompleted struct {
	BookingID   int64     `json:"booking_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// PaymentSignal hands completed bookings to the payment service over the
// message bus.
type PaymentSignal struct {
	pub JSONPublisher
	now func() time.Time
}

func NewPaymentSignal(pub JSONPublisher) *PaymentSignal {
	return &PaymentSignal{pub: pub, now: time.Now}
}

func (s *PaymentSignal) OnBookingCompleted(ctx context.Context, bookingID int64) error {
	return s.pub.PublishJSON(ctx, RoutingBookingCompleted, BookingCompleted{
		BookingID:   bookingID,
		CompletedAt: s.now().UTC(),
	})
}

// NopPaymentSignal is used when no broker is configured.
type NopPaymentSignal struct{}

func (NopPaymentSignal) OnBookingCompleted(context.Context, int64) error { return nil }
