package domain

import "time"

const (
	ReasonBookingCreated   = "Booking created"
	ReasonBookingCancelled = "Booking cancelled"
)

// HistoryEntry records one status change. OldStatus is nil for the
// creation entry.
type HistoryEntry struct {
	ID        int64          `json:"id"`
	BookingID int64          `json:"booking_id"`
	OldStatus *BookingStatus `json:"old_status"`
	NewStatus BookingStatus  `json:"new_status"`
	ChangedBy int64          `json:"changed_by"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
