package domain

import "time"

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewHidden   ReviewStatus = "hidden"
)

func (s ReviewStatus) IsValid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected, ReviewHidden:
		return true
	}
	return false
}

type Review struct {
	ID         int64        `json:"id"`
	BookingID  int64        `json:"booking_id"`
	UserID     int64        `json:"user_id"`
	BusinessID int64        `json:"business_id"`
	Rating     int          `json:"rating"`
	Comment    string       `json:"comment,omitempty"`
	Status     ReviewStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// RatingSummary is derived from approved reviews and can always be rebuilt.
type RatingSummary struct {
	BusinessID    int64     `json:"business_id"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int       `json:"review_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}
