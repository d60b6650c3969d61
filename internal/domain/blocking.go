package domain

import "time"

type BlockKind string

const (
	BlockMaintenance  BlockKind = "maintenance"
	BlockHoliday      BlockKind = "holiday"
	BlockPrivateEvent BlockKind = "private_event"
	BlockOther        BlockKind = "other"
)

func (k BlockKind) IsValid() bool {
	switch k {
	case BlockMaintenance, BlockHoliday, BlockPrivateEvent, BlockOther:
		return true
	}
	return false
}

// BlockingWindow makes a business, service or resource unavailable for a
// period regardless of spare capacity. Exactly one scope id is expected.
type BlockingWindow struct {
	ID         int64     `json:"id"`
	BusinessID *int64    `json:"business_id,omitempty"`
	ServiceID  *int64    `json:"service_id,omitempty"`
	ResourceID *int64    `json:"resource_id,omitempty"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Reason     string    `json:"reason,omitempty"`
	Kind       BlockKind `json:"kind"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}
