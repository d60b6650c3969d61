package availability

import (
	"fmt"
	"time"

	"bookingcore/internal/domain"
)

type CheckAvailabilityRequest struct {
	ServiceID    *int64    `form:"service_id"`
	ResourceID   *int64    `form:"resource_id"`
	SlotID       *int64    `form:"slot_id"`
	Start        time.Time `form:"start" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	End          time.Time `form:"end" time_format:"2006-01-02T15:04:05Z07:00" binding:"required"`
	Participants int       `form:"participants,default=1" binding:"min=1"`
}

// Unit resolves the target; service and resource are mutually exclusive.
func (r CheckAvailabilityRequest) Unit() (domain.UnitRef, error) {
	switch {
	case r.ServiceID != nil && r.ResourceID != nil:
		return domain.UnitRef{}, fmt.Errorf("%w: service_id and resource_id are mutually exclusive", domain.ErrValidation)
	case r.ServiceID != nil:
		return domain.UnitRef{Kind: domain.UnitService, ID: *r.ServiceID}, nil
	case r.ResourceID != nil:
		return domain.UnitRef{Kind: domain.UnitResource, ID: *r.ResourceID}, nil
	}
	return domain.UnitRef{}, fmt.Errorf("%w: service_id or resource_id is required", domain.ErrValidation)
}

type CreateBlockingWindowRequest struct {
	BusinessID *int64    `json:"business_id"`
	ServiceID  *int64    `json:"service_id"`
	ResourceID *int64    `json:"resource_id"`
	Start      time.Time `json:"start" binding:"required"`
	End        time.Time `json:"end" binding:"required"`
	Reason     string    `json:"reason" validate:"max=255"`
	Kind       string    `json:"block_type" validate:"omitempty,oneof=maintenance holiday private_event other"`
}
