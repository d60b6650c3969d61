package availability

import (
	"context"
	"fmt"

	"bookingcore/internal/domain"
	"bookingcore/internal/repository"
)

type Service struct {
	checker *Checker
	blocks  *repository.BlockingRepository
}

func NewService(checker *Checker, blocks *repository.BlockingRepository) *Service {
	return &Service{checker: checker, blocks: blocks}
}

// CheckAvailability is the read-only query. The answer can be stale by the
// time a booking is attempted; CreateBooking re-checks inside its
// transaction.
func (s *Service) CheckAvailability(ctx context.Context, req CheckAvailabilityRequest) (*Result, error) {
	unit, err := req.Unit()
	if err != nil {
		return nil, err
	}
	return s.checker.Check(ctx, nil, Request{
		Unit:         unit,
		SlotID:       req.SlotID,
		Window:       domain.NewTimeWindow(req.Start, req.End),
		Participants: req.Participants,
	})
}

func (s *Service) CreateBlockingWindow(ctx context.Context, actorID int64, req CreateBlockingWindowRequest) (*domain.BlockingWindow, error) {
	scopes := 0
	for _, id := range []*int64{req.BusinessID, req.ServiceID, req.ResourceID} {
		if id != nil {
			scopes++
		}
	}
	if scopes != 1 {
		return nil, fmt.Errorf("%w: exactly one of business_id, service_id, resource_id is required", domain.ErrValidation)
	}

	w := domain.NewTimeWindow(req.Start, req.End)
	if !w.Valid() {
		return nil, fmt.Errorf("%w: end must be after start", domain.ErrValidation)
	}

	kind := domain.BlockKind(req.Kind)
	if kind == "" {
		kind = domain.BlockOther
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown block type %q", domain.ErrValidation, req.Kind)
	}

	bw := &domain.BlockingWindow{
		BusinessID: req.BusinessID,
		ServiceID:  req.ServiceID,
		ResourceID: req.ResourceID,
		StartAt:    w.Start,
		EndAt:      w.End,
		Reason:     req.Reason,
		Kind:       kind,
		CreatedBy:  actorID,
	}
	if err := s.blocks.Create(ctx, bw); err != nil {
		return nil, err
	}
	return bw, nil
}
