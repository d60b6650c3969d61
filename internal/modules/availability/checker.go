package availability

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bookingcore/internal/domain"
	"bookingcore/internal/repository"
)

type Outcome string

const (
	Available        Outcome = "available"
	Blocked          Outcome = "blocked"
	CapacityExceeded Outcome = "capacity_exceeded"
)

type Request struct {
	Unit         domain.UnitRef
	SlotID       *int64
	Window       domain.TimeWindow
	Participants int
}

type Result struct {
	Outcome   Outcome                 `json:"outcome"`
	Slot      *domain.Slot            `json:"slot,omitempty"`
	Remaining int                     `json:"remaining"`
	Blocks    []domain.BlockingWindow `json:"blocks,omitempty"`
}

// Err maps a negative outcome to its sentinel.
func (r *Result) Err() error {
	switch r.Outcome {
	case Blocked:
		return domain.ErrBlocked
	case CapacityExceeded:
		return domain.ErrCapacityExceeded
	}
	return nil
}

// Checker decides whether a window can be granted. It never writes.
type Checker struct {
	units    *repository.UnitRepository
	blocks   *repository.BlockingRepository
	bookings *repository.BookingRepository
}

func NewChecker(
	units *repository.UnitRepository,
	blocks *repository.BlockingRepository,
	bookings *repository.BookingRepository,
) *Checker {
	return &Checker{units: units, blocks: blocks, bookings: bookings}
}

// Check evaluates unit status, then blocking windows, then capacity. Pass
// the open transaction so the answer is consistent with the reserve that
// follows; nil reads outside any transaction.
func (c *Checker) Check(ctx context.Context, tx *gorm.DB, req Request) (*Result, error) {
	if req.Participants <= 0 {
		return nil, fmt.Errorf("%w: participants must be positive", domain.ErrValidation)
	}
	if !req.Window.Valid() {
		return nil, fmt.Errorf("%w: end must be after start", domain.ErrValidation)
	}

	cc := c
	if tx != nil {
		cc = &Checker{
			units:    c.units.WithTx(tx),
			blocks:   c.blocks.WithTx(tx),
			bookings: c.bookings.WithTx(tx),
		}
	}

	switch req.Unit.Kind {
	case domain.UnitResource:
		return cc.checkResource(ctx, req)
	case domain.UnitService:
		return cc.checkService(ctx, req)
	}
	return nil, fmt.Errorf("%w: unknown unit kind %q", domain.ErrValidation, req.Unit.Kind)
}

func (c *Checker) checkResource(ctx context.Context, req Request) (*Result, error) {
	res, err := c.units.GetResource(ctx, req.Unit.ID)
	if err != nil {
		return nil, err
	}
	if !res.IsActive || res.Status != domain.UnitAvailable {
		return &Result{Outcome: Blocked}, nil
	}

	blocks, err := c.blocks.FindOverlapping(ctx, repository.BlockScope{
		BusinessID: res.BusinessID,
		ResourceID: res.ID,
	}, req.Window)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return &Result{Outcome: Blocked, Blocks: blocks}, nil
	}

	used, err := c.bookings.PeakActiveParticipants(ctx, res.ID, req.Window)
	if err != nil {
		return nil, err
	}
	remaining := res.Capacity - used
	if remaining < req.Participants {
		return &Result{Outcome: CapacityExceeded, Remaining: max(remaining, 0)}, nil
	}
	return &Result{Outcome: Available, Remaining: remaining}, nil
}

func (c *Checker) checkService(ctx context.Context, req Request) (*Result, error) {
	svc, err := c.units.GetService(ctx, req.Unit.ID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return &Result{Outcome: Blocked}, nil
	}

	var chosen *domain.Slot
	if req.SlotID != nil {
		chosen, err = c.units.GetSlot(ctx, *req.SlotID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: slot %d not found", domain.ErrValidation, *req.SlotID)
			}
			return nil, err
		}
		if chosen.ServiceID != svc.ID {
			return nil, fmt.Errorf("%w: slot %d does not belong to service %d", domain.ErrValidation, chosen.ID, svc.ID)
		}
		if !chosen.Window().Covers(req.Window) {
			return nil, fmt.Errorf("%w: slot %d does not cover the requested window", domain.ErrValidation, chosen.ID)
		}
		if chosen.Status != domain.UnitAvailable {
			return &Result{Outcome: Blocked, Slot: chosen}, nil
		}
	}

	blocks, err := c.blocks.FindOverlapping(ctx, repository.BlockScope{
		BusinessID: svc.BusinessID,
		ServiceID:  svc.ID,
	}, req.Window)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return &Result{Outcome: Blocked, Slot: chosen, Blocks: blocks}, nil
	}

	if chosen != nil {
		if chosen.Remaining() < req.Participants {
			return &Result{Outcome: CapacityExceeded, Slot: chosen, Remaining: max(chosen.Remaining(), 0)}, nil
		}
		return &Result{Outcome: Available, Slot: chosen, Remaining: chosen.Remaining()}, nil
	}

	slots, err := c.units.CoveringSlots(ctx, svc.ID, req.Window)
	if err != nil {
		return nil, err
	}

	sawAvailable := false
	best := 0
	for i := range slots {
		s := &slots[i]
		if s.Status != domain.UnitAvailable {
			continue
		}
		sawAvailable = true
		if s.Remaining() >= req.Participants {
			return &Result{Outcome: Available, Slot: s, Remaining: s.Remaining()}, nil
		}
		best = max(best, s.Remaining())
	}

	if len(slots) > 0 && !sawAvailable {
		return &Result{Outcome: Blocked}, nil
	}
	return &Result{Outcome: CapacityExceeded, Remaining: best}, nil
}
