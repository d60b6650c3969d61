package review

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"bookingcore/internal/domain"
	"bookingcore/internal/repository"
)

var (
	ErrNotEligible = fmt.Errorf("%w: only the customer of a completed booking can review it", domain.ErrValidation)
	ErrBadRating   = fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrValidation)
)

// BookingGate answers whether a user may review a booking.
type BookingGate interface {
	BookingIsCompleted(ctx context.Context, bookingID, userID int64) (*domain.Booking, bool, error)
}

type Recomputer interface {
	Recompute(ctx context.Context, businessID int64) (*domain.RatingSummary, error)
}

type Service struct {
	reviews *repository.ReviewRepository
	gate    BookingGate
	ratings Recomputer
}

func NewService(reviews *repository.ReviewRepository, gate BookingGate, ratings Recomputer) *Service {
	return &Service{reviews: reviews, gate: gate, ratings: ratings}
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, req CreateReviewRequest) (*domain.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrBadRating
	}

	b, ok, err := s.gate.BookingIsCompleted(ctx, req.BookingID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotEligible
	}
	// The unique index on booking_id still settles concurrent writers.
	taken, err := s.reviews.ExistsForBooking(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, repository.ErrDuplicateReview
	}

	rv := &domain.Review{
		BookingID:  b.ID,
		UserID:     actor.ID,
		BusinessID: b.BusinessID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Status:     domain.ReviewPending,
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, err
	}

	s.recomputeIfNeeded(ctx, nil, rv)
	return rv, nil
}

// SetStatus moderates a review. Staff only.
func (s *Service) SetStatus(ctx context.Context, actor domain.Actor, id int64, status domain.ReviewStatus) (*domain.Review, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown review status %q", domain.ErrValidation, status)
	}

	before, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.reviews.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	after := *before
	after.Status = status
	s.recomputeIfNeeded(ctx, before, &after)
	return &after, nil
}

func (s *Service) UpdateRating(ctx context.Context, actor domain.Actor, id int64, req UpdateRatingRequest) (*domain.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrBadRating
	}

	before, err := s.ownedReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.reviews.UpdateRating(ctx, id, req.Rating, req.Comment); err != nil {
		return nil, err
	}

	after := *before
	after.Rating = req.Rating
	if req.Comment != nil {
		after.Comment = *req.Comment
	}
	s.recomputeIfNeeded(ctx, before, &after)
	return &after, nil
}

func (s *Service) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	before, err := s.ownedReview(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}

	s.recomputeIfNeeded(ctx, before, nil)
	return nil
}

// ListApproved is the public listing for a business.
func (s *Service) ListApproved(ctx context.Context, businessID int64) ([]domain.Review, error) {
	approved := domain.ReviewApproved
	return s.reviews.ListByBusiness(ctx, businessID, &approved)
}

func (s *Service) ownedReview(ctx context.Context, actor domain.Actor, id int64) (*domain.Review, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && rv.UserID != actor.ID {
		return nil, domain.ErrForbidden
	}
	return rv, nil
}

// recomputeIfNeeded runs after the review write has landed. A failure is
// logged and left to the reconcile job.
func (s *Service) recomputeIfNeeded(ctx context.Context, before, after *domain.Review) {
	if !needsRecompute(before, after) {
		return
	}

	var businessID int64
	if after != nil {
		businessID = after.BusinessID
	} else {
		businessID = before.BusinessID
	}
	if _, err := s.ratings.Recompute(ctx, businessID); err != nil {
		logrus.WithFields(logrus.Fields{
			"business_id": businessID,
			"error":       err.Error(),
		}).Warn("rating recompute failed")
	}
}

// needsRecompute is true when the approved set or an approved rating
// changes. A nil side means the review does not exist on that side.
func needsRecompute(before, after *domain.Review) bool {
	wasApproved := before != nil && before.Status == domain.ReviewApproved
	isApproved := after != nil && after.Status == domain.ReviewApproved
	if wasApproved != isApproved {
		return true
	}
	return wasApproved && before.Rating != after.Rating
}
