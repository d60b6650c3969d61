package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"bookingcore/internal/database"
	"bookingcore/internal/domain"
	"bookingcore/internal/modules/availability"
	"bookingcore/internal/modules/ledger"
	"bookingcore/internal/modules/reference"
	"bookingcore/internal/pkg/keylock"
	"bookingcore/internal/repository"
)

var tracer = otel.Tracer("bookingcore/booking")

// Actor is whoever asks for a change. Customers may only cancel their own
// bookings; staff and admins drive the rest of the lifecycle.
type Actor = domain.Actor

type Options struct {
	Attempts    int
	TaxRate     float64
	DepositRate float64
	Currency    string
}

type Deps struct {
	Bookings *repository.BookingRepository
	History  *repository.HistoryRepository
	Checker  *availability.Checker
	Ledger   *ledger.Ledger
	Refs     *reference.Generator
	Users    UserDirectory
	Catalog  Catalog
	Payments PaymentSignaler
	Locks    *keylock.Locker
}

type Service struct {
	db       *gorm.DB
	bookings *repository.BookingRepository
	history  *repository.HistoryRepository
	checker  *availability.Checker
	ledger   *ledger.Ledger
	refs     *reference.Generator
	users    UserDirectory
	catalog  Catalog
	payments PaymentSignaler
	locks    *keylock.Locker
	opts     Options
	now      func() time.Time
}

func NewService(db *gorm.DB, deps Deps, opts Options) *Service {
	if opts.Attempts <= 0 {
		opts.Attempts = database.DefaultAttempts
	}
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}
	if deps.Locks == nil {
		deps.Locks = keylock.New()
	}
	if deps.Refs == nil {
		deps.Refs = reference.New()
	}
	return &Service{
		db:       db,
		bookings: deps.Bookings,
		history:  deps.History,
		checker:  deps.Checker,
		ledger:   deps.Ledger,
		refs:     deps.Refs,
		users:    deps.Users,
		catalog:  deps.Catalog,
		payments: deps.Payments,
		locks:    deps.Locks,
		opts:     opts,
		now:      time.Now,
	}
}

// CreateBooking checks, reserves, references, inserts and records history in
// one transaction. Nothing is left behind when any step fails.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer span.End()

	unit, err := req.Unit()
	if err != nil {
		return nil, endSpan(span, err)
	}
	span.SetAttributes(attribute.String("unit", unit.Key()), attribute.Int("participants", req.Participants))

	window := domain.NewTimeWindow(req.StartAt, req.EndAt)
	if !window.Valid() {
		return nil, endSpan(span, fmt.Errorf("%w: end_at must be after start_at", domain.ErrValidation))
	}
	if req.Participants <= 0 {
		return nil, endSpan(span, fmt.Errorf("%w: participants must be at least 1", domain.ErrValidation))
	}
	if req.DiscountAmount < 0 {
		return nil, endSpan(span, fmt.Errorf("%w: discount must not be negative", domain.ErrValidation))
	}

	def, err := s.catalog.UnitDefinition(ctx, unit)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, endSpan(span, ErrUnknownUnit)
		}
		return nil, endSpan(span, err)
	}
	if !def.Active {
		return nil, endSpan(span, ErrUnknownUnit)
	}
	if req.Participants > def.MaxCapacity {
		return nil, endSpan(span, fmt.Errorf("%w: at most %d participants allowed", domain.ErrValidation, def.MaxCapacity))
	}

	active, err := s.users.IsActive(ctx, req.UserID)
	if err != nil {
		return nil, endSpan(span, err)
	}
	if !active {
		return nil, endSpan(span, ErrUserInactive)
	}

	amounts := s.price(def.Price, req.Participants, req.DiscountAmount)

	unlock, err := s.locks.Lock(ctx, unit.Key())
	if err != nil {
		return nil, endSpan(span, err)
	}
	defer unlock()

	var created *domain.Booking
	err = database.WithRetry(ctx, s.opts.Attempts, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res, err := s.checker.Check(ctx, tx, availability.Request{
				Unit:         unit,
				SlotID:       req.SlotID,
				Window:       window,
				Participants: req.Participants,
			})
			if err != nil {
				return err
			}
			if err := res.Err(); err != nil {
				return err
			}

			claim := ledger.Claim{Unit: unit, Window: window, Participants: req.Participants}
			if res.Slot != nil {
				slotID := res.Slot.ID
				claim.SlotID = &slotID
			}
			if err := s.ledger.Reserve(ctx, tx, claim); err != nil {
				return err
			}

			bookings := s.bookings.WithTx(tx)
			ref, err := s.refs.Generate(ctx, bookings.ReferenceExists)
			if err != nil {
				return err
			}

			now := s.now().UTC()
			b := &domain.Booking{
				Reference:        ref,
				ConfirmationCode: s.refs.ConfirmationCode(),
				UserID:           req.UserID,
				BusinessID:       def.BusinessID,
				SlotID:           claim.SlotID,
				StartAt:          window.Start,
				EndAt:            window.End,
				Participants:     req.Participants,
				TotalAmount:      amounts.total,
				DepositAmount:    amounts.deposit,
				TaxAmount:        amounts.tax,
				DiscountAmount:   amounts.discount,
				FinalAmount:      amounts.final,
				Currency:         s.opts.Currency,
				Status:           domain.BookingPending,
				PaymentStatus:    domain.PaymentPending,
				SpecialRequests:  req.SpecialRequests,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if unit.Kind == domain.UnitService {
				b.ServiceID = &unit.ID
			} else {
				b.ResourceID = &unit.ID
			}
			if err := bookings.Create(ctx, b); err != nil {
				return err
			}

			if err := s.history.WithTx(tx).Append(ctx, &domain.HistoryEntry{
				BookingID: b.ID,
				NewStatus: domain.BookingPending,
				ChangedBy: req.UserID,
				Reason:    domain.ReasonBookingCreated,
				CreatedAt: now,
			}); err != nil {
				return err
			}

			created = b
			return nil
		})
	})
	if err != nil {
		return nil, endSpan(span, err)
	}

	span.SetAttributes(attribute.Int64("booking_id", created.ID), attribute.String("reference", created.Reference))
	logrus.WithFields(logrus.Fields{
		"booking_id":   created.ID,
		"reference":    created.Reference,
		"unit":         unit.Key(),
		"participants": created.Participants,
	}).Info("booking created")

	return created, nil
}

// TransitionBooking moves a booking along the lifecycle graph. Entering
// cancelled or no_show releases its capacity exactly once.
func (s *Service) TransitionBooking(ctx context.Context, bookingID int64, target domain.BookingStatus, actor Actor, reason string) (*domain.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.Transition", trace.WithAttributes(
		attribute.Int64("booking_id", bookingID),
		attribute.String("target", string(target)),
	))
	defer span.End()

	if !target.IsValid() {
		return nil, endSpan(span, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, target))
	}

	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, endSpan(span, err)
	}
	if err := authorize(actor, current, target); err != nil {
		return nil, endSpan(span, err)
	}

	unlock, err := s.locks.Lock(ctx, current.Unit().Key())
	if err != nil {
		return nil, endSpan(span, err)
	}
	defer unlock()

	var (
		updated *domain.Booking
		from    domain.BookingStatus
	)
	err = database.WithRetry(ctx, s.opts.Attempts, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			bookings := s.bookings.WithTx(tx)

			b, err := bookings.GetByID(ctx, bookingID)
			if err != nil {
				return err
			}
			if !b.Status.CanTransitionTo(target) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, b.Status, target)
			}

			if target.ReleasesCapacity() {
				if err := s.ledger.Release(ctx, tx, ledger.ClaimFor(b)); err != nil {
					return err
				}
			}

			now := s.now().UTC()
			change := repository.StatusChange{From: b.Status, To: target, At: now}
			if target == domain.BookingCancelled {
				change.CancelledBy = &actor.ID
				change.CancelReason = reason
			}
			if err := bookings.UpdateStatus(ctx, bookingID, change); err != nil {
				return err
			}

			from = b.Status
			if err := s.history.WithTx(tx).Append(ctx, &domain.HistoryEntry{
				BookingID: bookingID,
				OldStatus: &from,
				NewStatus: target,
				ChangedBy: actor.ID,
				Reason:    historyReason(from, target, reason),
				CreatedAt: now,
			}); err != nil {
				return err
			}

			updated, err = bookings.GetByID(ctx, bookingID)
			return err
		})
	})
	if err != nil {
		return nil, endSpan(span, err)
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"from":       from,
		"to":         target,
		"actor_id":   actor.ID,
	}).Info("booking status changed")

	if target == domain.BookingCompleted {
		s.signalCompleted(ctx, bookingID)
	}

	return updated, nil
}

func (s *Service) CancelBooking(ctx context.Context, bookingID int64, actor Actor, reason string) (*domain.Booking, error) {
	return s.TransitionBooking(ctx, bookingID, domain.BookingCancelled, actor, reason)
}

// CompleteBooking closes an in-progress booking and signals the payment
// collaborator.
func (s *Service) CompleteBooking(ctx context.Context, bookingID int64, actor Actor) (*domain.Booking, error) {
	return s.TransitionBooking(ctx, bookingID, domain.BookingCompleted, actor, "")
}

func (s *Service) GetBooking(ctx context.Context, bookingID int64, actor Actor) (*BookingDetails, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && b.UserID != actor.ID {
		return nil, domain.ErrForbidden
	}

	history, err := s.history.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &BookingDetails{Booking: b, History: history}, nil
}

func (s *Service) GetHistory(ctx context.Context, bookingID int64, actor Actor) ([]domain.HistoryEntry, error) {
	details, err := s.GetBooking(ctx, bookingID, actor)
	if err != nil {
		return nil, err
	}
	return details.History, nil
}

func (s *Service) ListUserBookings(ctx context.Context, userID int64, actor Actor, f domain.BookingFilter) ([]domain.Booking, error) {
	if !actor.IsStaff() && userID != actor.ID {
		return nil, domain.ErrForbidden
	}
	return s.bookings.ListByUser(ctx, userID, f)
}

func (s *Service) ListBusinessBookings(ctx context.Context, businessID int64, actor Actor, f domain.BookingFilter) ([]domain.Booking, error) {
	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	return s.bookings.ListByBusiness(ctx, businessID, f)
}

func (s *Service) signalCompleted(ctx context.Context, bookingID int64) {
	if s.payments == nil {
		return
	}
	if err := s.payments.OnBookingCompleted(ctx, bookingID); err != nil {
		logrus.WithFields(logrus.Fields{
			"booking_id": bookingID,
			"error":      err.Error(),
		}).Warn("payment signal failed")
	}
}

type amounts struct {
	total, discount, tax, final, deposit float64
}

func (s *Service) price(unitPrice float64, participants int, discount float64) amounts {
	total := round2(unitPrice * float64(participants))
	discount = math.Min(round2(discount), total)
	tax := round2((total - discount) * s.opts.TaxRate)
	final := round2(total - discount + tax)
	return amounts{
		total:    total,
		discount: discount,
		tax:      tax,
		final:    final,
		deposit:  round2(final * s.opts.DepositRate),
	}
}

func authorize(actor Actor, b *domain.Booking, target domain.BookingStatus) error {
	if actor.IsStaff() {
		return nil
	}
	if b.UserID != actor.ID || target != domain.BookingCancelled {
		return domain.ErrForbidden
	}
	return nil
}

func historyReason(from, to domain.BookingStatus, reason string) string {
	if reason != "" {
		return reason
	}
	if to == domain.BookingCancelled {
		return domain.ReasonBookingCancelled
	}
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
