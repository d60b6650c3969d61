package review

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookingcore/internal/domain"
	"bookingcore/internal/modules/rating"
	"bookingcore/internal/repository"
)

type MockRecomputer struct {
	mock.Mock
}

func (m *MockRecomputer) Recompute(ctx context.Context, businessID int64) (*domain.RatingSummary, error) {
	args := m.Called(ctx, businessID)
	s, _ := args.Get(0).(*domain.RatingSummary)
	return s, args.Error(1)
}

const (
	business int64 = 21
	author   int64 = 5
)

var (
	customer  = domain.Actor{ID: author, Role: domain.RoleCustomer}
	moderator = domain.Actor{ID: 900, Role: domain.RoleStaff}
)

type fixture struct {
	bookings *repository.BookingRepository
	reviews  *repository.ReviewRepository
	ratings  *repository.RatingRepository
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:review_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return &fixture{
		bookings: repository.NewBookingRepository(db),
		reviews:  repository.NewReviewRepository(db),
		ratings:  repository.NewRatingRepository(db),
	}
}

var refSeq int

func (f *fixture) booking(t *testing.T, userID int64, status domain.BookingStatus) int64 {
	t.Helper()
	refSeq++
	resourceID := int64(1)
	start := time.Date(2030, 2, 1, 10, 0, 0, 0, time.UTC)
	b := &domain.Booking{
		Reference:     fmt.Sprintf("BK20300201R%07d", refSeq),
		UserID:        userID,
		BusinessID:    business,
		ResourceID:    &resourceID,
		StartAt:       start,
		EndAt:         start.Add(time.Hour),
		Participants:  1,
		Currency:      domain.DefaultCurrency,
		Status:        status,
		PaymentStatus: domain.PaymentPending,
	}
	require.NoError(t, f.bookings.Create(context.Background(), b))
	return b.ID
}

func TestService_Create_Eligibility(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	rec := new(MockRecomputer)
	svc := NewService(f.reviews, f.bookings, rec)

	pending := f.booking(t, author, domain.BookingPending)
	someoneElses := f.booking(t, 77, domain.BookingCompleted)
	done := f.booking(t, author, domain.BookingCompleted)

	_, err := svc.Create(ctx, customer, CreateReviewRequest{BookingID: pending, Rating: 5})
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = svc.Create(ctx, customer, CreateReviewRequest{BookingID: someoneElses, Rating: 5})
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = svc.Create(ctx, customer, CreateReviewRequest{BookingID: 4242, Rating: 5})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Create(ctx, customer, CreateReviewRequest{BookingID: done, Rating: 6})
	assert.ErrorIs(t, err, domain.ErrValidation)

	rv, err := svc.Create(ctx, customer, CreateReviewRequest{BookingID: done, Rating: 4, Comment: "nice"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewPending, rv.Status)
	assert.Equal(t, business, rv.BusinessID)

	taken, err := f.reviews.ExistsForBooking(ctx, done)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = f.reviews.ExistsForBooking(ctx, pending)
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = svc.Create(ctx, customer, CreateReviewRequest{BookingID: done, Rating: 3})
	assert.ErrorIs(t, err, repository.ErrDuplicateReview)

	// Pending reviews never touch the summary.
	rec.AssertNotCalled(t, "Recompute", mock.Anything, mock.Anything)
}

func TestService_ModerationDrivesSummary(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	agg := rating.NewAggregator(f.reviews, f.ratings, nil)
	svc := NewService(f.reviews, f.bookings, agg)

	var ids []int64
	for _, score := range []int{5, 4, 3} {
		rv, err := svc.Create(ctx, customer, CreateReviewRequest{BookingID: f.booking(t, author, domain.BookingCompleted), Rating: score})
		require.NoError(t, err)
		_, err = svc.SetStatus(ctx, moderator, rv.ID, domain.ReviewApproved)
		require.NoError(t, err)
		ids = append(ids, rv.ID)
	}

	s, err := agg.Summary(ctx, business)
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.AverageRating)
	assert.Equal(t, 3, s.ReviewCount)

	_, err = svc.SetStatus(ctx, moderator, ids[2], domain.ReviewRejected)
	require.NoError(t, err)
	s, err = agg.Summary(ctx, business)
	require.NoError(t, err)
	assert.Equal(t, 4.5, s.AverageRating)
	assert.Equal(t, 2, s.ReviewCount)

	_, err = svc.UpdateRating(ctx, customer, ids[1], UpdateRatingRequest{Rating: 1})
	require.NoError(t, err)
	s, err = agg.Summary(ctx, business)
	require.NoError(t, err)
	assert.Equal(t, 3.0, s.AverageRating)

	require.NoError(t, svc.Delete(ctx, customer, ids[0]))
	s, err = agg.Summary(ctx, business)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.AverageRating)
	assert.Equal(t, 1, s.ReviewCount)
}

func TestService_RecomputeOnlyWhenApprovedSetChanges(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	rec := new(MockRecomputer)
	svc := NewService(f.reviews, f.bookings, rec)

	rv, err := svc.Create(ctx, customer, CreateReviewRequest{BookingID: f.booking(t, author, domain.BookingCompleted), Rating: 2})
	require.NoError(t, err)

	// pending -> hidden and a rating change while hidden: nothing to do.
	_, err = svc.SetStatus(ctx, moderator, rv.ID, domain.ReviewHidden)
	require.NoError(t, err)
	_, err = svc.UpdateRating(ctx, customer, rv.ID, UpdateRatingRequest{Rating: 3})
	require.NoError(t, err)
	rec.AssertNotCalled(t, "Recompute", mock.Anything, mock.Anything)

	rec.On("Recompute", mock.Anything, business).Return(&domain.RatingSummary{BusinessID: business}, nil).Times(2)
	_, err = svc.SetStatus(ctx, moderator, rv.ID, domain.ReviewApproved)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, moderator, rv.ID, domain.ReviewApproved)
	require.NoError(t, err)
	comment := "changed my mind"
	_, err = svc.UpdateRating(ctx, customer, rv.ID, UpdateRatingRequest{Rating: 3, Comment: &comment})
	require.NoError(t, err)
	_, err = svc.UpdateRating(ctx, customer, rv.ID, UpdateRatingRequest{Rating: 4})
	require.NoError(t, err)

	rec.AssertNumberOfCalls(t, "Recompute", 2)
}

func TestService_Permissions(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	rec := new(MockRecomputer)
	svc := NewService(f.reviews, f.bookings, rec)
	stranger := domain.Actor{ID: 66, Role: domain.RoleCustomer}

	rv, err := svc.Create(ctx, customer, CreateReviewRequest{BookingID: f.booking(t, author, domain.BookingCompleted), Rating: 5})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, customer, rv.ID, domain.ReviewApproved)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.SetStatus(ctx, moderator, rv.ID, domain.ReviewStatus("spam"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.UpdateRating(ctx, stranger, rv.ID, UpdateRatingRequest{Rating: 1})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, stranger, rv.ID), domain.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, moderator, 31337), domain.ErrNotFound)

	require.NoError(t, svc.Delete(ctx, moderator, rv.ID))
}

func TestNeedsRecompute(t *testing.T) {
	review := func(status domain.ReviewStatus, rating int) *domain.Review {
		return &domain.Review{Status: status, Rating: rating}
	}

	tests := []struct {
		name          string
		before, after *domain.Review
		want          bool
	}{
		{"create pending", nil, review(domain.ReviewPending, 5), false},
		{"create approved", nil, review(domain.ReviewApproved, 5), true},
		{"approve", review(domain.ReviewPending, 5), review(domain.ReviewApproved, 5), true},
		{"reject approved", review(domain.ReviewApproved, 5), review(domain.ReviewRejected, 5), true},
		{"hide pending", review(domain.ReviewPending, 5), review(domain.ReviewHidden, 5), false},
		{"rerate approved", review(domain.ReviewApproved, 5), review(domain.ReviewApproved, 2), true},
		{"same rating approved", review(domain.ReviewApproved, 5), review(domain.ReviewApproved, 5), false},
		{"rerate pending", review(domain.ReviewPending, 5), review(domain.ReviewPending, 1), false},
		{"delete approved", review(domain.ReviewApproved, 5), nil, true},
		{"delete rejected", review(domain.ReviewRejected, 5), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsRecompute(tt.before, tt.after))
		})
	}
}
