package rating

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bookingcore/internal/domain"
	"bookingcore/internal/pkg/cache"
	"bookingcore/internal/repository"
)

type MockSummaryCache struct {
	mock.Mock
}

func (m *MockSummaryCache) Get(ctx context.Context, id string) (*domain.RatingSummary, bool, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*domain.RatingSummary)
	return s, args.Bool(1), args.Error(2)
}

func (m *MockSummaryCache) Set(ctx context.Context, id string, v *domain.RatingSummary) error {
	args := m.Called(ctx, id, v)
	return args.Error(0)
}

func (m *MockSummaryCache) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupTestDB(t *testing.T) (*repository.ReviewRepository, *repository.RatingRepository) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:rating_%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repository.AutoMigrate(db))
	return repository.NewReviewRepository(db), repository.NewRatingRepository(db)
}

func addReview(t *testing.T, reviews *repository.ReviewRepository, bookingID, businessID int64, rating int, status domain.ReviewStatus) *domain.Review {
	t.Helper()
	rv := &domain.Review{BookingID: bookingID, UserID: 1, BusinessID: businessID, Rating: rating, Status: status}
	require.NoError(t, reviews.Create(context.Background(), rv))
	return rv
}

func TestAggregator_Recompute(t *testing.T) {
	reviews, store := setupTestDB(t)
	ctx := context.Background()
	agg := NewAggregator(reviews, store, nil)

	addReview(t, reviews, 1, 10, 5, domain.ReviewApproved)
	addReview(t, reviews, 2, 10, 4, domain.ReviewApproved)
	three := addReview(t, reviews, 3, 10, 3, domain.ReviewApproved)
	addReview(t, reviews, 4, 10, 1, domain.ReviewPending)
	addReview(t, reviews, 5, 11, 2, domain.ReviewApproved)

	s, err := agg.Recompute(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.AverageRating)
	assert.Equal(t, 3, s.ReviewCount)

	require.NoError(t, reviews.UpdateStatus(ctx, three.ID, domain.ReviewRejected))
	s, err = agg.Recompute(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 4.5, s.AverageRating)
	assert.Equal(t, 2, s.ReviewCount)

	stored, err := store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 4.5, stored.AverageRating)
	assert.Equal(t, 2, stored.ReviewCount)

	// Running again changes nothing.
	again, err := agg.Recompute(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, s.AverageRating, again.AverageRating)
	assert.Equal(t, s.ReviewCount, again.ReviewCount)
}

func TestAggregator_RoundsToTwoDecimals(t *testing.T) {
	reviews, store := setupTestDB(t)
	agg := NewAggregator(reviews, store, nil)

	addReview(t, reviews, 1, 10, 5, domain.ReviewApproved)
	addReview(t, reviews, 2, 10, 4, domain.ReviewApproved)
	addReview(t, reviews, 3, 10, 4, domain.ReviewApproved)

	s, err := agg.Recompute(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 4.33, s.AverageRating)
}

func TestAggregator_NoReviews(t *testing.T) {
	reviews, store := setupTestDB(t)
	ctx := context.Background()
	agg := NewAggregator(reviews, store, nil)

	s, err := agg.Summary(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.AverageRating)
	assert.Equal(t, 0, s.ReviewCount)

	s, err = agg.Recompute(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.AverageRating)
	assert.Equal(t, 0, s.ReviewCount)
}

func TestAggregator_ReconcileAllFixesDrift(t *testing.T) {
	reviews, store := setupTestDB(t)
	ctx := context.Background()
	agg := NewAggregator(reviews, store, nil)

	addReview(t, reviews, 1, 10, 5, domain.ReviewApproved)
	addReview(t, reviews, 2, 11, 2, domain.ReviewApproved)
	// A stale summary for a business whose reviews are gone.
	require.NoError(t, store.Upsert(ctx, &domain.RatingSummary{BusinessID: 12, AverageRating: 3.7, ReviewCount: 9, UpdatedAt: time.Now().UTC()}))
	// A drifted summary.
	require.NoError(t, store.Upsert(ctx, &domain.RatingSummary{BusinessID: 10, AverageRating: 1.0, ReviewCount: 4, UpdatedAt: time.Now().UTC()}))

	n, err := agg.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.AverageRating)
	assert.Equal(t, 1, got.ReviewCount)

	got, err = store.Get(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.AverageRating)
	assert.Equal(t, 0, got.ReviewCount)
}

func TestAggregator_CacheWriteThrough(t *testing.T) {
	reviews, store := setupTestDB(t)
	ctx := context.Background()
	c := new(MockSummaryCache)
	agg := NewAggregator(reviews, store, c)

	addReview(t, reviews, 1, 10, 4, domain.ReviewApproved)

	c.On("Set", mock.Anything, "10", mock.MatchedBy(func(s *domain.RatingSummary) bool {
		return s.AverageRating == 4.0 && s.ReviewCount == 1
	})).Return(errors.New("redis down")).Once()
	c.On("Delete", mock.Anything, "10").Return(nil).Once()

	// A failing cache never fails the recompute.
	_, err := agg.Recompute(ctx, 10)
	require.NoError(t, err)

	c.On("Get", mock.Anything, "10").Return(nil, false, errors.New("redis down")).Once()
	c.On("Set", mock.Anything, "10", mock.Anything).Return(nil).Once()
	s, err := agg.Summary(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.AverageRating)

	c.AssertExpectations(t)
}

func TestAggregator_SummaryFromRedis(t *testing.T) {
	reviews, store := setupTestDB(t)
	rdb, rmock := redismock.NewClientMock()
	agg := NewAggregator(reviews, store, cache.NewJSON[domain.RatingSummary](rdb, "rating:", time.Minute))

	rmock.ExpectGet("rating:7").SetVal(`{"business_id":7,"average_rating":4.25,"review_count":4,"updated_at":"2030-01-01T00:00:00Z"}`)

	s, err := agg.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 4.25, s.AverageRating)
	assert.Equal(t, 4, s.ReviewCount)
	require.NoError(t, rmock.ExpectationsWereMet())
}

func TestAggregator_FailedCacheWriteDropsStaleEntry(t *testing.T) {
	reviews, store := setupTestDB(t)
	ctx := context.Background()
	rdb, rmock := redismock.NewClientMock()
	agg := NewAggregator(reviews, store, cache.NewJSON[domain.RatingSummary](rdb, "rating:", time.Minute))
	agg.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }

	addReview(t, reviews, 1, 7, 4, domain.ReviewApproved)

	rmock.ExpectSet("rating:7", []byte(`{"business_id":7,"average_rating":4,"review_count":1,"updated_at":"2030-01-01T00:00:00Z"}`), time.Minute).
		SetErr(errors.New("OOM command not allowed"))
	rmock.ExpectDel("rating:7").SetVal(1)
	_, err := agg.Recompute(ctx, 7)
	require.NoError(t, err)

	// The next read misses and is served from the table.
	rmock.ExpectGet("rating:7").RedisNil()
	rmock.ExpectSet("rating:7", []byte(`{"business_id":7,"average_rating":4,"review_count":1,"updated_at":"2030-01-01T00:00:00Z"}`), time.Minute).SetVal("OK")
	s, err := agg.Summary(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.AverageRating)
	assert.Equal(t, 1, s.ReviewCount)
	require.NoError(t, rmock.ExpectationsWereMet())
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, average(nil))
	assert.Equal(t, 3.0, average([]int{3}))
	assert.Equal(t, 2.67, average([]int{1, 3, 4}))
}
