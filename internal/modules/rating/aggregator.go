package rating

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"bookingcore/internal/domain"
)

var tracer = otel.Tracer("bookingcore/rating")

type ReviewSource interface {
	ApprovedRatings(ctx context.Context, businessID int64) ([]int, error)
	BusinessIDs(ctx context.Context) ([]int64, error)
}

type SummaryStore interface {
	Upsert(ctx context.Context, s *domain.RatingSummary) error
	Get(ctx context.Context, businessID int64) (*domain.RatingSummary, error)
	BusinessIDs(ctx context.Context) ([]int64, error)
}

// SummaryCache is the read-through layer in front of the summary table.
type SummaryCache interface {
	Get(ctx context.Context, id string) (*domain.RatingSummary, bool, error)
	Set(ctx context.Context, id string, v *domain.RatingSummary) error
	Delete(ctx context.Context, id string) error
}

type Aggregator struct {
	reviews ReviewSource
	store   SummaryStore
	cache   SummaryCache
	now     func() time.Time
}

// NewAggregator accepts a nil cache.
func NewAggregator(reviews ReviewSource, store SummaryStore, cache SummaryCache) *Aggregator {
	return &Aggregator{reviews: reviews, store: store, cache: cache, now: time.Now}
}

// Recompute rebuilds the summary from approved reviews. The result depends
// only on the approved set, so running it twice is harmless.
func (a *Aggregator) Recompute(ctx context.Context, businessID int64) (*domain.RatingSummary, error) {
	ctx, span := tracer.Start(ctx, "rating.Recompute")
	defer span.End()
	span.SetAttributes(attribute.Int64("business_id", businessID))

	ratings, err := a.reviews.ApprovedRatings(ctx, businessID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s := &domain.RatingSummary{
		BusinessID:    businessID,
		AverageRating: average(ratings),
		ReviewCount:   len(ratings),
		UpdatedAt:     a.now().UTC(),
	}
	if err := a.store.Upsert(ctx, s); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a.remember(ctx, s)
	return s, nil
}

// Summary never fails for an unknown business: it reports 0.00 over 0
// reviews.
func (a *Aggregator) Summary(ctx context.Context, businessID int64) (*domain.RatingSummary, error) {
	key := strconv.FormatInt(businessID, 10)
	if a.cache != nil {
		s, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			logrus.WithFields(logrus.Fields{"business_id": businessID, "error": err.Error()}).Warn("rating cache read failed")
		} else if ok {
			return s, nil
		}
	}

	s, err := a.store.Get(ctx, businessID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.RatingSummary{BusinessID: businessID}, nil
	}
	if err != nil {
		return nil, err
	}

	a.remember(ctx, s)
	return s, nil
}

// ReconcileAll recomputes every business that has reviews or a stored
// summary. It keeps going past individual failures and returns the first.
func (a *Aggregator) ReconcileAll(ctx context.Context) (int, error) {
	fromReviews, err := a.reviews.BusinessIDs(ctx)
	if err != nil {
		return 0, err
	}
	fromSummaries, err := a.store.BusinessIDs(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[int64]struct{}, len(fromReviews)+len(fromSummaries))
	var (
		done     int
		firstErr error
	)
	for _, id := range append(fromReviews, fromSummaries...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := a.Recompute(ctx, id); err != nil {
			logrus.WithFields(logrus.Fields{"business_id": id, "error": err.Error()}).Error("rating reconcile failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

// remember refreshes the cached summary. When the write fails the old
// entry is dropped so readers fall through to the table.
func (a *Aggregator) remember(ctx context.Context, s *domain.RatingSummary) {
	if a.cache == nil {
		return
	}
	key := strconv.FormatInt(s.BusinessID, 10)
	err := a.cache.Set(ctx, key, s)
	if err == nil {
		return
	}
	logrus.WithFields(logrus.Fields{"business_id": s.BusinessID, "error": err.Error()}).Warn("rating cache write failed")

	if err := a.cache.Delete(ctx, key); err != nil {
		logrus.WithFields(logrus.Fields{"business_id": s.BusinessID, "error": err.Error()}).Error("rating cache invalidate failed")
	}
}

func average(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return math.Round(float64(sum)/float64(len(ratings))*100) / 100
}
