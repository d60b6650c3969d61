package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"bookingcore/internal/config"
	"bookingcore/internal/domain"
	"bookingcore/internal/middleware"
	"bookingcore/internal/modules/availability"
	"bookingcore/internal/modules/booking"
	"bookingcore/internal/modules/ledger"
	"bookingcore/internal/modules/rating"
	"bookingcore/internal/modules/reference"
	"bookingcore/internal/modules/review"
	"bookingcore/internal/pkg/cache"
	"bookingcore/internal/pkg/jwt"
	"bookingcore/internal/pkg/keylock"
	"bookingcore/internal/repository"
)

type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	// Redis may be nil; the rating summary is then read from the table.
	Redis    *redis.Client
	Payments booking.PaymentSignaler
	// Refs defaults to a generator on the wall clock.
	Refs *reference.Generator
}

type App struct {
	Router     *gin.Engine
	JWT        *jwt.Service
	Bookings   *booking.Service
	Aggregator *rating.Aggregator
}

// New wires repositories, services and routes.
func New(d Deps) *App {
	cfg := d.Config
	db := d.DB

	userRepo := repository.NewUserRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	blockRepo := repository.NewBlockingRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	ratingRepo := repository.NewRatingRepository(db)

	var summaryCache rating.SummaryCache
	if d.Redis != nil {
		summaryCache = cache.NewJSON[domain.RatingSummary](d.Redis, "rating:summary:", cfg.Rating.CacheTTL)
	}
	aggregator := rating.NewAggregator(reviewRepo, ratingRepo, summaryCache)

	checker := availability.NewChecker(unitRepo, blockRepo, bookingRepo)
	availabilityService := availability.NewService(checker, blockRepo)

	bookingService := booking.NewService(db, booking.Deps{
		Bookings: bookingRepo,
		History:  historyRepo,
		Checker:  checker,
		Ledger:   ledger.New(unitRepo, bookingRepo),
		Refs:     d.Refs,
		Users:    userRepo,
		Catalog:  unitRepo,
		Payments: d.Payments,
		Locks:    keylock.New(),
	}, booking.Options{
		Attempts:    cfg.Booking.Attempts,
		TaxRate:     cfg.Booking.TaxRate,
		DepositRate: cfg.Booking.DepositRate,
		Currency:    cfg.Booking.Currency,
	})

	reviewService := review.NewService(reviewRepo, bookingRepo, aggregator)

	j := jwt.New(cfg.JWT.Secret, cfg.JWT.TTL)

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.ErrorLogger(), middleware.CORS(cfg.Server.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	v1 := r.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(j))
	staff := protected.Group("")
	staff.Use(middleware.StaffOnly())

	availability.NewHandler(availabilityService).RegisterRoutes(v1, staff)
	booking.NewHandler(bookingService).RegisterRoutes(protected)
	rating.NewHandler(aggregator).RegisterRoutes(v1)
	review.NewHandler(reviewService).RegisterRoutes(v1, protected)

	return &App{
		Router:     r,
		JWT:        j,
		Bookings:   bookingService,
		Aggregator: aggregator,
	}
}
