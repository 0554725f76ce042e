package main // main wires configuration, storage, services and routes together

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"    // loads variables from a .env file in development
	"github.com/labstack/echo/v4" // HTTP framework

	"github.com/iliyamo/studio-booking/internal/audit"
	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/lifecycle"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/router"
	queue_publisher "github.com/iliyamo/studio-booking/internal/service"
	"github.com/iliyamo/studio-booking/internal/storage"
	"github.com/iliyamo/studio-booking/internal/sweep"
)

func main() {
	// Load .env if present; real deployments set the environment
	// directly and the file is absent.
	_ = godotenv.Load()

	cfg := config.Load()
	sweepCfg := config.LoadSweepConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the rate limiter, the availability cache and the
	// slot-sweep throttle. nil disables all three gracefully.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting, caching and sweep throttling disabled")
	}

	mediaRoot := os.Getenv("MEDIA_ROOT")
	if mediaRoot == "" {
		mediaRoot = "media"
	}
	store, err := storage.NewDiskStore(mediaRoot, "/media")
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	slots := repository.NewSlotRepo(db)
	bookings := repository.NewBookingRepo(db)
	notifLogs := repository.NewNotificationLogRepo(db)

	// Lifecycle service and sweeps.
	auditor := audit.NewDBRecorder(db)
	lc := lifecycle.NewService(slots, bookings, users, store, auditor, cfg.Location)

	publisher := queue_publisher.NewReminderPublisher()
	notifSweep := sweep.NewNotificationSweep(bookings, notifLogs, publisher, lc, sweepCfg.Offsets, cfg.Location)
	retentionSweep := sweep.NewRetentionSweep(bookings, store, sweepCfg.RetentionAge)

	var throttle sweep.Throttle
	if rdb != nil {
		throttle = sweep.NewRedisThrottle(rdb)
	} else {
		throttle = allowAll{}
	}
	slotSweep := sweep.NewSlotSweep(slots, throttle, sweepCfg.SlotSweepInterval, cfg.Location)

	// Drain scheduled reminders in-process so a single-binary deploy
	// still records them; a dedicated consumer replaces this in larger
	// setups.
	go func() {
		if err := queue.StartReminderConsumer(); err != nil {
			log.Printf("reminder consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Static("/media", mediaRoot)

	var rateLimit, cache echo.MiddlewareFunc
	if rdb != nil {
		rateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	router.Register(e, router.Deps{
		Auth:        handler.NewAuthHandler(cfg, users),
		Bookings:    handler.NewBookingHandler(lc, bookings, slots),
		Staff:       handler.NewStaffBookingHandler(lc, bookings, slots),
		Payments:    handler.NewPaymentHandler(lc),
		Slots:       handler.NewSlotHandler(slots, slotSweep),
		Sweeps:      handler.NewSweepHandler(notifSweep, retentionSweep, slotSweep),
		JWTSecret:   cfg.JWTSecret,
		SweepSecret: sweepCfg.Secret,
		RateLimit:   rateLimit,
		Cache:       cache,
	})

	log.Printf("starting studio-booking on :%s (env=%s)", cfg.Port, cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// allowAll is the degraded throttle used when redis is down: every
// sweep trigger runs. Duplicate passes are safe, only wasteful.
type allowAll struct{}

func (allowAll) Allow(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}
