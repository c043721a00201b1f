package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // studio zones resolve without a system zoneinfo

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/studio-booking/internal/activitylog"
	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/cache"
	"github.com/iliyamo/studio-booking/internal/checkout"
	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/disclaimer"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/router"
	queue_publisher "github.com/iliyamo/studio-booking/internal/service"
	"github.com/iliyamo/studio-booking/internal/sweeper"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

func main() {
	cfg := config.Load()
	studio := config.LoadStudioConfig()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()
	rabbit := config.LoadRabbitConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database: migrate: %v", err)
	}
	rdb := config.NewRedisClient() // nil when Redis is unreachable

	store := repository.NewMySQLStore(db)
	inv := credit.NewInventory(studio.Location)
	bus := events.NewBus()

	creditCache := cache.NewCreditCache(rdb, cacheCfg.Prefix, cacheCfg.CreditTTL)
	creditCache.Subscribe(bus)
	activitylog.NewRecorder(store).Subscribe(bus)
	queue_publisher.New(rabbit.URL, rabbit.Queue).Subscribe(bus)
	go func() {
		if err := queue.StartNotificationConsumer(rabbit.URL, rabbit.Queue); err != nil {
			log.Printf("notify-consumer: %v", err)
		}
	}()

	disclaimers := disclaimer.NewService(store, rdb, cacheCfg.Prefix, studio.DisclaimerValidity, inv.Now).
		WithCacheTTL(cacheCfg.DisclaimerTTL)
	bookings := booking.NewService(store, inv, bus)
	carts := checkout.NewService(store, inv, bus)
	vouchers := voucher.NewEngine(store, inv.Now)
	sw := sweeper.New(store, inv, bookings, bus, rdb, sweeper.Config{
		CartTimeout:    studio.CartTimeout,
		CartCheckGrace: studio.CartCheckGrace,
		RenewalWindow:  studio.RenewalWindow,
		ThrottleTTL:    studio.SweepThrottle,
		Prefix:         cacheCfg.Prefix + ":sweeper",
	})
	go sw.Run(ctx, studio.SweepInterval)

	responses := middleware.NewResponseCache(cacheCfg, rdb)
	h := router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)),
		Catalog:     handler.NewCatalogHandler(store),
		Bookings:    handler.NewBookingHandler(bookings),
		Cart:        handler.NewCartHandler(bookings, carts, vouchers, sw),
		Credit:      handler.NewCreditHandler(store, inv, creditCache),
		Disclaimers: handler.NewDisclaimerHandler(disclaimers),
		Staff: &handler.StaffHandler{
			Store:       store,
			Bookings:    bookings,
			Checkout:    carts,
			Vouchers:    vouchers,
			Disclaimers: disclaimers,
			Cache:       responses,
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	router.Register(e, h, router.Deps{
		JWTSecret: cfg.JWTSecret,
		DB:        db,
		Redis:     rdb,
		Identity:  identity.NewLoader(store, disclaimers),
		Cache:     responses,
		RateLimit: middleware.RateLimit(rlCfg, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, zone=%s)", addr, cfg.Env, studio.Location)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
