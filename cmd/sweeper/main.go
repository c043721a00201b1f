// Command sweeper runs the cart cleanup and subscription renewal jobs
// without the HTTP API.  With -once it runs a single pass and exits, which
// suits cron.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/iliyamo/studio-booking/internal/activitylog"
	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/cache"
	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/repository"
	queue_publisher "github.com/iliyamo/studio-booking/internal/service"
	"github.com/iliyamo/studio-booking/internal/sweeper"
)

func main() {
	cfg := config.DatabaseOnly()
	studio := config.LoadStudioConfig()
	cacheCfg := config.LoadCacheConfig()
	rabbit := config.LoadRabbitConfig()

	interval := flag.Duration("interval", studio.SweepInterval, "time between passes")
	once := flag.Bool("once", false, "run one pass and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	rdb := config.NewRedisClient()

	store := repository.NewMySQLStore(db)
	inv := credit.NewInventory(studio.Location)
	bus := events.NewBus()
	// released cart credit must drop the API's cached answers too
	cache.NewCreditCache(rdb, cacheCfg.Prefix, cacheCfg.CreditTTL).Subscribe(bus)
	activitylog.NewRecorder(store).Subscribe(bus)
	queue_publisher.New(rabbit.URL, rabbit.Queue).Subscribe(bus)

	sw := sweeper.New(store, inv, booking.NewService(store, inv, bus), bus, rdb, sweeper.Config{
		CartTimeout:    studio.CartTimeout,
		CartCheckGrace: studio.CartCheckGrace,
		RenewalWindow:  studio.RenewalWindow,
		ThrottleTTL:    studio.SweepThrottle,
		Prefix:         cacheCfg.Prefix + ":sweeper",
	})

	if *once {
		if err := sw.RunOnce(ctx); err != nil {
			log.Fatalf("sweeper: %v", err)
		}
		return
	}
	log.Printf("sweeper: running every %s (env=%s)", *interval, cfg.Env)
	sw.Run(ctx, *interval)
}
