// README: Entry point; loads config, wires services, starts HTTP server and the expiry sweeper.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laoyou/internal/config"
	httptransport "laoyou/internal/http"
	"laoyou/internal/infra"
	"laoyou/internal/logger"
	"laoyou/internal/maps"
	"laoyou/internal/modules/address"
	"laoyou/internal/modules/dispatch"
	"laoyou/internal/modules/fee"
	"laoyou/internal/modules/order"
	"laoyou/internal/modules/payment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Backend, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Errorf("db init: %v", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	addressSvc := address.NewService(address.NewPGStore(dbPool))

	// Rides booked with elderly assistance get the flat reduction; richer
	// eligibility (account-level elderly flags) lives with the account service.
	discount := fee.ElderlyDiscount(cfg.Fee.ElderlyDiscount)
	feeEngine := fee.NewEngine(fee.Rates{
		BaseFee:          cfg.Fee.BaseFee,
		PerKm:            cfg.Fee.PerKm,
		PerMin:           cfg.Fee.PerMin,
		ElderlySurcharge: cfg.Fee.ElderlySurcharge,
		EstimateMinutes:  cfg.Fee.EstimateMinutes,
	}, discount)

	finder := dispatch.NewRedisFinder(redisClient, cfg.Dispatch.RadiusKm)
	notifier := payment.NewRedisNotifier(redisClient)

	var routes order.RouteEstimator
	if cfg.Maps.APIKey != "" {
		rs, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Warnf("maps init: %v; falling back to fixed duration estimates", err)
		} else {
			routes = rs
		}
	}

	orderSvc := order.NewService(order.Deps{
		Store:          order.NewPGStore(dbPool),
		Fees:           feeEngine,
		Resolver:       addressSvc,
		Finder:         finder,
		Payments:       notifier,
		Routes:         routes,
		Log:            log,
		DispatchWindow: time.Duration(cfg.Dispatch.WindowSeconds) * time.Second,
	})

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Order:        orderSvc,
		Address:      addressSvc,
		Fees:         feeEngine,
		Availability: finder,
		Log:          log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go orderSvc.RunExpirySweeper(ctx, time.Duration(cfg.Dispatch.SweepSeconds)*time.Second)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("server: %v", err)
		os.Exit(1)
	}
}
