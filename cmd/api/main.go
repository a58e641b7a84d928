package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/healthbridge/go-medscheme/internal/core"
	transporthttp "github.com/healthbridge/go-medscheme/internal/http"
	"github.com/healthbridge/go-medscheme/internal/http/handlers"
	"github.com/healthbridge/go-medscheme/internal/jobs"
	"github.com/healthbridge/go-medscheme/internal/middleware"
	"github.com/healthbridge/go-medscheme/internal/platform/config"
	"github.com/healthbridge/go-medscheme/internal/platform/logging"
	"github.com/healthbridge/go-medscheme/internal/store/mongo"
	"github.com/healthbridge/go-medscheme/internal/store/rediscache"
)

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting medscheme API", "env", cfg.Env, "port", cfg.Port)

	// ---- Stores ----
	mongoClient, err := mongo.NewClient(cfg)
	if err != nil {
		log.Error("failed to connect to MongoDB", "err", err)
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := mongo.EnsureIndexes(indexCtx, mongoClient.DB); err != nil {
		log.Warn("failed to ensure indexes", "err", err)
	}
	cancelIndex()

	opTimeout := time.Duration(cfg.MongoOpTimeoutMs) * time.Millisecond
	plans := mongo.NewPlanRepo(mongoClient.DB, opTimeout)
	addons := mongo.NewAddonRepo(mongoClient.DB, opTimeout)
	discounts := mongo.NewDiscountRuleRepo(mongoClient.DB, opTimeout)
	promos := mongo.NewPromoCodeRepo(mongoClient.DB, opTimeout)
	loadings := mongo.NewLoadingRuleRepo(mongoClient.DB, opTimeout)
	apps := mongo.NewApplicationRepo(mongoClient.DB, opTimeout)
	policies := mongo.NewPolicyRepo(mongoClient.DB, opTimeout)
	tx := mongo.NewTxRunner(mongoClient)

	var cards core.RateCardRepo = mongo.NewRateCardRepo(mongoClient.DB, opTimeout)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cards = rediscache.NewRateCardCache(cards, rdb, time.Duration(cfg.CacheTTLSec)*time.Second)
		log.Info("rate card cache enabled", "addr", cfg.RedisAddr)
	}

	// ---- Services ----
	rateCardSvc := core.NewRateCardService(cards, plans)
	premiumSvc := core.NewPremiumService(cards, addons, loadings, discounts, cfg.TaxRate)
	discountSvc := core.NewDiscountService(discounts, promos, tx)
	loadingSvc := core.NewLoadingService(loadings)
	appSvc := core.NewApplicationService(apps, policies, loadings, premiumSvc, tx,
		cfg.QuoteValidityDays, cfg.AcceptValidityDays)
	policySvc := core.NewPolicyService(policies, apps, premiumSvc, tx)

	// ---- Router ----
	rl := middleware.NewRateLimiter(cfg.RateLimitRPM, time.Minute)

	r := transporthttp.NewRouter(transporthttp.Deps{
		Middlewares: []func(http.Handler) http.Handler{
			chimw.RequestID,
			chimw.RealIP,
			chimw.Recoverer,
			chimw.Timeout(time.Duration(cfg.HTTPRequestTimeoutSec) * time.Second),
			middleware.SecurityHeaders,
			middleware.CORS(cfg.AllowedOrigins),
			middleware.LimitRequestBody(middleware.MaxBodySize),
			rl.Middleware,
			middleware.SimpleAPIKey(cfg.APIKey),
		},
		Mounts: []handlers.Mountable{
			handlers.NewHealthHandler(mongoClient, log),
			handlers.NewPremiumHandler(premiumSvc, discountSvc, loadingSvc, log),
			handlers.NewRateCardHandler(rateCardSvc, log),
			handlers.NewApplicationHandler(appSvc, log),
			handlers.NewPolicyHandler(policySvc, log),
			handlers.NewCatalogHandler(plans, addons, discounts, promos, loadings, log),
		},
	})

	// ---- Workers ----
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	rl.StartWithContext(workerCtx)

	interval := time.Duration(cfg.WorkerIntervalSec) * time.Second
	go jobs.NewQuoteExpiryWorker(appSvc, interval, log).Start(workerCtx)
	go jobs.NewLoadingExpiryWorker(policySvc, interval, log).Start(workerCtx)

	// ---- Serve ----
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	stopWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	log.Info("server stopped")
}
