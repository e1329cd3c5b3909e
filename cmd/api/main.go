package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace-checkout/internal/backend"
	"marketplace-checkout/internal/cache"
	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/httpserver"
	"marketplace-checkout/internal/logging"
	attemptrepo "marketplace-checkout/internal/repository/attempt"
	"marketplace-checkout/internal/service/checkout"
	"marketplace-checkout/internal/service/payment"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.AppEnv, "checkout-api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: cfg.DBMaxConns})
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()
	ledger := attemptrepo.NewPostgres(dbpool)

	ready := map[string]httpserver.Pinger{"db": dbpool}
	var serviceabilityCache cache.ServiceabilityCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, serviceability cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			serviceabilityCache = cache.NewRedisCache(rdb, cfg.Checkout.ServiceabilityCacheTTL)
			ready["redis"] = httpserver.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		}
	}

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger.Named("backend"))
	checkoutSvc := checkout.NewService(func(token string) checkout.Backend {
		return client.WithToken(token)
	}, checkout.Options{
		Country:         cfg.Checkout.Country,
		SessionTTL:      cfg.Checkout.SessionTTL,
		OrderHistoryURL: cfg.Checkout.OrderHistoryURL,
		Debounce:        cfg.Checkout.ServiceabilityDebounce,
		CheckTimeout:    cfg.Backend.Timeout,
		Cache:           serviceabilityCache,
		Payment: payment.Settings{
			ScriptURL:    cfg.Gateway.ScriptURL,
			MerchantName: cfg.Gateway.MerchantName,
			ThemeColor:   cfg.Gateway.ThemeColor,
		},
		Loader:   payment.NewScriptLoader(cfg.Backend.Timeout, logger.Named("gateway")),
		Widget:   payment.NewCallbackWidget(),
		Recorder: ledger,
		Logger:   logger.Named("checkout"),
	})
	go checkoutSvc.Run(ctx)

	srv, err := httpserver.New(cfg.HTTPAddr, logger.Named("http"), httpserver.Deps{
		Checkout:       checkoutSvc,
		Ledger:         ledger,
		CartURL:        cfg.Checkout.CartURL,
		AllowedOrigins: cfg.AllowedOrigins,
		InternalToken:  cfg.InternalToken,
		Ready:          ready,
		Release:        cfg.AppEnv == "production",
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
