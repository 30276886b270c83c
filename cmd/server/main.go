package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reengage/internal/admin/handler"
	"reengage/internal/admin/nonce"
	"reengage/internal/commerce"
	"reengage/internal/customer/coupon"
	"reengage/internal/customer/lock"
	"reengage/internal/customer/store"
	"reengage/internal/customer/sync"
	"reengage/internal/directory"
	"reengage/internal/mail"
	"reengage/internal/platform/config"
	"reengage/internal/platform/httpserver"
	"reengage/internal/platform/logger"
	"reengage/internal/platform/metrics"
	"reengage/internal/platform/middleware"
	adminmw "reengage/internal/platform/middleware/admin"
	"reengage/internal/platform/redis"
	"reengage/internal/settings"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		log.Error("open postgres", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnLifetime)
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping postgres", "error", err.Error())
		os.Exit(1)
	}

	customerStore := store.NewPostgres(db)
	if err := customerStore.EnsureSchema(ctx); err != nil {
		log.Error("ensure registry schema", "error", err.Error())
		os.Exit(1)
	}
	couponCreator := commerce.NewPostgresCouponCreator(db)
	if err := couponCreator.EnsureSchema(ctx); err != nil {
		log.Error("ensure coupon schema", "error", err.Error())
		os.Exit(1)
	}

	// Settings live in Redis when configured, otherwise in process memory.
	var settingsStore settings.Store = settings.NewMemoryStore()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		settingsStore = settings.NewRedisStore(redisClient)
		log.Info("settings store backed by redis")
	}

	m := metrics.New()
	registryLock := lock.New()

	syncService := sync.New(
		commerce.NewPostgresOrderSource(db),
		directory.NewPostgresDirectory(db),
		customerStore,
		registryLock,
		log,
		sync.WithMetrics(m),
		sync.WithPageSize(cfg.Coupon.DirectoryPageSize),
	)
	couponService := coupon.New(
		customerStore,
		couponCreator,
		settingsStore,
		registryLock,
		log,
		coupon.Policy{
			DiscountPercent: cfg.Coupon.DiscountPercent,
			ExpiryMonths:    cfg.Coupon.ExpiryMonths,
			InactiveMonths:  cfg.Coupon.InactiveMonths,
		},
		coupon.WithMetrics(m),
	)

	adminHandler := handler.New(
		log,
		syncService,
		couponService,
		customerStore,
		settingsStore,
		mail.NewSMTPMailer(cfg.SMTP),
		nonce.New(),
		registryLock,
		m,
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(cfg.Server.AdminToken, log))
		adminHandler.Register(r)
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err.Error())
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
