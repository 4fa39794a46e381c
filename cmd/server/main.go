package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"igx_tracker/internal/cache"
	"igx_tracker/internal/config"
	"igx_tracker/internal/controllers"
	"igx_tracker/internal/ingest"
	"igx_tracker/internal/logger"
	"igx_tracker/internal/middleware"
	"igx_tracker/internal/routes"
	"igx_tracker/internal/store"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $CONFIG_FILE)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	// Initialize structured logging to file
	closer, err := logger.Setup(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Stdout: cfg.Log.Stdout})
	if err != nil {
		logrus.WithError(err).Fatal("set up logging")
	}
	defer closer.Close()

	// Connect to the database
	db, err := config.InitDB(cfg.DB)
	if err != nil {
		logrus.WithError(err).Fatal("database")
	}
	st := store.NewGormStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		registry    store.DeviceRegistry = st
		invalidator controllers.CacheInvalidator
	)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			logrus.WithError(err).Warn("redis unavailable, device cache disabled")
		} else {
			defer rdb.Close()
			rc := cache.NewRedisRegistry(rdb, st, cfg.Redis.TTL)
			registry, invalidator = rc, rc
		}
	}

	middleware.SetSecret(cfg.Auth.JWTSecret)
	hub := controllers.NewPositionHub()
	defer hub.Close()

	h := &controllers.Handler{
		Store:    st,
		Pipeline: ingest.New(registry, st, ingest.WithPublisher(hub)),
		Auth:     cfg.Auth,
		Hub:      hub,
		Cache:    invalidator,
	}

	gin.SetMode(gin.ReleaseMode)
	r := routes.SetupRouter(h)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           middleware.EnableCORS(middleware.CORSOptions{AllowedOrigins: cfg.CORS.AllowedOrigins, MaxAge: cfg.CORS.MaxAge})(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("shutdown")
		}
	}()

	logrus.WithField("addr", cfg.HTTPAddr).Info("server running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.WithError(err).Fatal("listen")
	}
}
