package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/edflow/edflow/internal/burden"
	"github.com/edflow/edflow/internal/config"
	"github.com/edflow/edflow/internal/domain/facility"
	"github.com/edflow/edflow/internal/domain/flow"
	"github.com/edflow/edflow/internal/platform/db"
	"github.com/edflow/edflow/internal/platform/middleware"
	"github.com/edflow/edflow/internal/platform/websocket"
)

// app is the wired server: HTTP routes plus the background monitor.
type app struct {
	echo    *echo.Echo
	monitor *flow.Monitor
	hub     *websocket.Hub
}

// newApp wires handlers over repo. pool may be nil when facilities are kept
// in memory.
func newApp(cfg *config.Config, cal burden.Calibration, repo facility.Repository, pool *pgxpool.Pool, logger zerolog.Logger) *app {
	facilitySvc := facility.NewService(repo, cal.DefaultLeaveSignalWeight, logger)
	flowSvc := flow.NewService(cal, facilitySvc, logger)
	hub := websocket.NewHub(logger)
	monitor := flow.NewMonitor(flowSvc, hub, cfg.MonitorInterval, cfg.MonitorConcurrency, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	websocket.NewHandler(hub).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	facility.NewHandler(facilitySvc).RegisterRoutes(apiV1)
	flow.NewHandler(flowSvc, monitor).RegisterRoutes(apiV1)

	return &app{echo: e, monitor: monitor, hub: hub}
}

// facilityRepo picks the facility store: Postgres when DATABASE_URL is set,
// memory otherwise, fronted by Redis when REDIS_URL is set. The returned
// cleanup closes whatever was opened.
func facilityRepo(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (facility.Repository, *pgxpool.Pool, func(), error) {
	var (
		repo    facility.Repository
		pool    *pgxpool.Pool
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.HasDatabase() {
		p, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, nil, err
		}
		pool = p
		closers = append(closers, p.Close)
		repo = facility.NewRepoPG(p)
		logger.Info().Msg("connected to database")
	} else {
		repo = facility.NewMemoryRepo()
		logger.Warn().Msg("DATABASE_URL not set, facility directory is in memory")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			cleanup()
			return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		repo = facility.NewCachedRepo(repo, rdb, cfg.FacilityCacheTTL, logger)
		logger.Info().Dur("ttl", cfg.FacilityCacheTTL).Msg("facility cache enabled")
	}

	return repo, pool, cleanup, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	cal, err := config.LoadCalibration(cfg.CalibrationFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load calibration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, pool, cleanup, err := facilityRepo(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open facility directory")
	}
	defer cleanup()

	a := newApp(cfg, cal, repo, pool, logger)

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		if err := a.monitor.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("monitor exited")
		}
	}()

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	<-monitorDone
	logger.Info().Msg("server stopped")
	return nil
}
