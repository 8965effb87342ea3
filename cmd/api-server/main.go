package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carelink/hospital-ops/internal/api"
	"github.com/carelink/hospital-ops/internal/audit"
	"github.com/carelink/hospital-ops/internal/capability"
	"github.com/carelink/hospital-ops/internal/config"
	"github.com/carelink/hospital-ops/internal/db"
	"github.com/carelink/hospital-ops/internal/hospital"
	"github.com/carelink/hospital-ops/internal/logging"
	"github.com/carelink/hospital-ops/internal/scheduling"
	"github.com/carelink/hospital-ops/internal/slotcache"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Redis is optional; without it the slot cache degrades to store reads.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = slotcache.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, slot cache disabled")
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Error().Err(err).Msg("error closing redis")
				}
			}()
			log.Info().Msg("connected to Redis")
		}
	}

	store := hospital.NewPgStore(pgPool)

	var cache *slotcache.Cache
	if rdb != nil {
		cache = slotcache.New(rdb, cfg.SlotCacheTTL, log)
	}

	scheduler := scheduling.NewService(store, cache, scheduling.Config{
		SlotMinutes:   cfg.SlotMinutes,
		BookingBuffer: cfg.BookingBuffer,
	}, log)

	recorder := audit.NewRecorder(store, log)
	dispatcher := capability.NewDispatcher(store, scheduler, recorder, nil, log)

	router := api.NewRouter(api.RouterConfig{
		Dispatcher: dispatcher,
		PgPool:     pgPool,
		Redis:      rdb,
		JWTSecret:  []byte(cfg.JWTSecret),
		Env:        cfg.Env,
		Version:    version,
		Log:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
		log.Info().Msg("shutting down api-server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
