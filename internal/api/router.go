package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carelink/hospital-ops/internal/capability"
)

type RouterConfig struct {
	Dispatcher *capability.Dispatcher
	PgPool     *pgxpool.Pool
	Redis      *redis.Client
	JWTSecret  []byte
	Env        string
	Version    string
	Log        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Operation endpoints, behind auth
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))
		r.Get("/operations", listOperationsHandler(cfg.Dispatcher))
		r.Post("/operations/{name}", invokeOperationHandler(cfg.Dispatcher))
	})

	return r
}
