package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careloop/clinic-scheduling/internal/directory"
	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service   *scheduling.Service
	Directory directory.Directory
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/providers", listProvidersHandler(cfg.Directory))
	r.Get("/providers/{id}/slots", listSlotsHandler(cfg.Service))
	r.Put("/providers/{id}/availability", replaceAvailabilityHandler(cfg.Service))

	r.Post("/appointments", reserveHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/cancel", transitionHandler(func(req *http.Request, id, requester uuid.UUID) (*scheduling.Appointment, error) {
		return cfg.Service.Cancel(req.Context(), id, requester)
	}))
	r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id, requester uuid.UUID) (*scheduling.Appointment, error) {
		return cfg.Service.Complete(req.Context(), id, requester)
	}))
	r.Post("/appointments/{id}/no-show", transitionHandler(func(req *http.Request, id, requester uuid.UUID) (*scheduling.Appointment, error) {
		return cfg.Service.MarkNoShow(req.Context(), id, requester)
	}))

	r.Post("/triage", triageHandler())

	return r
}
