// Package tracker собирает HTTP-приложение: хранилище, кеш, брокер,
// сервисы и маршруты API.
package tracker

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subtrack/internal/http/handlers/billing/confirm"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/billing/plans"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/billing/preview"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/health"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/subscription/calendar"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/subscription/list"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/subscription/remove"
	"github.com/magabrotheeeer/subtrack/internal/http/handlers/subscription/update"
	"github.com/magabrotheeeer/subtrack/internal/http/middlewarectx"
	billingservice "github.com/magabrotheeeer/subtrack/internal/services/billing"
	subservice "github.com/magabrotheeeer/subtrack/internal/services/subscription"
)

// Deps зависимости маршрутов.
type Deps struct {
	Logger        *slog.Logger
	Tokens        middlewarectx.TokenParser
	Limiter       *middlewarectx.RateLimiter
	Subscriptions *subservice.Service
	Billing       *billingservice.Service
	Health        map[string]health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d Deps) {
	logger := d.Logger

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, logger))
			r.Use(middlewarectx.RateLimitMiddleware(d.Limiter, logger))

			r.Post("/subscriptions", create.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/list", list.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/calendar", calendar.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/{id}", read.New(logger, d.Subscriptions).ServeHTTP)
			r.Put("/subscriptions/{id}", update.New(logger, d.Subscriptions).ServeHTTP)
			r.Delete("/subscriptions/{id}", remove.New(logger, d.Subscriptions).ServeHTTP)

			r.Get("/billing/plans", plans.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/preview", preview.New(logger, d.Billing).ServeHTTP)
			r.Post("/billing/confirm", confirm.New(logger, d.Billing).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, d.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
