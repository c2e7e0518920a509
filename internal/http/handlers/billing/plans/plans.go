// Package plans реализует HTTP-обработчик списка тарифов сервиса.
package plans

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subtrack/internal/http/response"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/models"
)

// Handler отдаёт список тарифов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает источник тарифов.
type Service interface {
	Plans(ctx context.Context) ([]*models.Plan, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Тарифы сервиса
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]models.Plan}
// @Router /billing/plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.plans"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	res, err := h.service.Plans(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "could not list plans")
		return
	}
	render.JSON(w, r, response.StatusOKWithData(res))
}
