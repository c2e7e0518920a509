// Package calendar реализует HTTP-обработчик календаря предстоящих списаний.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subtrack/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subtrack/internal/http/response"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/services/subscription"
)

// Handler обрабатывает запросы календаря списаний.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс построения календаря.
type Service interface {
	Calendar(ctx context.Context, username, from, to string) (*models.Calendar, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Календарь списаний
// @Description Все даты списаний активных подписок в отрезке [from, to] и их сумма.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Param from query string true "Начало периода, DD-MM-YYYY"
// @Param to query string true "Конец периода, DD-MM-YYYY"
// @Success 200 {object} response.Response{data=models.Calendar}
// @Failure 400 {object} response.ErrorResponse "Некорректный период"
// @Router /subscriptions/calendar [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.calendar"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	username, _, _, ok := middlewarectx.Identity(r.Context())
	if !ok {
		log.Error("username not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		response.Fail(w, r, http.StatusBadRequest, "query parameters from and to are required")
		return
	}

	res, err := h.service.Calendar(r.Context(), username, from, to)
	switch {
	case errors.Is(err, subscription.ErrInvalidDate), errors.Is(err, subscription.ErrInvalidPeriod):
		response.Fail(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error("failed to build calendar", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "could not build calendar")
		return
	}

	log.Info("calendar built", slog.Int("charges", len(res.Charges)), slog.Int64("total", res.Total))
	render.JSON(w, r, response.StatusOKWithData(res))
}
