// Package preview реализует HTTP-обработчик предварительной оценки смены тарифа.
//
// Оценка ориентировочная: итоговую сумму возвращает обработчик подтверждения
// по ответу платёжного провайдера.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subtrack/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subtrack/internal/http/response"
	"github.com/magabrotheeeer/subtrack/internal/lib/proration"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/services/billing"
)

// Handler обрабатывает запросы на оценку смены тарифа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс оценки.
type Service interface {
	Preview(ctx context.Context, username string, planID int) (proration.Preview, error)
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Оценить смену тарифа
// @Description Тип перехода, кредит за неиспользованные дни и сумма к оплате. Для plan_change значение приблизительное.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.PlanChangeRequest true "Целевой тариф"
// @Success 200 {object} response.Response{data=proration.Preview}
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 409 {object} response.ErrorResponse "Переход невозможен"
// @Router /billing/preview [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.preview"
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

	var req models.PlanChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	res, err := h.service.Preview(r.Context(), username, req.PlanID)
	switch {
	case errors.Is(err, billing.ErrPlanNotFound):
		response.Fail(w, r, http.StatusNotFound, "plan not found")
		return
	case errors.Is(err, proration.ErrIneligible):
		response.Fail(w, r, http.StatusConflict, proration.ErrIneligible.Error())
		return
	case errors.Is(err, proration.ErrTargetNotPurchasable):
		response.Fail(w, r, http.StatusConflict, proration.ErrTargetNotPurchasable.Error())
		return
	case err != nil:
		log.Error("failed to preview plan change", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "could not preview plan change")
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}
