// Package confirm реализует HTTP-обработчик подтверждения смены тарифа.
package confirm

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
	"github.com/magabrotheeeer/subtrack/internal/paymentprovider"
	"github.com/magabrotheeeer/subtrack/internal/services/billing"
)

// IdempotencyHeader заголовок с ключом идемпотентности от клиента.
const IdempotencyHeader = "Idempotency-Key"

// Handler обрабатывает подтверждение смены тарифа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс подтверждения.
type Service interface {
	Confirm(ctx context.Context, username string, planID int, idempotencyKey string) (*models.PlanChangeResult, error)
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
// @Summary Подтвердить смену тарифа
// @Description Передаёт смену тарифа платёжному провайдеру. Сумма в ответе берётся у провайдера.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Ключ идемпотентности"
// @Param request body models.PlanChangeRequest true "Целевой тариф"
// @Success 200 {object} response.Response{data=models.PlanChangeResult}
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 409 {object} response.ErrorResponse "Переход невозможен"
// @Failure 502 {object} response.ErrorResponse "Ошибка платёжного провайдера"
// @Router /billing/confirm [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.confirm"
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

	res, err := h.service.Confirm(r.Context(), username, req.PlanID, r.Header.Get(IdempotencyHeader))
	switch {
	case errors.Is(err, billing.ErrPlanNotFound), errors.Is(err, billing.ErrUserNotFound):
		response.Fail(w, r, http.StatusNotFound, "plan or user not found")
		return
	case errors.Is(err, proration.ErrIneligible):
		response.Fail(w, r, http.StatusConflict, proration.ErrIneligible.Error())
		return
	case errors.Is(err, proration.ErrTargetNotPurchasable), errors.Is(err, billing.ErrNoProviderSubscription):
		response.Fail(w, r, http.StatusConflict, "plan change is not possible")
		return
	case errors.Is(err, paymentprovider.ErrUnexpectedStatus):
		log.Error("payment provider rejected request", sl.Err(err))
		response.Fail(w, r, http.StatusBadGateway, "payment provider error")
		return
	case err != nil:
		log.Error("failed to confirm plan change", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "could not confirm plan change")
		return
	}

	log.Info("plan change confirmed", slog.String("payment_id", res.PaymentID))
	render.JSON(w, r, response.StatusOKWithData(res))
}
