// Package billing содержит логику смены тарифа самого сервиса:
// предварительную оценку стоимости и подтверждение у платёжного провайдера.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subtrack/internal/lib/metrics"
	"github.com/magabrotheeeer/subtrack/internal/lib/proration"
	"github.com/magabrotheeeer/subtrack/internal/lib/sl"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/paymentprovider"
	"github.com/magabrotheeeer/subtrack/internal/rabbitmq"
	"github.com/magabrotheeeer/subtrack/internal/storage/repository"
)

var (
	// ErrPlanNotFound запрошенного тарифа нет.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrUserNotFound пользователь не зарегистрирован.
	ErrUserNotFound = errors.New("user not found")
	// ErrNoProviderSubscription у действующей подписки нет ссылки на подписку провайдера.
	ErrNoProviderSubscription = errors.New("active plan has no provider subscription")
)

// Repository методы хранилища для работы с тарифами.
type Repository interface {
	ListPlans(ctx context.Context) ([]*models.Plan, error)
	GetPlan(ctx context.Context, id int) (*models.Plan, error)
	GetUserBilling(ctx context.Context, username string) (*models.UserBilling, error)
	GetUserUID(ctx context.Context, username string) (string, error)
	SavePendingPlanChange(ctx context.Context, userUID string, planID int, paymentID string) error
}

// Provider платёжный провайдер.
type Provider interface {
	CreateCheckout(ctx context.Context, req paymentprovider.CheckoutRequest, idempotencyKey string) (*paymentprovider.Payment, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, req paymentprovider.SubscriptionUpdateRequest, idempotencyKey string) (*paymentprovider.Payment, error)
	CreateCharge(ctx context.Context, req paymentprovider.ChargeRequest, idempotencyKey string) (*paymentprovider.Payment, error)
	ReturnURL() string
}

// Publisher публикует события в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service реализует смену тарифа.
type Service struct {
	repo     Repository
	provider Provider
	pub      Publisher
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, provider Provider, pub Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		pub:      pub,
		log:      log,
		now:      time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Plans возвращает тарифы сервиса.
func (s *Service) Plans(ctx context.Context) ([]*models.Plan, error) {
	const op = "billing.Plans"

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// Preview оценивает стоимость перехода пользователя на тариф planID.
// Оценка ориентировочная, итоговую сумму определяет провайдер.
func (s *Service) Preview(ctx context.Context, username string, planID int) (proration.Preview, error) {
	const op = "billing.Preview"

	current, target, err := s.load(ctx, username, planID)
	if err != nil {
		return proration.Preview{}, fmt.Errorf("%s: %w", op, err)
	}
	preview, err := proration.Estimate(current.Snapshot(), target.Snapshot(), s.now())
	if err != nil {
		return proration.Preview{}, fmt.Errorf("%s: %w", op, err)
	}
	metrics.PlanChanges.WithLabelValues(metrics.StagePreview, string(preview.UpgradeType)).Inc()
	s.log.Debug("plan change preview", sl.Op(op),
		slog.String("username", username),
		slog.String("upgrade_type", string(preview.UpgradeType)),
		slog.Int64("amount_due_cents", preview.AmountDueCents))
	return preview, nil
}

// Confirm подтверждает переход на тариф planID. Тип перехода определяется
// заново, а сумма к оплате берётся из ответа провайдера. Пустой
// idempotencyKey заменяется сгенерированным.
func (s *Service) Confirm(ctx context.Context, username string, planID int, idempotencyKey string) (*models.PlanChangeResult, error) {
	const op = "billing.Confirm"
	log := s.log.With(sl.Op(op), slog.String("username", username), slog.Int("plan_id", planID))

	current, target, err := s.load(ctx, username, planID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	upgradeType, err := proration.Classify(current.Snapshot(), target.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	userUID, err := s.userUID(ctx, current, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	metadata := map[string]string{
		"user_uid":     userUID,
		"plan_id":      strconv.Itoa(target.ID),
		"upgrade_type": string(upgradeType),
	}
	confirmation := &paymentprovider.Confirmation{Type: "redirect", ReturnURL: s.provider.ReturnURL()}
	amount := paymentprovider.AmountFromCents(target.PriceCents)

	var payment *paymentprovider.Payment
	switch upgradeType {
	case proration.NewSubscription:
		payment, err = s.provider.CreateCheckout(ctx, paymentprovider.CheckoutRequest{
			Amount:            amount,
			Description:       "Subscription " + target.Name,
			Confirmation:      confirmation,
			SavePaymentMethod: true,
			Capture:           true,
			Metadata:          metadata,
		}, idempotencyKey)
	case proration.PlanChange:
		if current.ProviderSubscriptionID == "" {
			return nil, fmt.Errorf("%s: %w", op, ErrNoProviderSubscription)
		}
		payment, err = s.provider.UpdateSubscription(ctx, current.ProviderSubscriptionID,
			paymentprovider.SubscriptionUpdateRequest{
				PlanName: target.Name,
				Amount:   amount,
				Prorate:  true,
				Metadata: metadata,
			}, idempotencyKey)
	case proration.ImmediateCharge:
		payment, err = s.provider.CreateCharge(ctx, paymentprovider.ChargeRequest{
			Amount:       amount,
			Description:  "One-time purchase " + target.Name,
			Confirmation: confirmation,
			Capture:      true,
			Metadata:     metadata,
		}, idempotencyKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	amountDue, err := payment.Amount.Cents()
	if err != nil {
		return nil, fmt.Errorf("%s: invalid provider amount: %w", op, err)
	}

	if err := s.repo.SavePendingPlanChange(ctx, userUID, target.ID, payment.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.PlanChanges.WithLabelValues(metrics.StageConfirm, string(upgradeType)).Inc()

	event := models.PlanChangedEvent{
		EventID:     uuid.NewString(),
		Username:    username,
		PlanID:      target.ID,
		UpgradeType: upgradeType,
		PaymentID:   payment.ID,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.pub.Publish(rabbitmq.RoutingPlanChanged, event); err != nil {
		log.Warn("failed to publish plan change event", sl.Err(err))
	}

	result := &models.PlanChangeResult{
		UpgradeType:    upgradeType,
		PaymentID:      payment.ID,
		Status:         payment.Status,
		AmountDueCents: amountDue,
	}
	if payment.Confirmation != nil {
		result.ConfirmationURL = payment.Confirmation.ConfirmationURL
	}
	log.Info("plan change confirmed",
		slog.String("upgrade_type", string(upgradeType)),
		slog.String("payment_id", payment.ID))
	return result, nil
}

// load возвращает текущий тариф пользователя (nil, если записи нет) и целевой тариф.
func (s *Service) load(ctx context.Context, username string, planID int) (*models.UserBilling, *models.Plan, error) {
	target, err := s.repo.GetPlan(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	current, err := s.repo.GetUserBilling(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, target, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return current, target, nil
}

func (s *Service) userUID(ctx context.Context, current *models.UserBilling, username string) (string, error) {
	if current != nil {
		return current.UserUID, nil
	}
	uid, err := s.repo.GetUserUID(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUserNotFound
	}
	return uid, err
}
