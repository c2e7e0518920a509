package models

import (
	"time"

	"github.com/magabrotheeeer/subtrack/internal/lib/proration"
)

// Plan тариф самого сервиса.
type Plan struct {
	ID         int                 `json:"id"`
	Name       string              `json:"name"`
	PriceCents int64               `json:"price_cents"`
	Cycle      proration.PlanCycle `json:"billing_cycle"`
}

// Snapshot возвращает снимок тарифа для оценки перерасчёта.
func (p Plan) Snapshot() proration.Plan {
	return proration.Plan{Name: p.Name, PriceCents: p.PriceCents, Cycle: p.Cycle}
}

// UserBilling текущий тариф пользователя и ссылка на подписку у провайдера.
type UserBilling struct {
	UserUID                string     `json:"user_uid"`
	Username               string     `json:"username"`
	Plan                   Plan       `json:"plan"`
	ExpiresAt              *time.Time `json:"expires_at,omitempty"`
	ProviderSubscriptionID string     `json:"-"`
}

// Snapshot возвращает снимок текущей подписки для оценки перерасчёта.
func (u *UserBilling) Snapshot() *proration.Current {
	if u == nil {
		return nil
	}
	return &proration.Current{Plan: u.Plan.Snapshot(), ExpiresAt: u.ExpiresAt}
}

// PlanChangeRequest запрос на оценку или подтверждение смены тарифа.
type PlanChangeRequest struct {
	PlanID int `json:"plan_id" validate:"required,gt=0"`
}

// PlanChangeResult итог подтверждения смены тарифа. Сумма берётся из
// ответа платёжного провайдера.
type PlanChangeResult struct {
	UpgradeType     proration.UpgradeType `json:"upgrade_type"`
	PaymentID       string                `json:"payment_id"`
	Status          string                `json:"status"`
	AmountDueCents  int64                 `json:"amount_due_cents"`
	ConfirmationURL string                `json:"confirmation_url,omitempty"`
}

// PlanChangedEvent событие о смене тарифа для очереди.
type PlanChangedEvent struct {
	EventID     string                `json:"event_id"`
	Username    string                `json:"username"`
	PlanID      int                   `json:"plan_id"`
	UpgradeType proration.UpgradeType `json:"upgrade_type"`
	PaymentID   string                `json:"payment_id"`
	OccurredAt  time.Time             `json:"occurred_at"`
}

// RenewedEvent событие о переносе даты списания догоняющим пересчётом.
type RenewedEvent struct {
	EventID         string    `json:"event_id"`
	SubscriptionID  int       `json:"subscription_id"`
	Username        string    `json:"username"`
	ServiceName     string    `json:"service_name"`
	PreviousBilling time.Time `json:"previous_billing_date"`
	NextBillingDate time.Time `json:"next_billing_date"`
}
