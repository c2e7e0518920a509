package paymentprovider

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency валюта всех платежей сервиса.
const DefaultCurrency = "RUB"

// Статусы платежа у провайдера.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

// Amount денежная сумма в формате провайдера, например "200.00".
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// AmountFromCents переводит сумму в копейках в формат провайдера.
func AmountFromCents(cents int64) Amount {
	return Amount{
		Value:    decimal.New(cents, -2).StringFixed(2),
		Currency: DefaultCurrency,
	}
}

// Cents переводит сумму провайдера в копейки.
func (a Amount) Cents() (int64, error) {
	d, err := decimal.NewFromString(a.Value)
	if err != nil {
		return 0, err
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// Confirmation способ подтверждения платежа пользователем.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// CheckoutRequest запрос на создание платёжной сессии для новой подписки.
type CheckoutRequest struct {
	Amount            Amount            `json:"amount"`
	Description       string            `json:"description,omitempty"`
	Confirmation      *Confirmation     `json:"confirmation,omitempty"`
	SavePaymentMethod bool              `json:"save_payment_method"`
	Capture           bool              `json:"capture"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// ChargeRequest запрос на разовое списание.
type ChargeRequest struct {
	Amount       Amount            `json:"amount"`
	Description  string            `json:"description,omitempty"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Capture      bool              `json:"capture"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SubscriptionUpdateRequest запрос на смену тарифа действующей подписки.
// Перерасчёт суммы выполняет провайдер.
type SubscriptionUpdateRequest struct {
	PlanName string            `json:"plan_name"`
	Amount   Amount            `json:"amount"`
	Prorate  bool              `json:"prorate"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Payment ответ провайдера на любой из запросов.
type Payment struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Amount       Amount        `json:"amount"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
