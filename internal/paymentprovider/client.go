// Package paymentprovider клиент HTTP API платёжного провайдера
// (протокол в стиле ЮKassa: Basic-авторизация и ключ идемпотентности).
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/magabrotheeeer/subtrack/internal/config"
)

// DefaultURL адрес API, если в конфиге он не задан.
const DefaultURL = "https://api.yookassa.ru/v3"

// ErrUnexpectedStatus провайдер ответил кодом, отличным от 200 и 201.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client клиент платёжного провайдера.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	returnURL  string
	httpClient *http.Client
}

// NewClient создаёт новый клиент провайдера.
func NewClient(cfg config.PaymentProvider) *Client {
	apiURL := strings.TrimRight(cfg.ProviderURL, "/")
	if apiURL == "" {
		apiURL = DefaultURL
	}
	return &Client{
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		apiURL:     apiURL,
		returnURL:  cfg.ReturnURL,
		httpClient: &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

// ReturnURL адрес, куда провайдер вернёт пользователя после оплаты.
func (c *Client) ReturnURL() string {
	return c.returnURL
}

func (c *Client) newRequest(ctx context.Context, method, path, idempotencyKey string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotence-Key", idempotencyKey)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, op, path, idempotencyKey string, body any) (*Payment, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, idempotencyKey, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: %w: %s: %s", op, ErrUnexpectedStatus, resp.Status, bytes.TrimSpace(msg))
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}

// CreateCheckout создаёт платёжную сессию с сохранением способа оплаты
// для оформления новой подписки.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (*Payment, error) {
	return c.do(ctx, "paymentprovider.CreateCheckout", "/payments", idempotencyKey, req)
}

// UpdateSubscription меняет тариф действующей подписки у провайдера.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, req SubscriptionUpdateRequest, idempotencyKey string) (*Payment, error) {
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/change"
	return c.do(ctx, "paymentprovider.UpdateSubscription", path, idempotencyKey, req)
}

// CreateCharge создаёт разовое списание.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest, idempotencyKey string) (*Payment, error) {
	return c.do(ctx, "paymentprovider.CreateCharge", "/payments", idempotencyKey, req)
}
