package confirm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subtrack/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subtrack/internal/lib/proration"
	"github.com/magabrotheeeer/subtrack/internal/models"
	"github.com/magabrotheeeer/subtrack/internal/paymentprovider"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Confirm(ctx context.Context, username string, planID int, key string) (*models.PlanChangeResult, error) {
	args := m.Called(ctx, username, planID, key)
	if res := args.Get(0); res != nil {
		return res.(*models.PlanChangeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestConfirmHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		key            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "подтверждение с ключом идемпотентности",
			key:  "idem-1",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, "alice", 3, "idem-1").Return(&models.PlanChangeResult{
					UpgradeType:    proration.PlanChange,
					PaymentID:      "pay_1",
					Status:         paymentprovider.StatusSucceeded,
					AmountDueCents: 9507,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"amount_due_cents":9507`,
		},
		{
			name: "с пожизненного тарифа",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, "alice", 3, "").
					Return(nil, fmt.Errorf("billing.Confirm: %w", proration.ErrIneligible)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `cannot upgrade from lifetime plan`,
		},
		{
			name: "провайдер отклонил запрос",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, "alice", 3, "").
					Return(nil, fmt.Errorf("billing.Confirm: %w", paymentprovider.ErrUnexpectedStatus)).Once()
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `payment provider error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/billing/confirm", bytes.NewBufferString(`{"plan_id":3}`))
			if tt.key != "" {
				req.Header.Set(IdempotencyHeader, tt.key)
			}
			ctx := context.WithValue(req.Context(), middlewarectx.User, "alice")

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
