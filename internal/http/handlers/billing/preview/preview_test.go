package preview

import (
	"bytes"
	"context"
	"errors"
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
	"github.com/magabrotheeeer/subtrack/internal/services/billing"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Preview(ctx context.Context, username string, planID int) (proration.Preview, error) {
	args := m.Called(ctx, username, planID)
	return args.Get(0).(proration.Preview), args.Error(1)
}

func TestPreviewHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "оценка смены тарифа",
			body: `{"plan_id":3}`,
			setupMock: func(m *MockService) {
				m.On("Preview", mock.Anything, "alice", 3).Return(proration.Preview{
					UpgradeType:    proration.PlanChange,
					CreditCents:    500,
					AmountDueCents: 9500,
					DaysRemaining:  15,
					IsEstimate:     true,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"amount_due_cents":9500`,
		},
		{
			name: "переход с пожизненного тарифа",
			body: `{"plan_id":2}`,
			setupMock: func(m *MockService) {
				m.On("Preview", mock.Anything, "alice", 2).
					Return(proration.Preview{}, fmt.Errorf("billing.Preview: %w", proration.ErrIneligible)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `cannot upgrade from lifetime plan`,
		},
		{
			name: "тариф не найден",
			body: `{"plan_id":99}`,
			setupMock: func(m *MockService) {
				m.On("Preview", mock.Anything, "alice", 99).
					Return(proration.Preview{}, billing.ErrPlanNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `plan not found`,
		},
		{
			name:           "нет plan_id",
			body:           `{}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field PlanID is a required field`,
		},
		{
			name: "внутренняя ошибка",
			body: `{"plan_id":2}`,
			setupMock: func(m *MockService) {
				m.On("Preview", mock.Anything, "alice", 2).
					Return(proration.Preview{}, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not preview plan change`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/billing/preview", bytes.NewBufferString(tt.body))
			ctx := context.WithValue(req.Context(), middlewarectx.User, "alice")

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
