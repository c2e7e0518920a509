package list

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subtrack/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subtrack/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, username, role string, limit, offset int) ([]*models.Entry, error) {
	args := m.Called(ctx, username, role, limit, offset)
	if res := args.Get(0); res != nil {
		return res.([]*models.Entry), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestListHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "параметры по умолчанию",
			query: "",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, "alice", "user", 10, 0).
					Return([]*models.Entry{{ID: 1}, {ID: 2}}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"list_count":2`,
		},
		{
			name:  "лимит ограничен сверху",
			query: "?limit=1000&offset=20",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, "alice", "user", 100, 20).Return([]*models.Entry{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"list_count":0`,
		},
		{
			name:  "ошибка сервиса",
			query: "?limit=5&offset=-1",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, "alice", "user", 5, 0).Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `failed to list`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, "/subscriptions/list"+tt.query, nil)
			ctx := context.WithValue(req.Context(), middlewarectx.User, "alice")
			ctx = context.WithValue(ctx, middlewarectx.Role, "user")

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
