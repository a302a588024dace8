package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	_ "github.com/epandurski/swpt-debtors/internal/metrics"
)

// MockPinger is a mock implementation of Pinger for testing
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) PingContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name         string
		pingErr      error
		expectedCode int
		expectedBody string
	}{
		{name: "Healthy", expectedCode: http.StatusOK, expectedBody: `{"status":"ok"}`},
		{name: "Database Down", pingErr: errors.New("connection refused"), expectedCode: http.StatusServiceUnavailable, expectedBody: `{"error":"connection refused","status":"unavailable"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(MockPinger)
			db.On("PingContext", mock.Anything).Return(tt.pingErr)
			rec := httptest.NewRecorder()

			NewRouter(db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
			db.AssertExpectations(t)
		})
	}
}

func TestHealthWithoutDatabase(t *testing.T) {
	rec := httptest.NewRecorder()

	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	rec := httptest.NewRecorder()

	NewRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
