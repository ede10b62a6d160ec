package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		db         PingFunc
		cache      PingFunc
		wantReady  bool
		wantStatus Status
	}{
		{"all healthy", ok, ok, true, StatusHealthy},
		{"cache down degrades", ok, down, true, StatusDegraded},
		{"database down", down, ok, false, StatusUnhealthy},
		{"nothing configured", nil, nil, true, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&Config{Database: tt.db, Cache: tt.cache}, zap.NewNop())

			resp := svc.Ready(context.Background())

			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestReady_OpenBreakerDegrades(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	manager := circuitbreaker.NewManager(circuitbreaker.DefaultSettings(), zap.NewNop())
	client := circuitbreaker.NewHTTPClient("llm", time.Second, manager, zap.NewNop())
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		client.Do(req)
	}

	svc := NewService(&Config{Breakers: manager, Backends: []string{"llm", "stt"}}, zap.NewNop())

	// Act
	resp := svc.Ready(context.Background())

	// Assert
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDegraded, resp.Checks["llm"].Status)
	assert.Equal(t, StatusHealthy, resp.Checks["stt"].Status)
}

func TestFiberHandler(t *testing.T) {
	svc := NewService(&Config{Version: "1.2.0", Database: down}, zap.NewNop())
	app := fiber.New()
	NewFiberHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "1.2.0", health.Version)

	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

type sessionCount int

func (n sessionCount) Len() int { return int(n) }

type nluStub struct{ modelLoaded bool }

func (s nluStub) Health() nlu.Health { return nlu.Health{Service: "nlu", ModelLoaded: s.modelLoaded} }

func TestFiberHandler_VoiceStatus(t *testing.T) {
	// Arrange
	svc := NewService(&Config{Version: "1.2.0"}, zap.NewNop())
	handler := NewFiberHandler(svc, WithSessions(sessionCount(3)), WithNLU(nluStub{modelLoaded: false}))
	app := fiber.New()
	handler.RegisterRoutes(app)

	// Act
	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)

	// Assert
	var live LivenessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&live))
	assert.Equal(t, "1.2.0", live.Version)
	require.NotNil(t, live.Voice)
	assert.Equal(t, 3, live.Voice.ActiveSessions)
	assert.Equal(t, "rules", live.Voice.IntentSource)
	assert.False(t, live.Voice.Draining)

	resp, err = app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var ready ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.Equal(t, StatusHealthy, ready.Checks["voice"].Status)
	assert.Equal(t, "3 active sessions, intents from rules", ready.Checks["voice"].Message)
}

func TestFiberHandler_DrainFailsReadiness(t *testing.T) {
	svc := NewService(&Config{Database: ok}, zap.NewNop())
	handler := NewFiberHandler(svc, WithSessions(sessionCount(1)), WithNLU(nluStub{modelLoaded: true}))
	app := fiber.New()
	handler.RegisterRoutes(app)

	handler.Drain()

	resp, err := app.Test(httptest.NewRequest("GET", "/readyz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	var ready ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.False(t, ready.Ready)
	assert.Equal(t, StatusUnhealthy, ready.Checks["voice"].Status)
	assert.Equal(t, StatusHealthy, ready.Checks["database"].Status)

	// liveness is unaffected
	resp, err = app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var live LivenessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&live))
	assert.True(t, live.Voice.Draining)
	assert.Equal(t, "model", live.Voice.IntentSource)
}
