package circuitbreaker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/pkg/config"
)

func get(t *testing.T, c *HTTPClient, url string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	return c.Do(req)
}

func TestHTTPClient_OpensAfterServerErrors(t *testing.T) {
	// Arrange
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model crashed", http.StatusBadGateway)
	}))
	defer srv.Close()

	manager := NewManager(DefaultSettings(), zap.NewNop())
	client := NewHTTPClient("llm", time.Second, manager, zap.NewNop())

	// Act
	for i := 0; i < 3; i++ {
		_, err := get(t, client, srv.URL)
		var se *ServerError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	}
	_, err := get(t, client, srv.URL)

	// Assert
	assert.True(t, IsCircuitOpen(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, gobreaker.StateOpen, manager.State("llm"))
	assert.Equal(t, "open", manager.Status()["llm"].State)
}

func TestHTTPClient_ClientErrorsPassThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewHTTPClient("stt", time.Second, NewManager(DefaultSettings(), zap.NewNop()), zap.NewNop())

	for i := 0; i < 5; i++ {
		resp, err := get(t, client, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestManager_Disabled(t *testing.T) {
	manager := NewManager(FromConfig(config.CircuitBreakerConfig{Enabled: false}), zap.NewNop())

	assert.Nil(t, manager.Get("tts"))
	assert.Equal(t, gobreaker.StateClosed, manager.State("tts"))
}

func TestFromConfig(t *testing.T) {
	s := FromConfig(config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          time.Second,
		FailureThreshold: 0.5,
	})

	assert.False(t, s.Disabled)
	assert.Equal(t, uint32(5), s.MaxRequests)
	assert.Equal(t, time.Minute, s.Interval)
	assert.Equal(t, time.Second, s.Timeout)
	assert.Equal(t, 0.5, s.FailureRatio)
}
