package circuitbreaker

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
)

// HTTPClient wraps an HTTP client with circuit breaker protection. A nil
// breaker passes every request through.
type HTTPClient struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// NewHTTPClient creates a client for the named backend
func NewHTTPClient(name string, timeout time.Duration, manager *Manager, log *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		breaker: manager.Get(name),
		log:     log,
	}
}

func (c *HTTPClient) Name() string {
	return c.name
}

// ServerError is a 5xx answer from a backend.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, e.Body)
}

// Do executes an HTTP request with circuit breaker protection. 5xx answers
// count as failures and come back as *ServerError with the body closed.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	defer func() {
		telemetry.BackendRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	call := func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &ServerError{StatusCode: resp.StatusCode, Body: string(body)}
		}

		return resp, nil
	}

	var (
		result interface{}
		err    error
	)
	if c.breaker != nil {
		result, err = c.breaker.Execute(call)
	} else {
		result, err = call()
	}

	if err != nil {
		if IsCircuitOpen(err) {
			c.log.Warn("Circuit breaker open, request blocked",
				zap.String("url", req.URL.String()),
				zap.String("breaker", c.name),
			)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}
