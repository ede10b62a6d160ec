package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// CheckResult represents the result of a health check
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness response
type ReadyResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Checker defines a health check function
type Checker func(ctx context.Context) CheckResult

// PingFunc probes a dependency
type PingFunc func(ctx context.Context) error

// Service handles health checks
type Service struct {
	startTime time.Time
	version   string
	checkers  map[string]Checker
	log       *zap.Logger
	mu        sync.RWMutex
}

// Config holds health service configuration. Nil probes are skipped.
type Config struct {
	Version  string
	Database PingFunc
	Cache    PingFunc
	Breakers *circuitbreaker.Manager
	// Backends lists the breakers reported by the readiness probe
	Backends []string
}

// NewService creates a new health service
func NewService(config *Config, log *zap.Logger) *Service {
	s := &Service{
		startTime: time.Now(),
		version:   config.Version,
		checkers:  make(map[string]Checker),
		log:       log,
	}

	// Register default checkers
	if config.Database != nil {
		s.RegisterChecker("database", pingChecker("database", config.Database, StatusUnhealthy, log))
	}
	if config.Cache != nil {
		// catalog lookups fall through to the database without a cache
		s.RegisterChecker("cache", pingChecker("cache", config.Cache, StatusDegraded, log))
	}
	if config.Breakers != nil {
		for _, name := range config.Backends {
			s.RegisterChecker(name, breakerChecker(name, config.Breakers))
		}
	}

	return s
}

// RegisterChecker registers a custom health checker
func (s *Service) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.log.Info("Registered health checker", zap.String("name", name))
}

// Health performs a basic liveness check
func (s *Service) Health(ctx context.Context) *HealthResponse {
	return &HealthResponse{
		Status:    StatusHealthy,
		Version:   s.version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now(),
	}
}

// Ready runs every registered check concurrently. Degraded checks keep the
// service ready; a single unhealthy check does not.
func (s *Service) Ready(ctx context.Context) *ReadyResponse {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for k, v := range s.checkers {
		checkers[k] = v
	}
	s.mu.RUnlock()

	results := make(map[string]CheckResult)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			result := checker(checkCtx)

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, checker)
	}

	wg.Wait()

	overallStatus := StatusHealthy
	allReady := true

	for _, result := range results {
		if result.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			allReady = false
		} else if result.Status == StatusDegraded && overallStatus != StatusUnhealthy {
			overallStatus = StatusDegraded
		}
	}

	return &ReadyResponse{
		Ready:     allReady,
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

func pingChecker(name string, ping PingFunc, onFailure Status, log *zap.Logger) Checker {
	return func(ctx context.Context) CheckResult {
		start := time.Now()
		err := ping(ctx)
		result := CheckResult{
			Name:      name,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}

		if err != nil {
			result.Status = onFailure
			result.Message = fmt.Sprintf("ping failed: %v", err)
			log.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		} else {
			result.Status = StatusHealthy
			result.Message = "connection ok"
		}
		return result
	}
}

// breakerChecker reports an open breaker as degraded: the session falls back
// to rule-based intents and error messages instead of going down.
func breakerChecker(name string, breakers *circuitbreaker.Manager) Checker {
	return func(ctx context.Context) CheckResult {
		state := breakers.State(name)
		result := CheckResult{
			Name:      name,
			Status:    StatusHealthy,
			Message:   "circuit " + state.String(),
			Timestamp: time.Now(),
		}
		if state != gobreaker.StateClosed {
			result.Status = StatusDegraded
		}
		return result
	}
}
