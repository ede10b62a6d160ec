package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/pkg/config"
)

// Errors
var (
	ErrCircuitOpen     = gobreaker.ErrOpenState
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// Settings configures every breaker a Manager creates
type Settings struct {
	Disabled bool

	// MaxRequests is the number of probes allowed while half-open
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which counts
	// are cleared
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration

	// FailureRatio trips the breaker once MinRequests have been seen
	FailureRatio float64
	MinRequests  uint32
}

// DefaultSettings returns default circuit breaker settings
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  3,
		Interval:     10 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

// FromConfig maps the circuit_breaker config section onto Settings
func FromConfig(cfg config.CircuitBreakerConfig) Settings {
	s := DefaultSettings()
	s.Disabled = !cfg.Enabled
	if cfg.MaxRequests > 0 {
		s.MaxRequests = uint32(cfg.MaxRequests)
		s.MinRequests = uint32(cfg.MaxRequests)
	}
	if cfg.Interval > 0 {
		s.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		s.Timeout = cfg.Timeout
	}
	if cfg.FailureThreshold > 0 {
		s.FailureRatio = cfg.FailureThreshold
	}
	return s
}

// Manager manages one circuit breaker per backend
type Manager struct {
	settings Settings
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewManager creates a new circuit breaker manager
func NewManager(settings Settings, log *zap.Logger) *Manager {
	return &Manager{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		log:      log,
	}
}

// Get returns the breaker for name, creating it if it doesn't exist. It
// returns nil when breakers are disabled.
func (m *Manager) Get(name string) *gobreaker.CircuitBreaker {
	if m == nil || m.settings.Disabled {
		return nil
	}

	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists = m.breakers[name]; exists {
		return cb
	}

	s := m.settings
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	m.breakers[name] = cb
	return cb
}

// State reports the named breaker's state; unknown breakers read as closed
func (m *Manager) State(name string) gobreaker.State {
	if m == nil {
		return gobreaker.StateClosed
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cb, ok := m.breakers[name]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

// Status returns the status of all circuit breakers
func (m *Manager) Status() map[string]BreakerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]BreakerStatus, len(m.breakers))
	for name, cb := range m.breakers {
		counts := cb.Counts()
		status[name] = BreakerStatus{
			Name:     name,
			State:    cb.State().String(),
			Requests: counts.Requests,
			Failures: counts.TotalFailures,
		}
	}
	return status
}

// BreakerStatus represents the status of a circuit breaker
type BreakerStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Requests uint32 `json:"requests"`
	Failures uint32 `json:"failures"`
}

// IsCircuitOpen checks if the error is due to an open or saturated circuit
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}
