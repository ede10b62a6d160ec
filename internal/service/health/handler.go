package health

import (
	"fmt"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
)

// SessionCounter reports live voice sessions.
type SessionCounter interface {
	Len() int
}

// NLUReporter reports whether intents come from the model or the rules.
type NLUReporter interface {
	Health() nlu.Health
}

// VoiceStatus is the voice pipeline block of the health responses
type VoiceStatus struct {
	ActiveSessions int    `json:"active_sessions"`
	IntentSource   string `json:"intent_source,omitempty"`
	Draining       bool   `json:"draining"`
}

// LivenessResponse is HealthResponse plus the voice pipeline state
type LivenessResponse struct {
	*HealthResponse
	Voice *VoiceStatus `json:"voice,omitempty"`
}

type HandlerOption func(*FiberHandler)

// WithSessions reports the live session count under "voice".
func WithSessions(sessions SessionCounter) HandlerOption {
	return func(h *FiberHandler) { h.sessions = sessions }
}

// WithNLU reports the intent source under "voice".
func WithNLU(engine NLUReporter) HandlerOption {
	return func(h *FiberHandler) { h.nlu = engine }
}

// FiberHandler creates Fiber routes for health checks
type FiberHandler struct {
	service  *Service
	sessions SessionCounter
	nlu      NLUReporter
	draining atomic.Bool
}

// NewFiberHandler creates a new Fiber health handler
func NewFiberHandler(service *Service, opts ...HandlerOption) *FiberHandler {
	h := &FiberHandler{service: service}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Drain marks the instance not ready. Connected sessions are left alone.
func (h *FiberHandler) Drain() {
	h.draining.Store(true)
}

// RegisterRoutes registers health check routes
func (h *FiberHandler) RegisterRoutes(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/healthz", h.Health) // Kubernetes alias
	app.Get("/ready", h.Ready)
	app.Get("/readyz", h.Ready) // Kubernetes alias
}

func (h *FiberHandler) voiceStatus() *VoiceStatus {
	if h.sessions == nil && h.nlu == nil {
		return nil
	}
	status := &VoiceStatus{Draining: h.draining.Load()}
	if h.sessions != nil {
		status.ActiveSessions = h.sessions.Len()
	}
	if h.nlu != nil {
		status.IntentSource = "rules"
		if h.nlu.Health().ModelLoaded {
			status.IntentSource = "model"
		}
	}
	return status
}

// Health handles the liveness probe
func (h *FiberHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(LivenessResponse{
		HealthResponse: h.service.Health(c.UserContext()),
		Voice:          h.voiceStatus(),
	})
}

// Ready handles the readiness probe. A draining instance is never ready.
func (h *FiberHandler) Ready(c *fiber.Ctx) error {
	response := h.service.Ready(c.UserContext())

	if voice := h.voiceStatus(); voice != nil || h.draining.Load() {
		check := CheckResult{Name: "voice", Status: StatusHealthy, Timestamp: response.Timestamp}
		if voice != nil {
			check.Message = fmt.Sprintf("%d active sessions", voice.ActiveSessions)
			if voice.IntentSource != "" {
				check.Message += ", intents from " + voice.IntentSource
			}
		}
		if h.draining.Load() {
			check.Status = StatusUnhealthy
			check.Message = "draining"
			response.Ready = false
			response.Status = StatusUnhealthy
		}
		response.Checks["voice"] = check
	}

	status := fiber.StatusOK
	if !response.Ready {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(response)
}
