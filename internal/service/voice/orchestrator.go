package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/ports"
	"github.com/seu-repo/drivethru-voice/internal/service/interruption"
	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
)

// Event bus subjects.
const (
	SubjectSession      = "voice.session"
	SubjectTurn         = "voice.turn"
	SubjectInterruption = "voice.interruption"
)

// LanguageDetector is the subset of language.Detector sessions use.
type LanguageDetector interface {
	Detect(text, context string) domain.LanguageDetection
	ShouldSwitch(current, detected domain.Language, confidence float64, turns int) bool
}

// Understander is the subset of nlu.Engine sessions use.
type Understander interface {
	Process(ctx context.Context, req nlu.Request) *domain.NLUResult
}

type Config struct {
	SampleRate      int
	DefaultLanguage domain.Language
	QueueSize       int
	Interruption    interruption.Config
}

type Dependencies struct {
	STT       ports.SpeechToText
	TTS       ports.TextToSpeech
	VAD       ports.VoiceActivityDetector
	Languages LanguageDetector
	NLU       Understander
	Events    ports.EventPublisher
	Pool      *InferencePool
}

// Event is the envelope published to the event bus.
type Event struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	ConnectionID string    `json:"connection_id"`
	BranchID     int64     `json:"branch_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
	Data         any       `json:"data,omitempty"`
}

// Orchestrator accepts connections and runs one Session per client.
type Orchestrator struct {
	cfg       Config
	stt       ports.SpeechToText
	tts       ports.TextToSpeech
	vad       ports.VoiceActivityDetector
	languages LanguageDetector
	nlu       Understander
	events    ports.EventPublisher
	pool      *InferencePool
	registry  *Registry
	log       *zap.Logger
}

func NewOrchestrator(cfg Config, deps Dependencies, log *zap.Logger) *Orchestrator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = domain.LanguageArabic
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Interruption.SampleRate <= 0 {
		cfg.Interruption.SampleRate = cfg.SampleRate
	}
	pool := deps.Pool
	if pool == nil {
		pool = NewInferencePool(4)
	}
	return &Orchestrator{
		cfg:       cfg,
		stt:       deps.STT,
		tts:       deps.TTS,
		vad:       deps.VAD,
		languages: deps.Languages,
		nlu:       deps.NLU,
		events:    deps.Events,
		pool:      pool,
		registry:  NewRegistry(),
		log:       log,
	}
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Serve runs a session on conn until the client disconnects. An empty
// clientID gets a generated one. The registry entry is removed before Serve
// returns.
func (o *Orchestrator) Serve(ctx context.Context, conn Conn, clientID string, branchID int64) error {
	if clientID == "" {
		clientID = uuid.NewString()
	}

	s := o.newSession(clientID, branchID, conn)
	if err := o.registry.Add(s); err != nil {
		s.sendError(err.Error())
		return err
	}
	defer o.registry.Remove(s.ID)

	s.log.Info("Client connected")
	o.publish(SubjectSession, s, map[string]string{"status": "connected"})

	start := time.Now()
	err := s.Run(ctx)

	o.publish(SubjectSession, s, map[string]any{
		"status":   "disconnected",
		"duration": time.Since(start).Seconds(),
		"turns":    s.turns,
	})
	if err != nil {
		s.log.Warn("Client session ended with error", zap.Error(err))
		return fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.log.Info("Client disconnected", zap.Duration("duration", time.Since(start)))
	return nil
}

func (o *Orchestrator) newSession(id string, branchID int64, conn Conn) *Session {
	log := o.log.With(zap.String("connection_id", id), zap.Int64("branch_id", branchID))
	s := &Session{
		ID:       id,
		BranchID: branchID,
		o:        o,
		conn:     conn,
		log:      log,
		language: o.cfg.DefaultLanguage,
		audio:    make(chan []byte, o.cfg.QueueSize),
		speech:   make(chan speechJob, o.cfg.QueueSize),
	}
	s.detector = interruption.NewDetector(o.cfg.Interruption, o.vad, s, log)
	s.setState(StateIdle)
	return s
}

func (o *Orchestrator) publish(subject string, s *Session, data any) {
	if o.events == nil {
		return
	}
	payload, err := json.Marshal(Event{
		ID:           uuid.NewString(),
		Type:         subject,
		ConnectionID: s.ID,
		BranchID:     s.BranchID,
		OccurredAt:   time.Now().UTC(),
		Data:         data,
	})
	if err != nil {
		o.log.Error("Failed to encode event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := o.events.Publish(subject, payload); err != nil {
		o.log.Warn("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
