package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/service/interruption"
	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
)

// Conn is the bidirectional frame channel of one client.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

type State int32

const (
	StateIdle State = iota
	StateListening
	StateRepliedOrWaiting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateRepliedOrWaiting:
		return "replied_or_waiting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type speechJob struct {
	req domain.SpeechRequest
	// stop generation the job was accepted in
	epoch int64
}

// Session is the state of one connected client. The read loop owns the
// connection reads; audio and speech run on their own workers so a slow
// model call never delays a stop message.
type Session struct {
	ID       string
	BranchID int64

	o        *Orchestrator
	conn     Conn
	detector *interruption.Detector
	log      *zap.Logger

	writeMu sync.Mutex
	state   atomic.Int32

	langMu   sync.RWMutex
	language domain.Language

	// owned by the audio worker
	turns    int
	lastText string

	audio  chan []byte
	speech chan speechJob

	// replyMu orders pendingReplies with the detector's reply flag
	replyMu        sync.Mutex
	pendingReplies int
	replyEpoch     atomic.Int64
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// ReplyInProgress reports whether the assistant is currently speaking.
func (s *Session) ReplyInProgress() bool {
	return s.detector.ReplyInProgress()
}

// Language is the session's current language preference.
func (s *Session) Language() domain.Language {
	s.langMu.RLock()
	defer s.langMu.RUnlock()
	return s.language
}

func (s *Session) setLanguage(l domain.Language) {
	s.langMu.Lock()
	s.language = l
	s.langMu.Unlock()
}

// Run processes frames until the connection closes. Normal closure returns
// nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.audioWorker(gctx) })
	g.Go(func() error { return s.speechWorker(gctx) })

	s.setState(StateListening)
	err := s.readLoop(ctx)

	cancel()
	close(s.audio)
	close(s.speech)
	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}

	s.detector.Reset()
	s.setState(StateClosed)

	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Session) readLoop(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Session panicked", zap.Any("panic", r))
			s.sendError(fmt.Sprintf("Internal error: %v", r))
			err = fmt.Errorf("session panic: %v", r)
		}
	}()

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		s.setState(StateListening)

		switch mt {
		case BinaryMessage:
			s.handleAudio(ctx, data)
		case TextMessage:
			s.handleControl(data)
		default:
			s.log.Debug("Ignoring frame", zap.Int("message_type", mt))
		}
	}
}

func (s *Session) handleAudio(ctx context.Context, frame []byte) {
	if len(frame) == 0 || len(frame)%2 != 0 {
		s.sendError(fmt.Sprintf("Audio processing failed: %v", ErrMalformedAudio))
		return
	}

	if s.detector.ReplyInProgress() {
		s.detector.Detect(ctx, frame, s.o.cfg.SampleRate)
	}

	select {
	case s.audio <- frame:
	default:
		s.log.Warn("Audio queue full, dropping frame", zap.Int("bytes", len(frame)))
		s.sendError("Audio processing failed: audio queue full")
	}
}

func (s *Session) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn("Malformed control message", zap.Error(err))
		s.sendError("Invalid control message")
		return
	}

	switch msg.Type {
	case TypeTTSRequest:
		if strings.TrimSpace(msg.Text) == "" {
			s.sendError("Text is required")
			return
		}
		lang := domain.ParseLanguage(msg.Language, s.Language())
		job := speechJob{
			req:   domain.SpeechRequest{Text: msg.Text, Language: lang, VoiceConfig: msg.VoiceConfig},
			epoch: s.replyEpoch.Load(),
		}
		// the reply counts from acceptance so barge-in is watched while queued
		s.acceptReply()
		select {
		case s.speech <- job:
		default:
			s.finishReply()
			s.sendError("TTS failed: speech queue full")
		}

	case TypeConfig:
		s.log.Info("Session config received", zap.ByteString("data", msg.Data))
		s.send(TypeConfigAck, StatusData{Status: "ok"})

	case TypeStop:
		s.replyMu.Lock()
		s.replyEpoch.Add(1)
		s.detector.SetReplyInProgress(false)
		s.replyMu.Unlock()
		s.send(TypeStopAck, StatusData{Status: "stopped"})

	default:
		s.log.Warn("Unknown control message", zap.String("type", msg.Type))
	}
}

func (s *Session) audioWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-s.audio:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			s.guard("Audio processing failed", func() { s.processTurn(ctx, frame) })
		}
	}
}

func (s *Session) speechWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-s.speech:
			if !ok {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			s.guard("TTS failed", func() { s.speak(ctx, job) })
		}
	}
}

// guard keeps a worker alive through a panic in one job.
func (s *Session) guard(prefix string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Worker panicked", zap.Any("panic", r))
			s.sendError(fmt.Sprintf("%s: %v", prefix, r))
		}
	}()
	fn()
}

// processTurn runs STT, language detection and NLU on one audio frame.
func (s *Session) processTurn(ctx context.Context, frame []byte) {
	ctx, span := telemetry.Tracer().Start(ctx, "voice.turn")
	defer span.End()

	samples, err := DecodePCM16(frame)
	if err != nil {
		s.sendError(fmt.Sprintf("Audio processing failed: %v", err))
		return
	}
	if s.o.stt == nil {
		s.sendError(fmt.Sprintf("Audio processing failed: speech-to-text %v", ErrNotConfigured))
		return
	}

	var tr *domain.Transcription
	err = s.o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		tr, err = s.o.stt.Transcribe(ctx, samples, s.o.cfg.SampleRate, s.Language())
		return err
	})
	if err != nil {
		telemetry.BackendErrorsTotal.WithLabelValues("stt").Inc()
		s.log.Error("Transcription failed", zap.Error(err))
		s.sendError(fmt.Sprintf("Audio processing failed: %v", err))
		return
	}

	if tr == nil {
		tr = &domain.Transcription{}
	}
	text := strings.TrimSpace(tr.Text)
	detection := s.o.languages.Detect(text, s.lastText)
	span.SetAttributes(attribute.String("language", string(detection.Language)))

	var result *domain.NLUResult
	if text != "" {
		s.turns++
		current := s.Language()
		if s.o.languages.ShouldSwitch(current, detection.Language, detection.Confidence, s.turns) {
			s.setLanguage(detection.Language)
			s.log.Info("Session language switched",
				zap.String("from", string(current)),
				zap.String("to", string(detection.Language)),
			)
		}

		req := nlu.Request{
			Text:     text,
			Language: detection.Language,
			Context:  nlu.Context{"turn": s.turns}.WithPreviousText(s.lastText),
		}
		if s.BranchID > 0 {
			branch := s.BranchID
			req.BranchID = &branch
		}
		result = s.o.nlu.Process(ctx, req)
		s.lastText = text
	}

	telemetry.TranscriptionsTotal.WithLabelValues(string(detection.Language)).Inc()
	s.send(TypeTranscription, TranscriptionData{
		Text:              tr.Text,
		Confidence:        tr.Confidence,
		Language:          detection.Language,
		IsCodeSwitching:   detection.CodeSwitching,
		SecondaryLanguage: detection.SecondaryLanguage,
	})

	if result == nil {
		return
	}
	s.setState(StateRepliedOrWaiting)
	s.send(TypeNLU, result)

	s.o.publish(SubjectTurn, s, map[string]any{
		"text":        text,
		"language":    detection.Language,
		"intent":      result.Intent.Type,
		"confidence":  result.Intent.Confidence,
		"turn":        s.turns,
		"code_switch": detection.CodeSwitching,
	})
}

func (s *Session) acceptReply() {
	s.replyMu.Lock()
	defer s.replyMu.Unlock()
	s.pendingReplies++
	s.detector.SetReplyInProgress(true)
}

// finishReply retires one accepted reply and clears the reply flag once
// none are left.
func (s *Session) finishReply() {
	s.replyMu.Lock()
	defer s.replyMu.Unlock()
	if s.pendingReplies > 0 {
		s.pendingReplies--
	}
	if s.pendingReplies == 0 {
		s.detector.SetReplyInProgress(false)
	}
}

// speak synthesizes one reply. Jobs accepted before the last stop are
// dropped. The reply is retired on every exit path before the client hears
// about the outcome.
func (s *Session) speak(ctx context.Context, job speechJob) {
	finished := false
	finish := func() {
		if !finished {
			finished = true
			s.finishReply()
		}
	}
	defer finish()

	if job.epoch != s.replyEpoch.Load() {
		s.log.Debug("Dropping reply stopped before synthesis", zap.String("text", job.req.Text))
		return
	}

	ctx, span := telemetry.Tracer().Start(ctx, "voice.tts")
	defer span.End()

	if s.o.tts == nil {
		finish()
		s.sendError(fmt.Sprintf("TTS failed: text-to-speech %v", ErrNotConfigured))
		return
	}

	var speech *domain.Speech
	err := s.o.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		speech, err = s.o.tts.Synthesize(ctx, job.req)
		return err
	})
	if err == nil && speech == nil {
		err = errors.New("empty synthesis result")
	}
	if err != nil {
		finish()
		telemetry.BackendErrorsTotal.WithLabelValues("tts").Inc()
		s.log.Error("Speech synthesis failed", zap.Error(err))
		s.sendError(fmt.Sprintf("TTS failed: %v", err))
		return
	}

	if err := s.write(BinaryMessage, speech.Audio); err != nil {
		s.log.Warn("Failed to stream reply audio", zap.Error(err))
	}
	finish()
	s.setState(StateRepliedOrWaiting)
	s.send(TypeTTSComplete, TTSCompleteData{
		Duration:   speech.Duration,
		SampleRate: speech.SampleRate,
		Format:     speech.Format,
	})
}

// OnInterruption forwards barge-in events to the client and the event bus.
func (s *Session) OnInterruption(_ context.Context, ev domain.InterruptionEvent) error {
	s.o.publish(SubjectInterruption, s, ev)
	return s.send(TypeInterruption, InterruptionData{
		DetectedAt: ev.DetectedAt.Format(time.RFC3339Nano),
		Confidence: ev.Confidence,
		AudioLevel: ev.AudioLevel,
	})
}

func (s *Session) send(msgType string, data any) error {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msgType, err)
	}
	if err := s.write(TextMessage, payload); err != nil {
		s.log.Warn("Failed to send message", zap.String("type", msgType), zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) sendError(message string) {
	s.send(TypeError, ErrorData{Message: message})
}

func (s *Session) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}
