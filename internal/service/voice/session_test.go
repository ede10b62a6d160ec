package voice

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/mocks"
	"github.com/seu-repo/drivethru-voice/internal/service/interruption"
	"github.com/seu-repo/drivethru-voice/internal/service/language"
	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
)

const waitTimeout = 2 * time.Second

type frame struct {
	mt   int
	data []byte
}

type fakeConn struct {
	in  chan frame
	out chan frame
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:  make(chan frame, 16),
		out: make(chan frame, 64),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	f, ok := <-c.in
	if !ok {
		return 0, nil, io.EOF
	}
	return f.mt, f.data, nil
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	c.out <- frame{mt: mt, data: append([]byte(nil), data...)}
	return nil
}

func (c *fakeConn) sendText(raw string) {
	c.in <- frame{mt: TextMessage, data: []byte(raw)}
}

func (c *fakeConn) sendAudio(pcm []byte) {
	c.in <- frame{mt: BinaryMessage, data: pcm}
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *fakeConn) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-c.out:
		return f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for outbound frame")
	}
	return frame{}
}

func (c *fakeConn) nextMessage(t *testing.T) received {
	t.Helper()
	f := c.next(t)
	require.Equal(t, TextMessage, f.mt, "expected a text frame")
	var msg received
	require.NoError(t, json.Unmarshal(f.data, &msg))
	return msg
}

type stubEstimator struct {
	probs map[domain.Language]float64
}

func (s stubEstimator) Estimate(string) (map[domain.Language]float64, error) {
	return s.probs, nil
}

func loudPCM(samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := 0.8 * math.Sin(2*math.Pi*300*float64(i)/16000)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*32767)))
	}
	return buf
}

type harness struct {
	o      *Orchestrator
	conn   *fakeConn
	events *mocks.MockMessageQueue
	done   chan error
}

func newHarness(t *testing.T, stt *mocks.MockSpeechToText, tts *mocks.MockTextToSpeech, est language.Estimator) *harness {
	t.Helper()
	log := zap.NewNop()

	events := mocks.NewMockMessageQueue()
	deps := Dependencies{
		Languages: language.NewDetector(language.Config{
			DefaultLanguage:      domain.LanguageArabic,
			Threshold:            0.8,
			CodeSwitchingEnabled: true,
		}, est, log),
		NLU:    nlu.NewEngine(nlu.DefaultConfig(), nil, log),
		Events: events,
		Pool:   NewInferencePool(2),
	}
	if stt != nil {
		deps.STT = stt
	}
	if tts != nil {
		deps.TTS = tts
	}

	o := NewOrchestrator(Config{
		SampleRate:      16000,
		DefaultLanguage: domain.LanguageArabic,
		QueueSize:       8,
		Interruption:    interruption.DefaultConfig(),
	}, deps, log)

	h := &harness{o: o, conn: newFakeConn(), events: events, done: make(chan error, 1)}
	go func() { h.done <- o.Serve(context.Background(), h.conn, "client-1", 0) }()

	require.Eventually(t, func() bool {
		_, ok := o.Registry().Get("client-1")
		return ok
	}, waitTimeout, 5*time.Millisecond)
	return h
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s, ok := h.o.Registry().Get("client-1")
	require.True(t, ok)
	return s
}

func (h *harness) close(t *testing.T) {
	t.Helper()
	close(h.conn.in)
	select {
	case err := <-h.done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("session did not shut down")
	}
}

func TestSession_TTSFailureClearsReplyFlag(t *testing.T) {
	// Arrange
	var h *harness
	var replyingDuringCall atomic.Bool
	tts := &mocks.MockTextToSpeech{
		SynthesizeFunc: func(context.Context, domain.SpeechRequest) (*domain.Speech, error) {
			replyingDuringCall.Store(h.session(t).ReplyInProgress())
			return nil, errors.New("synthesizer down")
		},
	}
	h = newHarness(t, nil, tts, nil)
	defer h.close(t)

	// Act
	h.conn.sendText(`{"type":"tts_request","text":"مرحبا بك","language":"ar"}`)
	errMsg := h.conn.nextMessage(t)

	// Assert
	assert.Equal(t, TypeError, errMsg.Type)
	assert.JSONEq(t, `{"message":"TTS failed: synthesizer down"}`, string(errMsg.Data))
	assert.True(t, replyingDuringCall.Load(), "reply flag must be set while synthesizing")
	assert.False(t, h.session(t).ReplyInProgress())

	h.conn.sendText(`{"type":"stop"}`)
	ack := h.conn.nextMessage(t)
	assert.Equal(t, TypeStopAck, ack.Type)
	assert.JSONEq(t, `{"status":"stopped"}`, string(ack.Data))
	assert.False(t, h.session(t).ReplyInProgress())
}

func countingTTS(calls *atomic.Int32) *mocks.MockTextToSpeech {
	return &mocks.MockTextToSpeech{
		SynthesizeFunc: func(context.Context, domain.SpeechRequest) (*domain.Speech, error) {
			calls.Add(1)
			return &domain.Speech{Audio: []byte{0, 0}, Duration: 0.1, SampleRate: 22050, Format: "wav"}, nil
		},
	}
}

func TestSession_ReplyFlagSetWhenRequestAccepted(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	o := NewOrchestrator(Config{QueueSize: 2}, Dependencies{TTS: countingTTS(&calls)}, zap.NewNop())
	conn := newFakeConn()
	s := o.newSession("lane-1", 0, conn)

	// Act
	s.handleControl([]byte(`{"type":"tts_request","text":"مرحبا بك"}`))

	// Assert
	assert.True(t, s.ReplyInProgress(), "queued reply must already be guarded against barge-in")
	require.Len(t, s.speech, 1)

	s.speak(context.Background(), <-s.speech)
	assert.False(t, s.ReplyInProgress())
	assert.Equal(t, int32(1), calls.Load())
}

func TestSession_StopDropsQueuedReply(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	o := NewOrchestrator(Config{QueueSize: 2}, Dependencies{TTS: countingTTS(&calls)}, zap.NewNop())
	conn := newFakeConn()
	s := o.newSession("lane-1", 0, conn)
	s.handleControl([]byte(`{"type":"tts_request","text":"your total is ten riyals"}`))

	// Act
	s.handleControl([]byte(`{"type":"stop"}`))
	ack := conn.nextMessage(t)
	s.speak(context.Background(), <-s.speech)

	// Assert
	assert.Equal(t, TypeStopAck, ack.Type)
	assert.False(t, s.ReplyInProgress())
	assert.Zero(t, calls.Load())
	assert.Empty(t, conn.out)

	// a request after the stop is spoken normally
	s.handleControl([]byte(`{"type":"tts_request","text":"anything else?"}`))
	assert.True(t, s.ReplyInProgress())
	s.speak(context.Background(), <-s.speech)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, BinaryMessage, conn.next(t).mt)
	assert.Equal(t, TypeTTSComplete, conn.nextMessage(t).Type)
	assert.False(t, s.ReplyInProgress())
}

func TestSession_ReplyFlagHeldUntilLastQueuedReply(t *testing.T) {
	var calls atomic.Int32
	o := NewOrchestrator(Config{QueueSize: 1}, Dependencies{TTS: countingTTS(&calls)}, zap.NewNop())
	conn := newFakeConn()
	s := o.newSession("lane-1", 0, conn)

	s.handleControl([]byte(`{"type":"tts_request","text":"one"}`))
	s.handleControl([]byte(`{"type":"tts_request","text":"two"}`))

	msg := conn.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)
	assert.JSONEq(t, `{"message":"TTS failed: speech queue full"}`, string(msg.Data))
	assert.True(t, s.ReplyInProgress(), "the accepted reply is still pending")

	s.speak(context.Background(), <-s.speech)
	assert.False(t, s.ReplyInProgress())
}

func TestSession_TTSSuccess(t *testing.T) {
	var gotReq domain.SpeechRequest
	tts := &mocks.MockTextToSpeech{
		SynthesizeFunc: func(_ context.Context, req domain.SpeechRequest) (*domain.Speech, error) {
			gotReq = req
			return &domain.Speech{Audio: []byte{1, 2, 3, 4}, Duration: 1.5, SampleRate: 22050, Format: "wav"}, nil
		},
	}
	h := newHarness(t, nil, tts, nil)
	defer h.close(t)

	h.conn.sendText(`{"type":"tts_request","text":"Your total is 20 riyals","language":"en","voice_config":{"speed":1.1}}`)

	audio := h.conn.next(t)
	assert.Equal(t, BinaryMessage, audio.mt)
	assert.Equal(t, []byte{1, 2, 3, 4}, audio.data)

	done := h.conn.nextMessage(t)
	assert.Equal(t, TypeTTSComplete, done.Type)
	assert.JSONEq(t, `{"duration":1.5,"sample_rate":22050,"format":"wav"}`, string(done.Data))

	assert.Equal(t, domain.LanguageEnglish, gotReq.Language)
	assert.Equal(t, 1.1, gotReq.VoiceConfig["speed"])
	assert.False(t, h.session(t).ReplyInProgress())
	assert.Equal(t, StateRepliedOrWaiting, h.session(t).State())
}

func TestSession_TTSRequestValidation(t *testing.T) {
	h := newHarness(t, nil, &mocks.MockTextToSpeech{}, nil)
	defer h.close(t)

	h.conn.sendText(`{"type":"tts_request","text":"   "}`)
	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)
	assert.JSONEq(t, `{"message":"Text is required"}`, string(msg.Data))

	h.conn.sendText(`{not json`)
	msg = h.conn.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)
	assert.JSONEq(t, `{"message":"Invalid control message"}`, string(msg.Data))
}

func TestSession_TTSNotConfigured(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	defer h.close(t)

	h.conn.sendText(`{"type":"tts_request","text":"hello"}`)

	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Data), "TTS failed")
	assert.False(t, h.session(t).ReplyInProgress())
}

func TestSession_ConfigAndUnknownMessages(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	defer h.close(t)

	h.conn.sendText(`{"type":"dance"}`)
	h.conn.sendText(`{"type":"config","data":{"sample_rate":16000}}`)

	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeConfigAck, msg.Type, "unknown types produce no reply")
	assert.JSONEq(t, `{"status":"ok"}`, string(msg.Data))
}

func TestSession_TranscriptionAndNLU(t *testing.T) {
	stt := &mocks.MockSpeechToText{
		TranscribeFunc: func(_ context.Context, samples []float32, sampleRate int, _ domain.Language) (*domain.Transcription, error) {
			assert.Equal(t, 16000, sampleRate)
			assert.Len(t, samples, 480)
			return &domain.Transcription{Text: "أريد 3 برجر كبير", Confidence: 0.92}, nil
		},
	}
	h := newHarness(t, stt, nil, nil)

	h.conn.sendAudio(loudPCM(480))

	tr := h.conn.nextMessage(t)
	require.Equal(t, TypeTranscription, tr.Type)
	var data TranscriptionData
	require.NoError(t, json.Unmarshal(tr.Data, &data))
	assert.Equal(t, "أريد 3 برجر كبير", data.Text)
	assert.Equal(t, 0.92, data.Confidence)
	assert.Equal(t, domain.LanguageArabic, data.Language)
	assert.False(t, data.IsCodeSwitching)

	msg := h.conn.nextMessage(t)
	require.Equal(t, TypeNLU, msg.Type)
	var result domain.NLUResult
	require.NoError(t, json.Unmarshal(msg.Data, &result))
	assert.Equal(t, domain.IntentOrderItem, result.Intent.Type)
	assert.Equal(t, float64(3), result.Entities["quantity"])
	assert.Equal(t, "large", result.Entities["size"])

	h.close(t)
	assert.Len(t, h.events.GetPublishedMessages(SubjectTurn), 1)
	assert.Len(t, h.events.GetPublishedMessages(SubjectSession), 2)
}

func TestSession_EmptyTranscriptionSkipsNLU(t *testing.T) {
	stt := &mocks.MockSpeechToText{
		TranscribeFunc: func(context.Context, []float32, int, domain.Language) (*domain.Transcription, error) {
			return &domain.Transcription{Text: "  ", Confidence: 0.1}, nil
		},
	}
	h := newHarness(t, stt, nil, nil)
	defer h.close(t)

	h.conn.sendAudio(loudPCM(480))
	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeTranscription, msg.Type)

	h.conn.sendText(`{"type":"stop"}`)
	msg = h.conn.nextMessage(t)
	assert.Equal(t, TypeStopAck, msg.Type)
}

func TestSession_STTFailure(t *testing.T) {
	stt := &mocks.MockSpeechToText{
		TranscribeFunc: func(context.Context, []float32, int, domain.Language) (*domain.Transcription, error) {
			return nil, errors.New("whisper timeout")
		},
	}
	h := newHarness(t, stt, nil, nil)
	defer h.close(t)

	h.conn.sendAudio(loudPCM(480))

	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)
	assert.JSONEq(t, `{"message":"Audio processing failed: whisper timeout"}`, string(msg.Data))
}

func TestSession_MalformedAudio(t *testing.T) {
	h := newHarness(t, &mocks.MockSpeechToText{}, nil, nil)
	defer h.close(t)

	h.conn.sendAudio([]byte{0x01, 0x02, 0x03})

	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, string(msg.Data), "Audio processing failed")

	// the connection stays usable
	h.conn.sendText(`{"type":"stop"}`)
	assert.Equal(t, TypeStopAck, h.conn.nextMessage(t).Type)
}

func TestSession_InterruptionDuringReply(t *testing.T) {
	release := make(chan struct{})
	tts := &mocks.MockTextToSpeech{
		SynthesizeFunc: func(ctx context.Context, _ domain.SpeechRequest) (*domain.Speech, error) {
			<-release
			return &domain.Speech{Audio: []byte{0, 0}, Duration: 0.1, SampleRate: 22050, Format: "wav"}, nil
		},
	}
	stt := &mocks.MockSpeechToText{}
	h := newHarness(t, stt, tts, nil)

	h.conn.sendText(`{"type":"tts_request","text":"أهلا وسهلا"}`)
	require.Eventually(t, h.session(t).ReplyInProgress, waitTimeout, 5*time.Millisecond)

	h.conn.sendAudio(loudPCM(480))

	msg := h.conn.nextMessage(t)
	require.Equal(t, TypeInterruption, msg.Type)
	var data InterruptionData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Greater(t, data.AudioLevel, 0.1)
	assert.LessOrEqual(t, data.Confidence, 1.0)
	_, err := time.Parse(time.RFC3339Nano, data.DetectedAt)
	assert.NoError(t, err)

	// stop is answered while synthesis is still blocked
	h.conn.sendText(`{"type":"stop"}`)
	for {
		m := h.conn.nextMessage(t)
		if m.Type == TypeStopAck {
			break
		}
	}
	assert.False(t, h.session(t).ReplyInProgress())

	close(release)
	h.close(t)
	assert.Len(t, h.events.GetPublishedMessages(SubjectInterruption), 1)
}

func TestSession_NoInterruptionWhenIdle(t *testing.T) {
	h := newHarness(t, &mocks.MockSpeechToText{}, nil, nil)
	defer h.close(t)

	h.conn.sendAudio(loudPCM(480))

	msg := h.conn.nextMessage(t)
	assert.Equal(t, TypeTranscription, msg.Type)
}

func TestSession_LanguageHintFollowsSpeaker(t *testing.T) {
	stt := &mocks.MockSpeechToText{
		TranscribeFunc: func(context.Context, []float32, int, domain.Language) (*domain.Transcription, error) {
			return &domain.Transcription{Text: "can I get a chicken meal", Confidence: 0.9}, nil
		},
	}
	langs := make(chan domain.Language, 1)
	tts := &mocks.MockTextToSpeech{
		SynthesizeFunc: func(_ context.Context, req domain.SpeechRequest) (*domain.Speech, error) {
			langs <- req.Language
			return &domain.Speech{Audio: []byte{0, 0}, Format: "wav"}, nil
		},
	}
	est := stubEstimator{probs: map[domain.Language]float64{domain.LanguageEnglish: 0.97, domain.LanguageArabic: 0.03}}
	h := newHarness(t, stt, tts, est)
	defer h.close(t)

	h.conn.sendAudio(loudPCM(480))
	assert.Equal(t, TypeTranscription, h.conn.nextMessage(t).Type)
	assert.Equal(t, TypeNLU, h.conn.nextMessage(t).Type)
	assert.Equal(t, domain.LanguageEnglish, h.session(t).Language())

	// no language on the request: the session hint applies
	h.conn.sendText(`{"type":"tts_request","text":"Anything else?"}`)
	select {
	case lang := <-langs:
		assert.Equal(t, domain.LanguageEnglish, lang)
	case <-time.After(waitTimeout):
		t.Fatal("tts not called")
	}
	h.conn.next(t)
	h.conn.nextMessage(t)
}

func TestServe_RegistryLifecycle(t *testing.T) {
	h := newHarness(t, nil, nil, nil)
	assert.Equal(t, 1, h.o.Registry().Len())

	dup := newFakeConn()
	err := h.o.Serve(context.Background(), dup, "client-1", 0)
	assert.Error(t, err)
	msg := dup.nextMessage(t)
	assert.Equal(t, TypeError, msg.Type)

	h.close(t)
	assert.Equal(t, 0, h.o.Registry().Len())
}

func TestServe_GeneratesConnectionID(t *testing.T) {
	o := NewOrchestrator(Config{}, Dependencies{
		Languages: language.NewDetector(language.Config{}, nil, zap.NewNop()),
		NLU:       nlu.NewEngine(nlu.DefaultConfig(), nil, zap.NewNop()),
	}, zap.NewNop())
	conn := newFakeConn()
	close(conn.in)

	err := o.Serve(context.Background(), conn, "", 0)

	assert.NoError(t, err)
	assert.Equal(t, 0, o.Registry().Len())
}

func TestDecodePCM16(t *testing.T) {
	samples, err := DecodePCM16([]byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 32767.0 / 32768.0, 0}, samples)

	_, err = DecodePCM16(nil)
	assert.ErrorIs(t, err, ErrMalformedAudio)
	_, err = DecodePCM16([]byte{1})
	assert.ErrorIs(t, err, ErrMalformedAudio)
}

func TestInferencePool_RecoversPanics(t *testing.T) {
	pool := NewInferencePool(1)

	err := pool.Do(context.Background(), func(context.Context) error { panic("boom") })
	assert.Error(t, err)

	// the slot was released
	err = pool.Do(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestInferencePool_RespectsContext(t *testing.T) {
	pool := NewInferencePool(1)
	block := make(chan struct{})
	go pool.Do(context.Background(), func(context.Context) error { <-block; return nil })
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
}
