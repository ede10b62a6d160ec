package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

func newClient() *circuitbreaker.HTTPClient {
	return circuitbreaker.NewHTTPClient("tts", time.Second, circuitbreaker.NewManager(circuitbreaker.DefaultSettings(), zap.NewNop()), zap.NewNop())
}

func TestPiper_Synthesize(t *testing.T) {
	// Arrange
	wav := audio.WrapPCMAsWAV(make([]byte, 22050*2/2), 22050, 1, 16) // 0.5s
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	tts := NewPiper(srv.URL, "ar_JO-kareem", newClient(), zap.NewNop())

	// Act
	speech, err := tts.Synthesize(context.Background(), domain.SpeechRequest{
		Text:     "أهلاً وسهلاً",
		Language: domain.LanguageArabic,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "أهلاً وسهلاً", got.Text)
	assert.Equal(t, "ar", got.Language)
	assert.Equal(t, "ar_JO-kareem", got.Voice)
	assert.Equal(t, 22050, speech.SampleRate)
	assert.InDelta(t, 0.5, speech.Duration, 0.001)
	assert.Equal(t, "wav", speech.Format)
	assert.Equal(t, wav, speech.Audio)
}

func TestPiper_VoiceOverride(t *testing.T) {
	var got ttsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write(audio.WrapPCMAsWAV(make([]byte, 4), 16000, 1, 16))
	}))
	defer srv.Close()

	tts := NewPiper(srv.URL, "default", newClient(), zap.NewNop())

	_, err := tts.Synthesize(context.Background(), domain.SpeechRequest{
		Text:        "hello",
		Language:    domain.LanguageEnglish,
		VoiceConfig: map[string]any{"voice": "en_US-amy"},
	})

	require.NoError(t, err)
	assert.Equal(t, "en_US-amy", got.Voice)
}

func TestPiper_InvalidAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not audio"))
	}))
	defer srv.Close()

	tts := NewPiper(srv.URL, "", newClient(), zap.NewNop())

	_, err := tts.Synthesize(context.Background(), domain.SpeechRequest{Text: "hi", Language: domain.LanguageEnglish})

	assert.ErrorIs(t, err, audio.ErrInvalidWAV)
}
