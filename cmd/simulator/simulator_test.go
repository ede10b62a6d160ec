package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

func TestFrames(t *testing.T) {
	sim := NewSimulator(&SimulatorConfig{SampleRate: 16000, FrameDuration: 30 * time.Millisecond}, &bytes.Buffer{}, zap.NewNop())

	frames := sim.Frames(make([]byte, 2000))

	// 30 ms at 16 kHz is 480 samples, 960 bytes
	require.Len(t, frames, 3)
	assert.Len(t, frames[0], 960)
	assert.Len(t, frames[2], 80)

	sim.config.FrameDuration = 0
	assert.Len(t, sim.Frames(make([]byte, 2000)), 1)
}

func TestLoadAudio(t *testing.T) {
	sim := NewSimulator(&SimulatorConfig{}, &bytes.Buffer{}, zap.NewNop())
	pcm := audio.EncodePCM16([]float32{0.1, -0.1, 0.5})

	got, err := sim.LoadAudio(audio.WrapPCMAsWAV(pcm, 16000, 1, 16))
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	got, err = sim.LoadAudio(pcm)
	require.NoError(t, err)
	assert.Equal(t, pcm, got)

	_, err = sim.LoadAudio([]byte{1, 2, 3})
	assert.ErrorIs(t, err, audio.ErrOddPCM)

	_, err = sim.LoadAudio(audio.WrapPCMAsWAV(pcm, 16000, 2, 16))
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	sim := NewSimulator(&SimulatorConfig{ServerURL: "ws://host:1/ws/voice", ClientID: "lane-2", BranchID: 9}, &bytes.Buffer{}, zap.NewNop())

	got, err := sim.StreamURL()

	require.NoError(t, err)
	assert.Equal(t, "ws://host:1/ws/voice?branch_id=9&client_id=lane-2", got)
}

func TestSimulator_Session(t *testing.T) {
	// Arrange
	var (
		mu       sync.Mutex
		binary   int
		controls []map[string]any
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "lane-7", r.URL.Query().Get("client_id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			if mt == websocket.BinaryMessage {
				binary++
			} else {
				var msg map[string]any
				json.Unmarshal(data, &msg)
				controls = append(controls, msg)
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop_ack","data":{"status":"stopped"}}`))
			}
			mu.Unlock()
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	var outMu sync.Mutex
	sim := NewSimulator(&SimulatorConfig{
		ServerURL:     "ws" + strings.TrimPrefix(srv.URL, "http"),
		ClientID:      "lane-7",
		SampleRate:    16000,
		FrameDuration: time.Millisecond,
		Language:      "en",
	}, &lockedWriter{w: &out, mu: &outMu}, zap.NewNop())

	// Act
	require.NoError(t, sim.Connect())
	require.NoError(t, sim.StreamAudio(make([]byte, 96)))
	require.NoError(t, sim.Say("hello", ""))
	require.NoError(t, sim.SendStop())

	// Assert
	assert.Eventually(t, func() bool {
		outMu.Lock()
		defer outMu.Unlock()
		return strings.Count(out.String(), "stop_ack") == 2
	}, 2*time.Second, 10*time.Millisecond)
	sim.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, binary)
	require.Len(t, controls, 2)
	assert.Equal(t, "tts_request", controls[0]["type"])
	assert.Equal(t, "en", controls[0]["language"])
	assert.Equal(t, "stop", controls[1]["type"])
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
