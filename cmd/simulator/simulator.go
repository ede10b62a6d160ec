package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	ServerURL  string
	ClientID   string
	BranchID   int64
	SampleRate int
	// FrameDuration splits audio into frames; zero sends one frame per file
	FrameDuration time.Duration
	Language      string
}

// Simulator plays a drive-thru lane terminal against the voice websocket
type Simulator struct {
	config *SimulatorConfig
	conn   *websocket.Conn
	log    *zap.Logger
	out    io.Writer

	writeMu sync.Mutex
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewSimulator creates a new lane simulator
func NewSimulator(config *SimulatorConfig, out io.Writer, log *zap.Logger) *Simulator {
	if config.SampleRate <= 0 {
		config.SampleRate = 16000
	}
	return &Simulator{
		config: config,
		log:    log,
		out:    out,
		done:   make(chan struct{}),
	}
}

// StreamURL builds the websocket URL with the session query parameters
func (s *Simulator) StreamURL() (string, error) {
	u, err := url.Parse(s.config.ServerURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	if s.config.ClientID != "" {
		q.Set("client_id", s.config.ClientID)
	}
	if s.config.BranchID > 0 {
		q.Set("branch_id", strconv.FormatInt(s.config.BranchID, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the server and starts printing inbound messages
func (s *Simulator) Connect() error {
	target, err := s.StreamURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.conn = conn
	s.log.Info("Connected to voice server",
		zap.String("url", target),
		zap.String("client_id", s.config.ClientID),
	)

	s.wg.Add(1)
	go s.readMessages()
	return nil
}

// Stop closes the connection and waits for the reader
func (s *Simulator) Stop() {
	if s.conn == nil {
		return
	}
	s.writeMu.Lock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	s.conn.Close()
	s.wg.Wait()
}

func (s *Simulator) readMessages() {
	defer s.wg.Done()
	defer close(s.done)

	for {
		mt, message, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Read loop ended", zap.Error(err))
			}
			return
		}
		if mt == websocket.BinaryMessage {
			fmt.Fprintf(s.out, "<- audio %d bytes\n", len(message))
			continue
		}
		s.printMessage(message)
	}
}

func (s *Simulator) printMessage(data []byte) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Fprintf(s.out, "<- %s\n", data)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, msg.Data, "   ", "  "); err != nil {
		pretty.Write(msg.Data)
	}
	fmt.Fprintf(s.out, "<- %s %s\n", msg.Type, pretty.String())
}

func (s *Simulator) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *Simulator) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(websocket.TextMessage, data)
}

// LoadAudio accepts a WAV file or raw 16-bit little-endian mono PCM. WAV
// input must already be mono at the configured sample rate.
func (s *Simulator) LoadAudio(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		if len(data)%2 != 0 {
			return nil, audio.ErrOddPCM
		}
		return data, nil
	}

	wav, err := audio.ParseWAV(data)
	if err != nil {
		return nil, err
	}
	if wav.Channels != 1 || wav.BitsPerSample != 16 {
		return nil, fmt.Errorf("need 16-bit mono audio, got %d channels at %d bits", wav.Channels, wav.BitsPerSample)
	}
	if wav.SampleRate != s.config.SampleRate {
		s.log.Warn("WAV sample rate differs from session rate",
			zap.Int("wav_rate", wav.SampleRate),
			zap.Int("session_rate", s.config.SampleRate),
		)
	}
	return wav.Data, nil
}

// Frames splits PCM into frames of FrameDuration. The last frame may be
// shorter but always holds whole samples.
func (s *Simulator) Frames(pcm []byte) [][]byte {
	if s.config.FrameDuration <= 0 {
		return [][]byte{pcm}
	}
	size := int(int64(s.config.SampleRate) * 2 * int64(s.config.FrameDuration) / int64(time.Second))
	size -= size % 2
	if size <= 0 {
		return [][]byte{pcm}
	}

	frames := make([][]byte, 0, len(pcm)/size+1)
	for start := 0; start < len(pcm); start += size {
		end := min(start+size, len(pcm))
		frames = append(frames, pcm[start:end])
	}
	return frames
}

// StreamAudio sends PCM in real time, one frame per FrameDuration
func (s *Simulator) StreamAudio(pcm []byte) error {
	frames := s.Frames(pcm)
	s.log.Info("Streaming audio",
		zap.Int("bytes", len(pcm)),
		zap.Int("frames", len(frames)),
	)

	for _, frame := range frames {
		if err := s.write(websocket.BinaryMessage, frame); err != nil {
			return fmt.Errorf("failed to send audio frame: %w", err)
		}
		if s.config.FrameDuration > 0 {
			time.Sleep(s.config.FrameDuration)
		}
	}
	return nil
}

// Say asks the server to speak text back to the lane
func (s *Simulator) Say(text, lang string) error {
	if lang == "" {
		lang = s.config.Language
	}
	return s.sendJSON(map[string]any{"type": "tts_request", "text": text, "language": lang})
}

// SendStop tells the server the assistant reply was cut short
func (s *Simulator) SendStop() error {
	return s.sendJSON(map[string]any{"type": "stop"})
}

// RunInteractive reads commands from in until quit or EOF
func (s *Simulator) RunInteractive(in io.Reader, readFile func(string) ([]byte, error)) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		var err error
		switch cmd {
		case "":
		case "say":
			err = s.Say(arg, "")
		case "say-ar":
			err = s.Say(arg, "ar")
		case "say-en":
			err = s.Say(arg, "en")
		case "stop":
			err = s.SendStop()
		case "play":
			var data, pcm []byte
			if data, err = readFile(arg); err == nil {
				if pcm, err = s.LoadAudio(data); err == nil {
					err = s.StreamAudio(pcm)
				}
			}
		case "silence":
			ms, convErr := strconv.Atoi(arg)
			if convErr != nil || ms <= 0 {
				ms = 300
			}
			err = s.StreamAudio(make([]byte, s.config.SampleRate*2*ms/1000))
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(s.out, "unknown command %q\n", cmd)
		}

		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		fmt.Fprint(s.out, "> ")
	}
}
