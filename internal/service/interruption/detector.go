package interruption

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

// Callback receives interruption events. Errors and panics are logged and
// never reach the caller of Detect.
type Callback func(ctx context.Context, event domain.InterruptionEvent) error

// EventSink is the session-side consumer of interruption events.
type EventSink interface {
	OnInterruption(ctx context.Context, event domain.InterruptionEvent) error
}

type Config struct {
	Enabled           bool
	TargetLatency     time.Duration
	QuietThreshold    float64
	FallbackThreshold float64
	SampleRate        int
}

func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		TargetLatency:     200 * time.Millisecond,
		QuietThreshold:    0.01,
		FallbackThreshold: 0.1,
		SampleRate:        16000,
	}
}

// Detector watches inbound audio while the assistant is replying and raises
// an event when the user starts talking. One detector belongs to one session.
type Detector struct {
	cfg  Config
	vad  ports.VoiceActivityDetector
	sink EventSink
	log  *zap.Logger

	mu        sync.RWMutex
	replying  bool
	callbacks []Callback
	last      time.Time
}

// NewDetector builds a detector. vad and sink may be nil; without a VAD the
// RMS fallback threshold decides.
func NewDetector(cfg Config, vad ports.VoiceActivityDetector, sink EventSink, log *zap.Logger) *Detector {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.TargetLatency <= 0 {
		cfg.TargetLatency = 200 * time.Millisecond
	}
	return &Detector{
		cfg:  cfg,
		vad:  vad,
		sink: sink,
		log:  log,
	}
}

func (d *Detector) SetReplyInProgress(replying bool) {
	d.mu.Lock()
	d.replying = replying
	d.mu.Unlock()
}

func (d *Detector) ReplyInProgress() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.replying
}

func (d *Detector) RegisterCallback(cb Callback) {
	d.mu.Lock()
	d.callbacks = append(d.callbacks, cb)
	d.mu.Unlock()
}

// LastInterruption returns when the last event fired.
func (d *Detector) LastInterruption() (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, !d.last.IsZero()
}

// Reset clears the reply flag and the last interruption.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.replying = false
	d.last = time.Time{}
	d.mu.Unlock()
}

// Detect classifies one PCM16 little-endian chunk. It returns nil unless a
// reply is in progress and the chunk carries speech.
func (d *Detector) Detect(ctx context.Context, chunk []byte, sampleRate int) *domain.InterruptionEvent {
	if !d.cfg.Enabled || !d.ReplyInProgress() {
		return nil
	}
	if sampleRate <= 0 {
		sampleRate = d.cfg.SampleRate
	}

	start := time.Now()
	level := RMS(chunk)

	var event *domain.InterruptionEvent
	if level >= d.cfg.QuietThreshold && d.isSpeech(chunk, level, sampleRate) {
		event = &domain.InterruptionEvent{
			DetectedAt: time.Now().UTC(),
			Confidence: math.Min(level*5, 1.0),
			AudioLevel: level,
			Kind:       domain.InterruptionSpeech,
		}
	}

	elapsed := time.Since(start)
	telemetry.InterruptionLatency.Observe(elapsed.Seconds())
	if elapsed > d.cfg.TargetLatency {
		telemetry.LatencyBreachesTotal.WithLabelValues("interruption").Inc()
		d.log.Warn("Interruption detection exceeded target",
			zap.Duration("elapsed", elapsed),
			zap.Duration("target", d.cfg.TargetLatency),
		)
	}

	if event == nil {
		return nil
	}

	d.mu.Lock()
	d.last = event.DetectedAt
	d.mu.Unlock()

	telemetry.InterruptionsTotal.Inc()
	d.log.Info("Interruption detected",
		zap.Float64("confidence", event.Confidence),
		zap.Float64("audio_level", level),
		zap.Duration("latency", elapsed),
	)

	d.notify(ctx, *event)
	return event
}

// Monitor runs Detect over a stream of chunks and emits every event. The
// returned channel closes when frames closes or ctx is done.
func (d *Detector) Monitor(ctx context.Context, frames <-chan []byte, sampleRate int) <-chan domain.InterruptionEvent {
	out := make(chan domain.InterruptionEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case chunk, ok := <-frames:
				if !ok {
					return
				}
				if ev := d.Detect(ctx, chunk, sampleRate); ev != nil {
					select {
					case out <- *ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

func (d *Detector) isSpeech(chunk []byte, level float64, sampleRate int) bool {
	if d.vad == nil {
		return level > d.cfg.FallbackThreshold
	}

	frame := fitFrame(chunk, d.vad.FrameSize(sampleRate))
	speech, err := d.vad.IsSpeech(frame, sampleRate)
	if err != nil {
		d.log.Warn("VAD failed", zap.Error(err))
		return false
	}
	return speech
}

func (d *Detector) notify(ctx context.Context, event domain.InterruptionEvent) {
	if d.sink != nil {
		d.deliver(ctx, "sink", d.sink.OnInterruption, event)
	}

	d.mu.RLock()
	callbacks := append([]Callback(nil), d.callbacks...)
	d.mu.RUnlock()

	for i, cb := range callbacks {
		d.deliver(ctx, fmt.Sprintf("callback[%d]", i), cb, event)
	}
}

func (d *Detector) deliver(ctx context.Context, name string, fn Callback, event domain.InterruptionEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Interruption callback panicked", zap.String("callback", name), zap.Any("panic", r))
		}
	}()
	if err := fn(ctx, event); err != nil {
		d.log.Error("Interruption callback failed", zap.String("callback", name), zap.Error(err))
	}
}

// RMS returns the root-mean-square level of PCM16 LE audio normalized to
// [0, 1]. A trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// fitFrame zero-pads or truncates chunk to size bytes.
func fitFrame(chunk []byte, size int) []byte {
	if size <= 0 || len(chunk) == size {
		return chunk
	}
	if len(chunk) > size {
		return chunk[:size]
	}
	frame := make([]byte, size)
	copy(frame, chunk)
	return frame
}
