package voice

import (
	"errors"

	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

var (
	ErrMalformedAudio = errors.New("malformed audio frame: want non-empty 16-bit PCM")
	ErrEmptyTTSText   = errors.New("text is required")
	ErrNotConfigured  = errors.New("backend not configured")
)

// DecodePCM16 converts little-endian 16-bit mono PCM to samples in [-1, 1).
func DecodePCM16(frame []byte) ([]float32, error) {
	samples, err := audio.DecodePCM16(frame)
	if err != nil {
		return nil, ErrMalformedAudio
	}
	return samples, nil
}
