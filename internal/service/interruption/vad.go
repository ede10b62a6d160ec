package interruption

import (
	"encoding/binary"
	"fmt"
)

// FrameDuration is the VAD analysis window in milliseconds.
const FrameDuration = 30

// Per-mode energy floors and zero-crossing ceilings. Higher modes are more
// aggressive about rejecting non-speech.
var (
	modeEnergy = [4]float64{0.01, 0.02, 0.03, 0.05}
	modeZCR    = [4]float64{0.5, 0.45, 0.4, 0.35}
)

// EnergyVAD is a frame classifier combining RMS energy with zero-crossing
// rate. Broadband noise has a high crossing rate, voiced speech a low one.
type EnergyVAD struct {
	mode int
}

// NewEnergyVAD returns a VAD for aggressiveness mode 0-3.
func NewEnergyVAD(mode int) (*EnergyVAD, error) {
	if mode < 0 || mode > 3 {
		return nil, fmt.Errorf("invalid vad mode %d: want 0-3", mode)
	}
	return &EnergyVAD{mode: mode}, nil
}

func (v *EnergyVAD) FrameSize(sampleRate int) int {
	return sampleRate * FrameDuration / 1000 * 2
}

func (v *EnergyVAD) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return false, fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	if len(frame) != v.FrameSize(sampleRate) {
		return false, fmt.Errorf("frame is %d bytes, want %d", len(frame), v.FrameSize(sampleRate))
	}

	if RMS(frame) < modeEnergy[v.mode] {
		return false, nil
	}
	return zeroCrossingRate(frame) <= modeZCR[v.mode], nil
}

func zeroCrossingRate(pcm []byte) float64 {
	n := len(pcm) / 2
	if n < 2 {
		return 0
	}
	crossings := 0
	prev := int16(binary.LittleEndian.Uint16(pcm))
	for i := 1; i < n; i++ {
		cur := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if (prev >= 0) != (cur >= 0) {
			crossings++
		}
		prev = cur
	}
	return float64(crossings) / float64(n-1)
}
