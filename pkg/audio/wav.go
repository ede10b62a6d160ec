// Package audio converts between 16-bit PCM, float samples and WAV files.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const wavHeaderSize = 44

var (
	ErrOddPCM     = errors.New("pcm data must be non-empty 16-bit samples")
	ErrInvalidWAV = errors.New("invalid wav data")
)

// DecodePCM16 converts little-endian 16-bit mono PCM to samples in [-1, 1).
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return nil, ErrOddPCM
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return samples, nil
}

// EncodePCM16 clamps samples to [-1, 1] and writes them as little-endian
// 16-bit PCM.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}

// WrapPCMAsWAV prepends a canonical 44-byte RIFF header to raw PCM.
func WrapPCMAsWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, wavHeaderSize+dataSize)

	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(wav[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], uint16(bitsPerSample))

	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[44:], pcm)

	return wav
}

// WAV is a parsed PCM wave file.
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Data          []byte
}

// Duration is the playback length of the data chunk.
func (w *WAV) Duration() time.Duration {
	bytesPerSecond := w.SampleRate * w.Channels * w.BitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(len(w.Data)) * time.Second / time.Duration(bytesPerSecond)
}

// Mono16 returns the first channel as float samples. Only 16-bit data is
// supported.
func (w *WAV) Mono16() ([]float32, error) {
	if w.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrInvalidWAV, w.BitsPerSample)
	}
	all, err := DecodePCM16(w.Data)
	if err != nil {
		return nil, err
	}
	if w.Channels <= 1 {
		return all, nil
	}
	mono := make([]float32, 0, len(all)/w.Channels)
	for i := 0; i+w.Channels <= len(all); i += w.Channels {
		mono = append(mono, all[i])
	}
	return mono, nil
}

// ParseWAV walks the RIFF chunks for fmt and data. Chunks other than those
// two are skipped.
func ParseWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	var (
		w      WAV
		gotFmt bool
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if end > len(data) {
			if id != "data" {
				return nil, fmt.Errorf("%w: truncated %q chunk", ErrInvalidWAV, id)
			}
			// streaming writers leave the data size unset
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return nil, fmt.Errorf("%w: unsupported format %d", ErrInvalidWAV, format)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			gotFmt = true
		case "data":
			if !gotFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			w.Data = data[body:end]
			return &w, nil
		}

		off = end + size%2
	}
	return nil, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}
