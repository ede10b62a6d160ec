package interruption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnergyVAD_InvalidMode(t *testing.T) {
	_, err := NewEnergyVAD(4)
	assert.Error(t, err)
	_, err = NewEnergyVAD(-1)
	assert.Error(t, err)
}

func TestEnergyVAD_FrameSize(t *testing.T) {
	vad, err := NewEnergyVAD(2)
	require.NoError(t, err)

	assert.Equal(t, 960, vad.FrameSize(16000))
	assert.Equal(t, 480, vad.FrameSize(8000))
}

func TestEnergyVAD_IsSpeech(t *testing.T) {
	vad, err := NewEnergyVAD(2)
	require.NoError(t, err)

	speech, err := vad.IsSpeech(tone(480, 200, 0.5, 16000), 16000)
	require.NoError(t, err)
	assert.True(t, speech)

	speech, err = vad.IsSpeech(make([]byte, 960), 16000)
	require.NoError(t, err)
	assert.False(t, speech)

	speech, err = vad.IsSpeech(buzz(480, 0.5), 16000)
	require.NoError(t, err)
	assert.False(t, speech)
}

func TestEnergyVAD_RejectsBadInput(t *testing.T) {
	vad, err := NewEnergyVAD(1)
	require.NoError(t, err)

	_, err = vad.IsSpeech(make([]byte, 960), 22050)
	assert.Error(t, err)

	_, err = vad.IsSpeech(make([]byte, 100), 16000)
	assert.Error(t, err)
}
