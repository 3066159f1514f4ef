package engine

import (
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuebell/cuebell/internal/assets"
)

func TestProfileFor(t *testing.T) {
	bell := ProfileFor(assets.CueBell)
	assert.Equal(t, 1000.0, bell.Frequency)
	assert.Equal(t, WaveSine, bell.Waveform)
	assert.Equal(t, 1200*time.Millisecond, bell.Duration)
	assert.Zero(t, bell.PulseLFO)

	beepTone := ProfileFor(assets.CueBeep)
	assert.Equal(t, 800.0, beepTone.Frequency)
	assert.Equal(t, WaveSquare, beepTone.Waveform)

	warning := ProfileFor(assets.CueWarning)
	assert.Equal(t, 1200.0, warning.Frequency)
	assert.Equal(t, WaveSawtooth, warning.Waveform)
	assert.Equal(t, 8.0, warning.PulseLFO)

	// Cues without a dedicated tone share the default profile.
	assert.Equal(t, defaultProfile, ProfileFor(assets.CueAnnounce))
}

func TestNewVoiceOscillatorCount(t *testing.T) {
	v, err := newVoice(ProfileFor(assets.CueBell), 44100)
	require.NoError(t, err)
	assert.Len(t, v.oscillators, 1)

	v, err = newVoice(ProfileFor(assets.CueWarning), 44100)
	require.NoError(t, err)
	assert.Len(t, v.oscillators, 2, "pulsed profiles carry the LFO oscillator")
}

func TestNewVoiceRejectsInvalidProfiles(t *testing.T) {
	_, err := newVoice(ToneProfile{Frequency: 0, Duration: time.Second}, 44100)
	assert.Error(t, err)

	_, err = newVoice(ToneProfile{Frequency: 440, Duration: 0}, 44100)
	assert.Error(t, err)

	_, err = newVoice(ProfileFor(assets.CueBell), 0)
	assert.Error(t, err)
}

func TestEnvelopeShape(t *testing.T) {
	sr := beep.SampleRate(44100)
	v, err := newVoice(ProfileFor(assets.CueBell), sr)
	require.NoError(t, err)

	attack := sr.N(v.profile.Attack)
	decay := sr.N(v.profile.Decay)
	release := sr.N(v.profile.Release)

	assert.Zero(t, v.envelopeAt(0), "starts silent")
	assert.InDelta(t, tonePeak, v.envelopeAt(attack-1), tonePeak*0.01, "attack ramps to peak")

	// Attack is a monotonic rise.
	prev := -1.0
	for pos := 0; pos < attack; pos += attack / 10 {
		g := v.envelopeAt(pos)
		assert.GreaterOrEqual(t, g, prev)
		prev = g
	}

	sustain := tonePeak * v.profile.SustainLevel
	assert.InDelta(t, sustain, v.envelopeAt(attack+decay), sustain*0.02, "decay settles at the sustain level")
	assert.InDelta(t, sustain, v.envelopeAt(v.total-release-1), sustain*0.01, "sustain is flat")
	assert.InDelta(t, 0.001, v.envelopeAt(v.total-1), 0.001, "release fades to near silence")
}

func TestVoiceStreamDrains(t *testing.T) {
	sr := beep.SampleRate(44100)
	v, err := newVoice(ProfileFor(assets.CueBeep), sr)
	require.NoError(t, err)

	total := 0
	buf := make([][2]float64, 512)
	for {
		n, ok := v.Stream(buf)
		total += n
		for i := 0; i < n; i++ {
			assert.LessOrEqual(t, buf[i][0], tonePeak)
			assert.GreaterOrEqual(t, buf[i][0], -tonePeak)
		}
		if !ok {
			break
		}
	}

	assert.Equal(t, sr.N(ProfileFor(assets.CueBeep).Duration), total)
	require.NoError(t, v.Err())
}

func TestSynthPlayScheduled(t *testing.T) {
	clock := &fakeClock{}
	clock.set(time.Second)
	graph := newFakeGraph(44100)
	require.NoError(t, graph.Start(44100, 0))

	s := NewSynthBackend(graph, clock, true, testLogger(t))
	require.NoError(t, s.PlayScheduled(assets.CueBell, 250*time.Millisecond))

	calls := graph.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, time.Second+250*time.Millisecond, calls[0].at)
}

func TestSynthDisabled(t *testing.T) {
	graph := newFakeGraph(44100)
	require.NoError(t, graph.Start(44100, 0))

	s := NewSynthBackend(graph, &fakeClock{}, false, testLogger(t))
	assert.False(t, s.Enabled())

	err := s.PlayScheduled(assets.CueBell, 0)
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
	assert.Equal(t, assets.CueBell, synthErr.Cue)
}

func TestSynthOnFirstPlayFiresOnce(t *testing.T) {
	graph := newFakeGraph(44100)
	require.NoError(t, graph.Start(44100, 0))

	fired := 0
	s := NewSynthBackend(graph, &fakeClock{}, true, testLogger(t))
	s.SetOnFirstPlay(func() { fired++ })

	require.NoError(t, s.PlayScheduled(assets.CueBell, 0))
	require.NoError(t, s.PlayScheduled(assets.CueBeep, 0))
	assert.Equal(t, 1, fired)
}

func TestSynthGraphDownWrapsError(t *testing.T) {
	graph := newFakeGraph(44100) // never started
	s := NewSynthBackend(graph, &fakeClock{}, true, testLogger(t))

	err := s.PlayScheduled(assets.CueBell, 0)
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
}
