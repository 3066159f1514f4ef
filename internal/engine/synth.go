package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/cuebell/cuebell/internal/assets"
)

// Waveform selects the oscillator shape.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSquare:
		return "square"
	case WaveSawtooth:
		return "sawtooth"
	case WaveTriangle:
		return "triangle"
	}
	return "unknown"
}

// ToneProfile describes one procedurally generated cue: oscillator
// settings plus an ADSR amplitude envelope, optionally pulsed by a
// low-frequency oscillator.
type ToneProfile struct {
	Frequency    float64 // Hz
	Duration     time.Duration
	Waveform     Waveform
	Attack       time.Duration
	Decay        time.Duration
	SustainLevel float64 // fraction of peak, 0..1
	Release      time.Duration
	PulseLFO     float64 // Hz; 0 disables the pulsing LFO
}

// defaultProfile stands in for cues without a dedicated tone, including
// voice announcements.
var defaultProfile = ToneProfile{
	Frequency:    880,
	Duration:     500 * time.Millisecond,
	Waveform:     WaveTriangle,
	Attack:       10 * time.Millisecond,
	Decay:        100 * time.Millisecond,
	SustainLevel: 0.8,
	Release:      300 * time.Millisecond,
}

var toneProfiles = map[assets.CueType]ToneProfile{
	assets.CueBell: {
		Frequency:    1000,
		Duration:     1200 * time.Millisecond,
		Waveform:     WaveSine,
		Attack:       10 * time.Millisecond,
		Decay:        300 * time.Millisecond,
		SustainLevel: 0.7,
		Release:      800 * time.Millisecond,
	},
	assets.CueBeep: {
		Frequency:    800,
		Duration:     300 * time.Millisecond,
		Waveform:     WaveSquare,
		Attack:       10 * time.Millisecond,
		Decay:        50 * time.Millisecond,
		SustainLevel: 0.8,
		Release:      200 * time.Millisecond,
	},
	assets.CueWarning: {
		Frequency:    1200,
		Duration:     800 * time.Millisecond,
		Waveform:     WaveSawtooth,
		Attack:       20 * time.Millisecond,
		Decay:        100 * time.Millisecond,
		SustainLevel: 0.6,
		Release:      300 * time.Millisecond,
		PulseLFO:     8,
	},
}

// ProfileFor returns the tone profile for a cue, falling back to the
// default profile for cues without a dedicated tone.
func ProfileFor(cue assets.CueType) ToneProfile {
	if p, ok := toneProfiles[cue]; ok {
		return p
	}
	return defaultProfile
}

// envelope peak level; tones are deliberately quieter than assets.
const tonePeak = 0.3

// oscillator produces one waveform at a fixed frequency.
type oscillator struct {
	waveform Waveform
	freq     float64
	phase    float64
	phaseInc float64
}

func newOscillator(waveform Waveform, freq float64, sr beep.SampleRate) *oscillator {
	return &oscillator{
		waveform: waveform,
		freq:     freq,
		phaseInc: freq / float64(sr),
	}
}

// next advances the oscillator one sample and returns it in [-1, 1].
func (o *oscillator) next() float64 {
	var s float64
	switch o.waveform {
	case WaveSine:
		s = math.Sin(2 * math.Pi * o.phase)
	case WaveSquare:
		if o.phase < 0.5 {
			s = 1
		} else {
			s = -1
		}
	case WaveSawtooth:
		s = 2 * (o.phase - 0.5)
	case WaveTriangle:
		if o.phase < 0.5 {
			s = 4*o.phase - 1
		} else {
			s = 3 - 4*o.phase
		}
	}

	o.phase += o.phaseInc
	if o.phase >= 1 {
		o.phase -= 1
	}
	return s
}

// voice is a one-shot beep.Streamer rendering a tone profile. It carries
// the tone oscillator plus, for pulsed profiles, a second LFO oscillator
// modulating the envelope gain.
type voice struct {
	sr          beep.SampleRate
	profile     ToneProfile
	oscillators []*oscillator

	pos   int
	total int
}

func newVoice(profile ToneProfile, sr beep.SampleRate) (*voice, error) {
	if profile.Frequency <= 0 || profile.Duration <= 0 {
		return nil, fmt.Errorf("invalid tone profile: freq=%v duration=%v", profile.Frequency, profile.Duration)
	}
	if sr <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sr)
	}

	v := &voice{
		sr:      sr,
		profile: profile,
		total:   sr.N(profile.Duration),
		oscillators: []*oscillator{
			newOscillator(profile.Waveform, profile.Frequency, sr),
		},
	}
	if profile.PulseLFO > 0 {
		v.oscillators = append(v.oscillators, newOscillator(WaveSquare, profile.PulseLFO, sr))
	}
	return v, nil
}

// envelopeAt computes the ADSR gain at sample position pos: linear ramp
// 0 -> peak over the attack, exponential peak -> peak*sustain over the
// decay, flat sustain until duration-release, exponential down to ~0.001.
func (v *voice) envelopeAt(pos int) float64 {
	attack := v.sr.N(v.profile.Attack)
	decay := v.sr.N(v.profile.Decay)
	release := v.sr.N(v.profile.Release)

	releaseStart := v.total - release
	if releaseStart < attack+decay {
		releaseStart = attack + decay
	}
	sustain := tonePeak * v.profile.SustainLevel

	switch {
	case pos < attack:
		if attack == 0 {
			return tonePeak
		}
		return tonePeak * float64(pos) / float64(attack)
	case pos < attack+decay:
		if decay == 0 || v.profile.SustainLevel >= 1 {
			return sustain
		}
		t := float64(pos-attack) / float64(decay)
		return tonePeak * math.Pow(v.profile.SustainLevel, t)
	case pos < releaseStart:
		return sustain
	default:
		span := v.total - releaseStart
		if span <= 0 {
			return 0.001
		}
		t := float64(pos-releaseStart) / float64(span)
		return sustain * math.Pow(0.001/sustain, t)
	}
}

func (v *voice) Stream(samples [][2]float64) (n int, ok bool) {
	if v.pos >= v.total {
		return 0, false
	}
	for i := range samples {
		if v.pos >= v.total {
			return i, true
		}

		gain := v.envelopeAt(v.pos)
		if len(v.oscillators) > 1 {
			// Square LFO pulses the envelope gain between 30% and 100%.
			lfo := v.oscillators[1].next()
			gain *= 0.3 + 0.7*(lfo+1)/2
		}
		s := v.oscillators[0].next() * gain

		samples[i][0] = s
		samples[i][1] = s
		v.pos++
	}
	return len(samples), true
}

func (v *voice) Err() error { return nil }

// SynthBackend is the tier of last resort: tones generated procedurally
// per cue type, honoring the same absolute-time semantics as the buffer
// tier.
type SynthBackend struct {
	logger  *slog.Logger
	graph   Graph
	clock   Clock
	enabled bool

	// onFirstPlay fires once, on the first successful synthetic
	// playback of the session. The flag it sets is sticky.
	onFirstPlay func()
	once        sync.Once
}

// NewSynthBackend creates the synthetic tier.
func NewSynthBackend(graph Graph, clock Clock, enabled bool, logger *slog.Logger) *SynthBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &SynthBackend{
		logger:  logger,
		graph:   graph,
		clock:   clock,
		enabled: enabled,
	}
}

// SetOnFirstPlay installs the sticky-flag hook.
func (s *SynthBackend) SetOnFirstPlay(fn func()) {
	s.onFirstPlay = fn
}

// Enabled reports whether the tier may be attempted at all.
func (s *SynthBackend) Enabled() bool { return s.enabled }

// PlayScheduled synthesizes the cue's tone and schedules it to start at
// clock.Now()+when. Failures wrap into SynthesisError; there is no tier
// beneath this one.
func (s *SynthBackend) PlayScheduled(cue assets.CueType, when time.Duration) error {
	if !s.enabled {
		return &SynthesisError{Cue: cue, Err: fmt.Errorf("synthetic tier disabled")}
	}

	sr := s.graph.SampleRate()
	v, err := newVoice(ProfileFor(cue), sr)
	if err != nil {
		return &SynthesisError{Cue: cue, Err: err}
	}

	if err := s.graph.ScheduleAt(v, s.clock.Now()+when); err != nil {
		return &SynthesisError{Cue: cue, Err: err}
	}

	if s.onFirstPlay != nil {
		s.once.Do(s.onFirstPlay)
	}
	return nil
}
