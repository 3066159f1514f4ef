package engine

import (
	"errors"
	"fmt"

	"github.com/cuebell/cuebell/internal/assets"
)

var (
	// ErrBackendUnavailable signals the platform lacks a capability a
	// tier needs. The dispatcher recovers by cascading to the next tier.
	ErrBackendUnavailable = errors.New("audio backend unavailable")

	// ErrAutoplayBlocked signals the platform refused playback before
	// the unlock gesture fired. The adaptation layer reacts; the play
	// call itself still returns cleanly to the caller.
	ErrAutoplayBlocked = errors.New("playback blocked pending unlock gesture")

	// ErrEngineUnusable is returned by Initialize only when every tier,
	// including the last-resort preload, failed.
	ErrEngineUnusable = errors.New("no audio tier could be initialized")

	// ErrDisposed is returned by operations on a disposed engine.
	ErrDisposed = errors.New("engine disposed")
)

// SynthesisError wraps an oscillator graph construction or scheduling
// failure. There is no tier beneath synthetic, so these are logged and
// the event is dropped.
type SynthesisError struct {
	Cue assets.CueType
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize %s: %v", e.Cue, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
