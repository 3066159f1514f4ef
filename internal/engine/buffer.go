package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"golang.org/x/sync/singleflight"

	"github.com/cuebell/cuebell/internal/assets"
)

// BufferBackend is the primary tier: assets decoded up front into
// immutable PCM buffers, played as one-shot sources through the graph's
// persistent gain node with sample-accurate start times.
type BufferBackend struct {
	mu     sync.RWMutex
	logger *slog.Logger

	graph    Graph
	clock    Clock
	fetcher  *assets.Fetcher
	registry *assets.Registry

	buffers map[assets.CueType]*beep.Buffer

	// At most one in-flight decode per cue id.
	decodes singleflight.Group
}

// NewBufferBackend creates the primary tier.
func NewBufferBackend(graph Graph, clock Clock, fetcher *assets.Fetcher, registry *assets.Registry, logger *slog.Logger) *BufferBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &BufferBackend{
		logger:   logger,
		graph:    graph,
		clock:    clock,
		fetcher:  fetcher,
		registry: registry,
		buffers:  make(map[assets.CueType]*beep.Buffer),
	}
}

// DecodeAll fetches and decodes the given cues. Individual failures are
// logged and tolerated; the returned count is the number of cues that
// decoded successfully.
func (b *BufferBackend) DecodeAll(ctx context.Context, cues []assets.CueType) int {
	decoded := 0
	for _, cue := range cues {
		if err := b.Decode(ctx, cue); err != nil {
			b.logger.Warn("asset decode failed", "cue", cue, "error", err)
			continue
		}
		decoded++
	}
	return decoded
}

// Decode fetches and decodes one cue into its PCM buffer. Concurrent
// calls for the same cue share a single attempt.
func (b *BufferBackend) Decode(ctx context.Context, cue assets.CueType) error {
	b.mu.RLock()
	_, ok := b.buffers[cue]
	b.mu.RUnlock()
	if ok {
		return nil
	}

	_, err, _ := b.decodes.Do(string(cue), func() (any, error) {
		return nil, b.decodeOne(ctx, cue)
	})
	return err
}

func (b *BufferBackend) decodeOne(ctx context.Context, cue assets.CueType) error {
	d := b.registry.Lookup(cue)
	if d == nil {
		return fmt.Errorf("no registered source for cue %q", cue)
	}

	data, err := b.fetcher.Fetch(ctx, d)
	if err != nil {
		return err
	}

	buffer, err := decodePCM(data, b.registry.Extension())
	if err != nil {
		return &assets.LoadError{Cue: cue, URI: d.URI, Err: err}
	}

	b.mu.Lock()
	b.buffers[cue] = buffer
	b.mu.Unlock()

	b.logger.Debug("decoded asset", "cue", cue,
		"samples", buffer.Len(), "sample_rate", buffer.Format().SampleRate)
	return nil
}

// decodePCM decodes raw asset bytes into an in-memory buffer.
func decodePCM(data []byte, ext string) (*beep.Buffer, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch ext {
	case "wav":
		streamer, format, err = wav.Decode(bytes.NewReader(data))
	case "ogg":
		streamer, format, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	case "mp3":
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

// Has reports whether the cue has a decoded buffer ready.
func (b *BufferBackend) Has(cue assets.CueType) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.buffers[cue]
	return ok
}

// DecodedCount returns the number of cues with decoded buffers.
func (b *BufferBackend) DecodedCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buffers)
}

// Invalidate drops the decoded buffer for a cue, forcing a fresh decode
// on next use.
func (b *BufferBackend) Invalidate(cue assets.CueType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buffers, cue)
}

// PlayScheduled plays the decoded buffer for cue as a one-shot source
// starting at clock.Now()+when. A zero when plays immediately.
func (b *BufferBackend) PlayScheduled(cue assets.CueType, when time.Duration) error {
	b.mu.RLock()
	buffer, ok := b.buffers[cue]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("cue %s has no decoded buffer: %w", cue, ErrBackendUnavailable)
	}

	var streamer beep.Streamer = buffer.Streamer(0, buffer.Len())
	if sr := b.graph.SampleRate(); sr != 0 && buffer.Format().SampleRate != sr {
		streamer = beep.Resample(4, buffer.Format().SampleRate, sr, streamer)
	}

	return b.graph.ScheduleAt(streamer, b.clock.Now()+when)
}

// Clear drops every decoded buffer.
func (b *BufferBackend) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffers = make(map[assets.CueType]*beep.Buffer)
}
