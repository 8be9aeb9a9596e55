package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// PipeSource is a push-fed audio source. An external producer (the
// browser client, over the web layer's audio websocket) pushes raw
// PCM16 frames into it; the session controller consumes them through
// the regular Source interface.
type PipeSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	dropped  int64
}

// NewPipeSource creates a new pipe source.
func NewPipeSource(cfg Config, logger *slog.Logger) *PipeSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipeSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 32),
	}
}

// Push hands a raw PCM16 frame to the source. Frames arriving while
// the source is not running, or faster than the consumer drains them,
// are dropped; Push never blocks the caller.
func (p *PipeSource) Push(data []byte) {
	p.mu.Lock()
	if !p.running || p.closed {
		p.mu.Unlock()
		return
	}
	ch := p.streamCh
	p.mu.Unlock()

	var chunk AudioChunk
	chunk.FromBytes(data, p.cfg.SampleRate, p.cfg.Channels)

	select {
	case ch <- chunk:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		p.logger.Debug("pipe source: buffer full, dropping frame")
	}
}

// Start begins accepting pushed audio.
func (p *PipeSource) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return io.ErrClosedPipe
	}
	if p.running {
		return nil
	}
	p.running = true
	p.streamCh = make(chan AudioChunk, 32)
	return nil
}

// Stop halts the source and closes the stream channel.
func (p *PipeSource) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	close(p.streamCh)
	return nil
}

// Read reads the next pushed chunk.
func (p *PipeSource) Read(ctx context.Context) (AudioChunk, error) {
	p.mu.Lock()
	ch := p.streamCh
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

// Stream returns the audio chunk channel.
func (p *PipeSource) Stream() <-chan AudioChunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamCh
}

// Config returns the audio configuration.
func (p *PipeSource) Config() Config {
	return p.cfg
}

// Name returns "pipe".
func (p *PipeSource) Name() string {
	return "pipe"
}

// Close releases resources.
func (p *PipeSource) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	running := p.running
	if running {
		p.running = false
		close(p.streamCh)
	}
	p.mu.Unlock()
	return nil
}

// PipeSink is a push-out audio sink. Written chunks are handed to a
// consumer callback (the web layer, which relays them to the browser
// for playback).
type PipeSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	onChunk func(AudioChunk)
}

// NewPipeSink creates a new pipe sink.
func NewPipeSink(cfg Config, logger *slog.Logger) *PipeSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipeSink{cfg: cfg, logger: logger}
}

// OnChunk sets the consumer callback for written audio.
func (p *PipeSink) OnChunk(fn func(AudioChunk)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChunk = fn
}

// Start begins accepting audio.
func (p *PipeSink) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	p.running = true
	return nil
}

// Stop halts audio acceptance.
func (p *PipeSink) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	return nil
}

// Write hands a chunk to the consumer callback.
func (p *PipeSink) Write(ctx context.Context, chunk AudioChunk) error {
	p.mu.Lock()
	if p.closed || !p.running {
		p.mu.Unlock()
		return io.ErrClosedPipe
	}
	fn := p.onChunk
	p.mu.Unlock()

	if fn != nil {
		fn(chunk)
	}
	return nil
}

// Clear is a no-op for the pipe sink; chunks already handed to the
// consumer cannot be recalled. Pending-chunk discards happen in the
// Player, which owns the schedule.
func (p *PipeSink) Clear() error {
	return nil
}

// Config returns the audio configuration.
func (p *PipeSink) Config() Config {
	return p.cfg
}

// Name returns "pipe".
func (p *PipeSink) Name() string {
	return "pipe"
}

// Close releases resources.
func (p *PipeSink) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.running = false
	return nil
}

var (
	_ Source = (*PipeSource)(nil)
	_ Sink   = (*PipeSink)(nil)
)
