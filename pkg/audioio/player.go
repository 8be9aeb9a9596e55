package audioio

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// playerQueueSize bounds how many chunks may be awaiting playback.
// Gemini delivers audio in bursts well below this; overflow drops the
// chunk rather than blocking the event loop.
const playerQueueSize = 256

type scheduledChunk struct {
	chunk AudioChunk
	start time.Time
	gen   uint64
}

// Player schedules audio chunks for gapless sequential playback on a
// Sink. Each chunk starts at the later of the current playback clock
// and the previous chunk's scheduled end, so bursts of inbound audio
// play back-to-back without gaps or overlap.
//
// Reset discards everything still pending and rewinds the clock, which
// is exactly the behavior the transport's interrupted event requires.
type Player struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	started bool
	next    time.Time
	gen     uint64
	onChunk func(AudioChunk)

	queue    chan scheduledChunk
	done     chan struct{}
	stopOnce sync.Once
}

// NewPlayer creates a player over the given sink.
func NewPlayer(sink Sink, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		sink:   sink,
		logger: logger,
		now:    time.Now,
		queue:  make(chan scheduledChunk, playerQueueSize),
		done:   make(chan struct{}),
	}
}

// OnChunk sets an observer invoked as each chunk is handed to the sink.
// The session controller uses this to feed the volume meter.
func (p *Player) OnChunk(fn func(AudioChunk)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChunk = fn
}

// Start begins the playback loop. A player runs once for its lifetime:
// after Stop it cannot be restarted, and a second Start is an error.
// Use Reset between calls instead.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("player already started")
	}
	p.started = true
	p.mu.Unlock()

	if err := p.sink.Start(ctx); err != nil {
		p.mu.Lock()
		p.started = false
		p.mu.Unlock()
		return err
	}
	go p.run(ctx)
	return nil
}

// Enqueue schedules a chunk for playback. It never blocks; when the
// queue is full the chunk is dropped and logged.
func (p *Player) Enqueue(chunk AudioChunk) {
	item := p.schedule(chunk)

	select {
	case p.queue <- item:
	default:
		p.logger.Warn("player queue full, dropping chunk",
			"duration_ms", chunk.Duration().Milliseconds())
	}
}

// schedule assigns the chunk its playback slot: the later of now and
// the previous chunk's scheduled end.
func (p *Player) schedule(chunk AudioChunk) scheduledChunk {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	if p.next.After(start) {
		start = p.next
	}
	p.next = start.Add(chunk.Duration())

	return scheduledChunk{chunk: chunk, start: start, gen: p.gen}
}

// Reset discards all pending playback and rewinds the scheduling clock
// to now. Chunks already queued become stale and are skipped; the next
// enqueued chunk starts at or after the current clock time.
func (p *Player) Reset() {
	p.mu.Lock()
	p.gen++
	p.next = p.now()
	p.mu.Unlock()

	if err := p.sink.Clear(); err != nil {
		p.logger.Warn("sink clear failed", "error", err)
	}
}

// Stop halts playback, discarding anything still scheduled.
func (p *Player) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	if err := p.sink.Clear(); err != nil {
		p.logger.Warn("sink clear failed", "error", err)
	}
	if err := p.sink.Stop(); err != nil {
		p.logger.Warn("sink stop failed", "error", err)
	}
}

func (p *Player) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case item := <-p.queue:
			if p.stale(item.gen) {
				continue
			}

			if delay := item.start.Sub(p.now()); delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-p.done:
					timer.Stop()
					return
				case <-timer.C:
				}
			}

			// Re-check after the wait; a Reset may have landed.
			if p.stale(item.gen) {
				continue
			}

			if err := p.sink.Write(ctx, item.chunk); err != nil {
				p.logger.Warn("playback write failed", "error", err)
				continue
			}

			p.mu.Lock()
			fn := p.onChunk
			p.mu.Unlock()
			if fn != nil {
				fn(item.chunk)
			}
		}
	}
}

func (p *Player) stale(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen != p.gen
}
