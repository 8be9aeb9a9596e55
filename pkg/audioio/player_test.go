package audioio

import (
	"context"
	"testing"
	"time"
)

// chunkOf builds a playback-rate chunk with the given duration.
func chunkOf(d time.Duration) AudioChunk {
	cfg := DefaultPlaybackConfig()
	n := int(float64(cfg.SampleRate) * d.Seconds())
	return AudioChunk{
		Samples:    make([]int16, n),
		SampleRate: cfg.SampleRate,
		Channels:   1,
	}
}

func TestPlayer_GaplessScheduling(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	p := NewPlayer(sink, nil)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }

	// First chunk starts immediately.
	first := p.schedule(chunkOf(100 * time.Millisecond))
	if !first.start.Equal(base) {
		t.Errorf("first start = %v, want %v", first.start, base)
	}

	// Second chunk arrives in the same burst: must be scheduled
	// back-to-back at the first chunk's end, not at now.
	second := p.schedule(chunkOf(100 * time.Millisecond))
	wantSecond := base.Add(100 * time.Millisecond)
	if !second.start.Equal(wantSecond) {
		t.Errorf("second start = %v, want %v", second.start, wantSecond)
	}

	// A chunk arriving after the queue drained starts at now, not at
	// the stale end-of-queue time.
	p.now = func() time.Time { return base.Add(time.Second) }
	third := p.schedule(chunkOf(100 * time.Millisecond))
	if !third.start.Equal(base.Add(time.Second)) {
		t.Errorf("third start = %v, want %v", third.start, base.Add(time.Second))
	}
}

func TestPlayer_ResetRewindsClockAndDiscardsPending(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	p := NewPlayer(sink, nil)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return base }

	p.schedule(chunkOf(500 * time.Millisecond))
	stale := p.schedule(chunkOf(500 * time.Millisecond))

	p.Reset()

	// Pending chunks from before the reset are stale.
	if !p.stale(stale.gen) {
		t.Error("pre-reset chunk should be stale after Reset")
	}

	// The next chunk starts at-or-after the rewound clock, with no
	// overlap with the discarded audio.
	next := p.schedule(chunkOf(100 * time.Millisecond))
	if next.start.Before(base) {
		t.Errorf("post-reset start = %v, want >= %v", next.start, base)
	}
	if p.stale(next.gen) {
		t.Error("post-reset chunk should not be stale")
	}

	if sink.Clears() == 0 {
		t.Error("Reset should clear the sink")
	}
}

func TestPlayer_PlaybackAndInterrupt(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	p := NewPlayer(sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.Stop()

	// A short chunk plays promptly.
	p.Enqueue(chunkOf(time.Millisecond))
	waitFor(t, func() bool { return len(sink.Writes()) == 1 })

	// A long chunk followed by an interrupt: the long tail scheduled
	// behind it must never reach the sink.
	p.Enqueue(chunkOf(time.Millisecond))
	p.Enqueue(chunkOf(10 * time.Second))
	p.Reset()
	p.Enqueue(chunkOf(time.Millisecond))

	waitFor(t, func() bool { return len(sink.Writes()) >= 2 })

	// Give any stale chunk a chance to leak, then count.
	time.Sleep(50 * time.Millisecond)
	for _, w := range sink.Writes() {
		if w.Duration() > time.Second {
			t.Error("discarded chunk reached the sink after Reset")
		}
	}
}

func TestPlayer_StartTwice(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	p := NewPlayer(sink, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start() should fail; the player is one-shot")
	}

	p.Stop()
	if err := p.Start(context.Background()); err == nil {
		t.Error("Start() after Stop() should fail; the player is one-shot")
	}
}

func TestPlayer_EnqueueNeverBlocks(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	p := NewPlayer(sink, nil)
	// Player not started: queue fills, further enqueues drop.

	done := make(chan struct{})
	go func() {
		for i := 0; i < playerQueueSize+10; i++ {
			p.Enqueue(chunkOf(time.Millisecond))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
