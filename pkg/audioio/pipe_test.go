package audioio

import (
	"context"
	"testing"
	"time"
)

func TestPipeSource_PushAndRead(t *testing.T) {
	cfg := DefaultCaptureConfig()
	src := NewPipeSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame := SamplesToBytes([]int16{1, 2, 3, 4})
	src.Push(frame)

	readCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	chunk, err := src.Read(readCtx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(chunk.Samples) != 4 {
		t.Errorf("got %d samples, want 4", len(chunk.Samples))
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("sample rate = %d, want %d", chunk.SampleRate, cfg.SampleRate)
	}
}

func TestPipeSource_PushBeforeStartIsDropped(t *testing.T) {
	src := NewPipeSource(DefaultCaptureConfig(), nil)
	defer src.Close()

	// Must not panic or block.
	src.Push(SamplesToBytes([]int16{1, 2}))

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	select {
	case <-src.Stream():
		t.Error("frame pushed before Start should have been dropped")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestPipeSource_PushNeverBlocksWhenFull(t *testing.T) {
	src := NewPipeSource(DefaultCaptureConfig(), nil)
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame := SamplesToBytes(make([]int16, 320))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			src.Push(frame)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Push blocked on a full buffer")
	}
}

func TestPipeSink_DeliversToCallback(t *testing.T) {
	sink := NewPipeSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	var got []AudioChunk
	sink.OnChunk(func(c AudioChunk) { got = append(got, c) })

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := AudioChunk{Samples: []int16{5, 6}, SampleRate: 24000, Channels: 1}
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if len(got) != 1 || len(got[0].Samples) != 2 {
		t.Fatalf("callback got %v, want one 2-sample chunk", got)
	}
}

func TestPipeSink_WriteAfterStopFails(t *testing.T) {
	sink := NewPipeSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	chunk := AudioChunk{Samples: []int16{1}, SampleRate: 24000, Channels: 1}
	if err := sink.Write(ctx, chunk); err == nil {
		t.Error("Write after Stop should fail")
	}
}
