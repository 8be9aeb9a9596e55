// Package audioio provides audio capture and playback plumbing for the
// voice demo: PCM16 chunk types, capture sources, playback sinks, a
// gapless playback scheduler, and an amplitude meter for the UI.
//
// Backends:
//   - Pipe - in-process push source/sink, bridged to the browser over
//     the web layer's audio websocket
//   - Mock - synthetic audio for CI/testing without hardware
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPipe uses in-process push pipes fed by an external client.
	BackendPipe Backend = "pipe"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration for one direction.
type Config struct {
	// Backend specifies which audio backend to use.
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels.
	Channels int `json:"channels"`

	// BufferDuration is the size of audio buffers.
	BufferDuration time.Duration `json:"buffer_duration"`
}

// DefaultCaptureConfig returns the capture-side defaults.
// Gemini Live consumes 16kHz mono PCM16.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// DefaultPlaybackConfig returns the playback-side defaults.
// Gemini Live produces 24kHz mono PCM16.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
