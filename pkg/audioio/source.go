package audioio

import (
	"context"
	"errors"
	"io"
)

// Microphone acquisition failures. These are terminal for a session
// start attempt and surface to the user as a short message.
var (
	// ErrPermissionDenied indicates the OS or client denied microphone access.
	ErrPermissionDenied = errors.New("audioio: microphone permission denied")

	// ErrDeviceNotFound indicates no usable input device exists.
	ErrDeviceNotFound = errors.New("audioio: no input device found")
)

// Source captures audio from a microphone or other input device.
type Source interface {
	// Start begins audio capture.
	// After calling Start, audio chunks will be available via Read or Stream.
	Start(ctx context.Context) error

	// Stop halts audio capture.
	// It is safe to call Stop multiple times.
	Stop() error

	// Read reads the next audio chunk, blocking if necessary.
	// Returns io.EOF when the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns a channel that receives audio chunks.
	// The channel is closed when the source is stopped.
	Stream() <-chan AudioChunk

	// Config returns the current audio configuration.
	Config() Config

	// Name returns the backend name (e.g., "pipe", "mock").
	Name() string

	// Close releases all resources.
	// After Close, the source cannot be restarted.
	io.Closer
}
