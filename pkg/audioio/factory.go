package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates a new audio source with the given configuration.
// If cfg.Backend is BackendAuto, the pipe backend is selected; the demo
// is fed by browser clients over the web layer's audio websocket.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = BackendPipe
	}

	logger.Debug("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendPipe:
		return NewPipeSource(cfg, logger), nil
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates a new audio sink with the given configuration.
// If cfg.Backend is BackendAuto, the pipe backend is selected.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	backend := cfg.Backend
	if backend == BackendAuto {
		backend = BackendPipe
	}

	logger.Debug("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch backend {
	case BackendPipe:
		return NewPipeSink(cfg, logger), nil
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}
