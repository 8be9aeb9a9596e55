package voice

import (
	"errors"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.Voice != DefaultVoice {
		t.Errorf("Voice = %q, want %q", cfg.Voice, DefaultVoice)
	}
	if cfg.InputSampleRate != 16000 {
		t.Errorf("InputSampleRate = %d, want 16000", cfg.InputSampleRate)
	}
	if cfg.OutputSampleRate != 24000 {
		t.Errorf("OutputSampleRate = %d, want 24000", cfg.OutputSampleRate)
	}
	if !cfg.EnableInputTranscription || !cfg.EnableOutputTranscription {
		t.Error("transcription should be enabled in both directions by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c Config) Config
		wantErr bool
	}{
		{
			name:   "api key",
			mutate: func(c Config) Config { return c.WithAPIKey("key") },
		},
		{
			name:   "token url instead of key",
			mutate: func(c Config) Config { return c.WithTokenURL("http://localhost/token") },
		},
		{
			name:    "no credentials",
			mutate:  func(c Config) Config { return c },
			wantErr: true,
		},
		{
			name: "unknown voice",
			mutate: func(c Config) Config {
				return c.WithAPIKey("key").WithVoice("HAL9000")
			},
			wantErr: true,
		},
		{
			name: "known voice",
			mutate: func(c Config) Config {
				return c.WithAPIKey("key").WithVoice("Puck")
			},
		},
		{
			name: "zero sample rate",
			mutate: func(c Config) Config {
				c = c.WithAPIKey("key")
				c.InputSampleRate = 0
				return c
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.mutate(DefaultConfig())
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateMissingCredentials(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("Validate() = %v, want ErrMissingCredentials", err)
	}
}

func TestConfigBuilders(t *testing.T) {
	base := DefaultConfig()
	cfg := base.
		WithAPIKey("key").
		WithVoice("Zephyr").
		WithSystemPrompt("prompt").
		WithGreeting("hello").
		WithTools(Tool{Name: "record_dispatch"}).
		WithDebug(true)

	if cfg.APIKey != "key" || cfg.Voice != "Zephyr" || cfg.SystemPrompt != "prompt" {
		t.Errorf("builder chain did not apply: %+v", cfg)
	}
	if cfg.Greeting != "hello" || len(cfg.Tools) != 1 || !cfg.Debug {
		t.Errorf("builder chain did not apply: %+v", cfg)
	}

	// Builders copy; the base stays untouched.
	if base.APIKey != "" || base.Voice != DefaultVoice {
		t.Errorf("base config was mutated: %+v", base)
	}
}

func TestNewRequiresValidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New with empty config should fail validation")
	}
}
