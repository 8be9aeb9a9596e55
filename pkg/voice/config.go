package voice

import "errors"

// Default model and voice for the live session.
const (
	DefaultModel = "models/gemini-2.0-flash-exp"
	DefaultVoice = "Kore"
)

// Voices available for synthesis.
var knownVoices = map[string]bool{
	"Puck":   true,
	"Charon": true,
	"Kore":   true,
	"Fenrir": true,
	"Zephyr": true,
}

// Config holds all parameters for a voice session.
type Config struct {
	// Credentials. Exactly one path is used: when TokenURL is set a
	// short-lived token is fetched per connection; otherwise APIKey
	// is passed directly.
	APIKey   string
	TokenURL string

	// Model is the backend model identifier.
	Model string

	// Voice is the synthesized voice name (Puck, Charon, Kore,
	// Fenrir, Zephyr).
	Voice string

	// SystemPrompt is the persona instruction for the agent.
	SystemPrompt string

	// Greeting, when set, is spoken by the agent as soon as the
	// session opens.
	Greeting string

	// Tools the backend is permitted to invoke.
	Tools []Tool

	// Audio settings. Gemini Live consumes 16kHz and produces 24kHz.
	InputSampleRate  int
	OutputSampleRate int

	// Transcription of both directions is required for the live
	// transcript display.
	EnableInputTranscription  bool
	EnableOutputTranscription bool

	// Debug enables verbose protocol logging.
	Debug bool
}

// DefaultConfig returns a Config with defaults for Gemini Live.
func DefaultConfig() Config {
	return Config{
		Model:                     DefaultModel,
		Voice:                     DefaultVoice,
		InputSampleRate:           16000,
		OutputSampleRate:          24000,
		EnableInputTranscription:  true,
		EnableOutputTranscription: true,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.TokenURL == "" {
		return ErrMissingCredentials
	}
	if c.Voice != "" && !knownVoices[c.Voice] {
		return errors.New("voice: unknown voice name: " + c.Voice)
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return errors.New("voice: sample rates must be positive")
	}
	return nil
}

// WithAPIKey returns a copy with the API key set.
func (c Config) WithAPIKey(key string) Config {
	c.APIKey = key
	return c
}

// WithTokenURL returns a copy with the token endpoint set.
func (c Config) WithTokenURL(url string) Config {
	c.TokenURL = url
	return c
}

// WithVoice returns a copy with the voice name set.
func (c Config) WithVoice(voice string) Config {
	c.Voice = voice
	return c
}

// WithSystemPrompt returns a copy with the system prompt set.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// WithGreeting returns a copy with the opening line set.
func (c Config) WithGreeting(greeting string) Config {
	c.Greeting = greeting
	return c
}

// WithTools returns a copy with the tool declarations set.
func (c Config) WithTools(tools ...Tool) Config {
	c.Tools = tools
	return c
}

// WithDebug returns a copy with debug enabled.
func (c Config) WithDebug(debug bool) Config {
	c.Debug = debug
	return c
}
