// Package config provides environment configuration helpers for
// dispatch-voice commands.
package config

import (
	"os"
	"strconv"
)

// Defaults for the demo deployment.
const (
	DefaultHistorySize = 3
	DefaultVoice       = "Kore"
	DefaultPort        = 8080
)

// GoogleAPIKey returns the Gemini API key from GOOGLE_API_KEY.
// Empty when unset; callers decide whether that is fatal.
func GoogleAPIKey() string {
	return os.Getenv("GOOGLE_API_KEY")
}

// TokenURL returns the credential-issuing endpoint from DISPATCH_TOKEN_URL.
// When set, sessions authenticate with a short-lived token instead of
// the raw API key.
func TokenURL() string {
	return os.Getenv("DISPATCH_TOKEN_URL")
}

// WebhookURL returns the dispatch-record webhook endpoint from
// DISPATCH_WEBHOOK_URL. Falls back to the provided default if not set.
func WebhookURL(def string) string {
	if url := os.Getenv("DISPATCH_WEBHOOK_URL"); url != "" {
		return url
	}
	return def
}

// BookingURL returns the booking link handed to callers from
// DISPATCH_BOOKING_URL. Falls back to the provided default if not set.
func BookingURL(def string) string {
	if url := os.Getenv("DISPATCH_BOOKING_URL"); url != "" {
		return url
	}
	return def
}

// Voice returns the synthesized voice name from DISPATCH_VOICE or default.
func Voice() string {
	if v := os.Getenv("DISPATCH_VOICE"); v != "" {
		return v
	}
	return DefaultVoice
}

// HistorySize returns the transcript display window size from
// DISPATCH_HISTORY_SIZE or the default.
func HistorySize() int {
	if v := os.Getenv("DISPATCH_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultHistorySize
}

// Port returns the HTTP port from PORT or the default.
func Port() int {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultPort
}
