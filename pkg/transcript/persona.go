package transcript

import "strings"

// Persona is the display-only classification of which conversational
// mode the agent currently appears to be in.
type Persona string

const (
	// PersonaService is the friendly front-desk/rebates mode.
	// It is the initial value on session start and the reset value on
	// session end.
	PersonaService Persona = "SERVICE"

	// PersonaEmergency is the emergency-dispatch mode.
	PersonaEmergency Persona = "EMERGENCY"
)

// Keyword triggers, matched case-insensitively as substrings.
// Emergency keywords are checked first: safety takes precedence when
// both sets match a single utterance.
var (
	emergencyKeywords = []string{"emergency", "urgent", "911", "safety"}
	serviceKeywords   = []string{"rebate", "service", "hello", "welcome"}
)

// Classify folds one finalized transcript line into the persona state.
// Only agent speech is scanned; user speech never changes the persona.
// When neither keyword set matches, the previous persona persists.
func Classify(prev Persona, speaker Speaker, text string) Persona {
	if speaker != SpeakerAgent {
		return prev
	}

	lower := strings.ToLower(text)

	for _, kw := range emergencyKeywords {
		if strings.Contains(lower, kw) {
			return PersonaEmergency
		}
	}
	for _, kw := range serviceKeywords {
		if strings.Contains(lower, kw) {
			return PersonaService
		}
	}
	return prev
}
