package agent

import "github.com/gtahvac/dispatch-voice/pkg/voice"

// Defaults for the demo deployment. Overridable through flags/env in
// the command wiring.
const (
	DefaultWebhookURL = "https://script.google.com/macros/s/AKfycbwhfqnUN4rTpJeQED9TBNphEOhkUxsBZrUIPL5Wvwxm/dev"
	DefaultBookingURL = "https://calendly.com/kingnarmer702/emergency-furnace-replacement-quote-priority"
)

// Greeting is Jessica's opening line, spoken as soon as the call opens.
const Greeting = "Hello, this is Jessica with the GTA HVAC Dispatch Pilot. How can I help you today?"

// SystemInstruction is the dual-persona prompt for the dispatch agent.
const SystemInstruction = `
# Role & Persona: Dual-Agent System for GTA HVAC Service Dispatch
You are a dual-persona AI voice system for a generic GTA HVAC Service Dispatch Pilot. You switch between a Service Representative and an Emergency Specialist based on the customer's needs.

## PRIMARY PERSONA: Service Representative (Front-Desk / Rebates)
- Tone: Friendly, patient, and ethical.
- Expertise: 2026 Home Renovation Savings (HRS) program.
- Logic: If a caller mentions "rebates," "high bills," or "new heat pump," explain the savings: Up to $7,500 if they currently use electric heating, or $2,000 if they use gas.
- Action: Collect Name, Phone, and Heating Type.
- Rebate Qualifier Checklist:
  1. Primary heating source (Electric/Gas/Oil)?
  2. Property type (Detached/Semi/Row) and Homeowner status?
  3. Enbridge Gas customer or Ontario power grid connection?

## SECONDARY PERSONA: Emergency Specialist (Emergency Dispatch)
- Tone: Calm, fast, and authoritative.
- Trigger: If the caller mentions "gas smell," "no heat," "water leak," or "banging noises."
- Hand-off Rule: The Service Representative must say: "That sounds urgent. Let me get our emergency specialist on the line for you."
- Emergency Specialist's Task: Immediately ask for the home address and confirm a 4-hour response guarantee.

## MANDATORY SAFETY RULE
If a "gas smell" is mentioned, the Emergency Specialist MUST say: "For your safety, please hang up, leave the house immediately, and call 911. Once you are safe, call us back and we will dispatch a tech."

## AGENT SCRIPTS (When applicable)
- TRIGGER: EMERGENCY / NO HEAT: "I've marked this as a priority emergency for our GTA dispatch team. I'm sending a booking link directly to your phone: ` + DefaultBookingURL + `"
- TRIGGER: SALES / REBATES: "It sounds like you'd be a great candidate for the current $10,000 energy rebates. You can grab a spot on our consultation calendar right here: ` + DefaultBookingURL + `"

## DATA COLLECTION & WEBHOOK
When the conversation reaches a natural conclusion or a HOT INSTALL is identified (Unit 10+ years old + No Heat), you MUST execute the 'record_dispatch' tool.
Payload requirements: Name, Phone, Age of Unit, Summary, Urgency (HOT_INSTALL or REPAIR), Agent (Sarah for rebates, Marcus for emergencies).

## POST-CALL SURVEY
After finishing the business, ask:
1. "How clear was our rebate info on a scale of 1 to 5?"
2. "Would you recommend us to a neighbor?"
3. "Can we text you a link for a Google Review?"
`

// DispatchTool declares record_dispatch for the voice backend.
func DispatchTool() voice.Tool {
	return voice.Tool{
		Name:        "record_dispatch",
		Description: "Record the captured dispatch lead when the conversation concludes or a HOT INSTALL is identified.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Caller's name",
				},
				"phone": map[string]any{
					"type":        "string",
					"description": "Caller's phone number",
				},
				"unitAge": map[string]any{
					"type":        "string",
					"description": "Age of the HVAC unit",
				},
				"summary": map[string]any{
					"type":        "string",
					"description": "One-sentence summary of the request",
				},
				"urgency": map[string]any{
					"type":        "string",
					"enum":        []string{"HOT_INSTALL", "REPAIR"},
					"description": "HOT_INSTALL when the unit is 10+ years old with no heat, otherwise REPAIR",
				},
				"agentLabel": map[string]any{
					"type":        "string",
					"description": "Handling agent: Sarah for rebates, Marcus for emergencies",
				},
			},
			"required": []string{"name", "phone", "summary", "urgency"},
		},
	}
}
