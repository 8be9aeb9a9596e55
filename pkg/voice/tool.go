package voice

// Tool declares a function the backend agent may invoke during
// conversation.
type Tool struct {
	// Name is the unique identifier for the tool (e.g., "record_dispatch").
	Name string `json:"name"`

	// Description explains what the tool does, helping the agent
	// decide when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's arguments.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is an invocation of a tool by the agent. Every call must be
// answered, or the backend's conversation flow stalls waiting for it.
type ToolCall struct {
	// ID is the unique identifier for this call. Used to match
	// results back to the correct call.
	ID string

	// Name is the tool being invoked.
	Name string

	// Arguments contains the parsed arguments from the agent.
	Arguments map[string]any
}
