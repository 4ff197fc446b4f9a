package model

// AgentEventType is the kind of an inbound message from the agent runtime
type AgentEventType string

const (
	// AgentEventState carries a full or partial snapshot of the shared state
	AgentEventState AgentEventType = "state"
	// AgentEventProgress carries an intermediate emission, typically logs
	AgentEventProgress AgentEventType = "progress"
	// AgentEventMessage carries assistant text
	AgentEventMessage AgentEventType = "message"
	// AgentEventError reports a failure inside the agent run
	AgentEventError AgentEventType = "error"
)

// AgentEvent is one inbound message on the agent channel
type AgentEvent struct {
	Type    AgentEventType `json:"type"`
	State   *StatePatch    `json:"state,omitempty"`
	Role    string         `json:"role,omitempty"`
	Content string         `json:"content,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ClientMessageType is the kind of an outbound message to the agent runtime
type ClientMessageType string

const (
	ClientMessageConnect ClientMessageType = "connect"
	ClientMessageState   ClientMessageType = "state"
	ClientMessageText    ClientMessageType = "message"
)

// ClientMessage is one outbound message on the agent channel
type ClientMessage struct {
	Type     ClientMessageType `json:"type"`
	Agent    string            `json:"agent,omitempty"`
	ThreadID ThreadID          `json:"thread_id,omitempty"`
	State    *AgentState       `json:"state,omitempty"`
	Content  string            `json:"content,omitempty"`
}

// AssistantMessage is a reply from the agent, delivered to message handlers
type AssistantMessage struct {
	Role    string
	Content string
}
