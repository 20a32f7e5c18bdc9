// Package wire defines the JSON frame types exchanged with the Weave
// orchestration service. Every frame is a JSON object carrying a "type"
// discriminator, sent as a WebSocket text message.
package wire

import "encoding/json"

type FrameType string

const (
	TypeHandshake         FrameType = "HANDSHAKE"
	TypeHandshakeResponse FrameType = "HANDSHAKE_RESPONSE"
	TypeRegisterCommand   FrameType = "REGISTER_COMMAND"
	TypeCommand           FrameType = "COMMAND"
	TypeResponse          FrameType = "RESPONSE"
	TypeWorkflow          FrameType = "WORKFLOW"
	TypeWorkflowResult    FrameType = "WORKFLOW_RESULT"
	TypeListWorkflows     FrameType = "LIST_WORKFLOWS"
	TypeWorkflowList      FrameType = "WORKFLOW_LIST"
)

// Handshake error codes the service is known to return.
const (
	ErrCodeInvalidAPIKey          = "invalid_api_key"
	ErrCodeWorldNotFound          = "world_not_found"
	ErrCodeWorldNotFoundHandshake = "world_not_found_handshake"
)

// RawFrame is an incoming frame with its discriminator and request id
// pre-parsed so the router can dispatch without double-decoding.
type RawFrame struct {
	Type      FrameType       `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Raw       json.RawMessage `json:"-"` // original bytes
}

// DecodeRaw partially decodes data so callers can dispatch on Type.
func DecodeRaw(data []byte) (RawFrame, error) {
	var rf RawFrame
	if err := json.Unmarshal(data, &rf); err != nil {
		return rf, err
	}
	rf.Raw = data
	return rf, nil
}

// ── Client → server ──────────────────────────────────────────────────────────

// Handshake opens a session. It is the first frame sent after the transport
// connects. ActorName and Metadata are present only when joining as an actor.
type Handshake struct {
	Type      FrameType      `json:"type"` // HANDSHAKE
	APIKey    string         `json:"apiKey"`
	WorldID   string         `json:"worldId,omitempty"`
	ActorName string         `json:"actorName,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RegisterCommand announces a locally registered command handler so agents
// can discover and invoke it.
type RegisterCommand struct {
	Type           FrameType `json:"type"` // REGISTER_COMMAND
	ActorName      string    `json:"actorName"`
	CommandName    string    `json:"commandName"`
	ParameterTypes []string  `json:"parameterTypes"`
}

// Command invokes a named command on an actor. Inbound (server → client) it
// carries the SourceChannel the response must be addressed to; outbound it
// is a plain invocation addressed by actor name.
type Command struct {
	Type            FrameType         `json:"type"` // COMMAND
	TargetActorName string            `json:"targetActorName"`
	CommandName     string            `json:"commandName"`
	Args            []json.RawMessage `json:"args"`
	RequestID       string            `json:"requestId"`
	SourceChannel   string            `json:"sourceChannel,omitempty"`
}

// Response answers exactly one Command. Result and Error are mutually
// exclusive. Inbound RESPONSE frames decode to InboundResponse instead.
type Response struct {
	Type          FrameType `json:"type"` // RESPONSE
	TargetChannel string    `json:"targetChannel,omitempty"`
	RequestID     string    `json:"requestId"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// Workflow starts a named remote computation and awaits a single result.
type Workflow struct {
	Type         FrameType `json:"type"` // WORKFLOW
	WorkflowName string    `json:"workflowName"`
	Args         any       `json:"args"`
	RequestID    string    `json:"requestId"`
}

// ListWorkflows requests the world's workflow catalog.
type ListWorkflows struct {
	Type      FrameType `json:"type"` // LIST_WORKFLOWS
	RequestID string    `json:"requestId"`
}

// ── Server → client ──────────────────────────────────────────────────────────

// HandshakeResponse acknowledges or rejects a Handshake.
type HandshakeResponse struct {
	Type         FrameType  `json:"type"` // HANDSHAKE_RESPONSE
	Success      bool       `json:"success"`
	ClientID     string     `json:"clientId,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	RedisChannel string     `json:"redisChannel,omitempty"`
	Message      string     `json:"message,omitempty"`
	ActorInfo    *ActorInfo `json:"actorInfo,omitempty"`
}

// ActorInfo restores server-side state for a returning actor: its metadata
// bag and the command signatures the service already knows about.
type ActorInfo struct {
	Metadata           map[string]any      `json:"metadata,omitempty"`
	RegisteredCommands []RegisteredCommand `json:"registeredCommands,omitempty"`
}

type RegisteredCommand struct {
	Name           string   `json:"name"`
	ParameterTypes []string `json:"parameterTypes"`
}

// WorkflowResult completes a Workflow request.
type WorkflowResult struct {
	Type      FrameType       `json:"type"` // WORKFLOW_RESULT
	RequestID string          `json:"requestId"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// WorkflowList completes a ListWorkflows request.
type WorkflowList struct {
	Type      FrameType            `json:"type"` // WORKFLOW_LIST
	RequestID string               `json:"requestId"`
	Workflows []WorkflowDescriptor `json:"workflows,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// WorkflowDescriptor describes one invocable workflow. The shape matches the
// OpenAI function-tool format so descriptors can be handed to an LLM as-is.
type WorkflowDescriptor struct {
	Type     string           `json:"type"` // "function"
	Function WorkflowFunction `json:"function"`
}

type WorkflowFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema
	Strict      bool           `json:"strict,omitempty"`
}

// InboundResponse is a received RESPONSE frame. The result stays raw JSON
// so the awaiting caller decides how to decode it.
type InboundResponse struct {
	Type          FrameType       `json:"type"`
	TargetChannel string          `json:"targetChannel,omitempty"`
	RequestID     string          `json:"requestId"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// DecodeResponse decodes an inbound RESPONSE frame.
func DecodeResponse(data []byte) (InboundResponse, error) {
	var in InboundResponse
	if err := json.Unmarshal(data, &in); err != nil {
		return InboundResponse{}, err
	}
	return in, nil
}
