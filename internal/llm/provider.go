// Package llm defines the generation capability every backend (Ollama,
// Anthropic, OpenAI, Vertex) implements, per the provider-capability
// contract in the specification: a single prompt or an ordered
// sequence of role-tagged messages in, generated text out.
package llm

import "context"

// Role tags a Message's author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of an ordered, role-tagged conversation.
type Message struct {
	Role    Role
	Content string
}

// GenerateRequest carries either a single Prompt or an ordered Messages
// sequence (Messages takes precedence when both are set), plus the
// sampling controls the specification exposes.
type GenerateRequest struct {
	Prompt      string
	Messages    []Message
	MaxTokens   int
	Temperature float64 // 0..2
}

// Provider is the generation capability. Construction is lazy: New
// functions validate credentials but must not open a network client
// until the first Generate/IsAvailable call.
type Provider interface {
	// Generate produces text grounded in the request. Errors are
	// *nexuserr.Error with Kind one of rate_limit, server_fault,
	// unrecoverable (see internal/nexuserr and internal/llm/retry).
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	// Model returns the model identifier reported in responses.
	Model() string
	// BackendTag is the stable, non-reflective identifier for this
	// backend ("ollama", "anthropic", "openai", "vertex").
	BackendTag() string
	// IsAvailable probes reachability without panicking on failure.
	IsAvailable(ctx context.Context) bool
}

// AsMessages returns req.Messages if set, else a single user message
// built from req.Prompt.
func (r GenerateRequest) AsMessages() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{{Role: RoleUser, Content: r.Prompt}}
}
