// Package provider defines the capability boundary the cognition engine
// consumes from its host: an LLM for reasoning, an embedder for vector
// search, an optional sub-agent executor, a message sender for the
// scheduler, and a timezone lookup for quiet-hours evaluation (§6.1).
package provider

import "context"

// BlockKind tags the union type returned inside a completion response.
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockToolUse    BlockKind = "tool_use"
	BlockToolResult BlockKind = "tool_result"
	BlockThinking   BlockKind = "thinking"
	BlockImage      BlockKind = "image"
)

// ContentBlock is one tagged-union element of a completion's content.
type ContentBlock struct {
	Kind      BlockKind      `json:"kind"`
	Text      string         `json:"text,omitempty"`
	ToolName  string         `json:"toolName,omitempty"`
	ToolInput map[string]any `json:"toolInput,omitempty"`
	ToolUseID string         `json:"toolUseId,omitempty"`
	Result    string         `json:"result,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
}

// Message is one turn of a chat-style completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool describes a callable tool advertised to the LLM.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// CompleteRequest is the input to a single LLM completion call.
type CompleteRequest struct {
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"maxTokens"`
	Tools       []Tool    `json:"tools,omitempty"`
}

// Usage reports token accounting for a completion (§6.1, §7 budget errors).
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// CompleteResponse is the output of a single LLM completion call.
type CompleteResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stopReason"`
	Usage      Usage          `json:"usage"`
	Model      string         `json:"model"`
}

// LLM is the reasoning capability consumed by the relation classifier,
// dream cycle, self-reflection, and gap triage (§6.1).
type LLM interface {
	Complete(ctx context.Context, req CompleteRequest) (CompleteResponse, error)
}

// Embedder is the vector-embedding capability consumed by hybrid
// search, spreading-activation seed scoring, and session-summary
// storage (§6.1).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// SubAgentResult is the outcome of a dispatched task-kind scheduled
// item (§3.5, §6.1).
type SubAgentResult struct {
	Output         string `json:"output"`
	TaskComplete   bool   `json:"taskComplete"`
	IterationsUsed int    `json:"iterationsUsed"`
}

// SubAgent executes a bounded multi-step task on the scheduler's
// behalf. Optional: a host with no sub-agent capability simply never
// registers one, and the scheduler then sends a task-kind item's stored
// message instead.
type SubAgent interface {
	Run(ctx context.Context, goal string, tools []string) (SubAgentResult, error)
}

// MessageSender delivers a nudge or task result to a user outside the
// request/response cycle that created it (§6.1).
type MessageSender interface {
	SendMessage(ctx context.Context, userID, text string) (bool, error)
}

// TimezoneLookup resolves a user's IANA timezone for quiet-hours
// evaluation (§6.1).
type TimezoneLookup interface {
	Timezone(ctx context.Context, userID string) (string, error)
}
