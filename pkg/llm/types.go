package llm

import "fmt"

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage is a convenience constructor for a plain-text user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// CompletionRequest is the input to a single chat-completion call.
// APIKey and APIBase travel with the request because they are supplied by the
// user per workflow, not fixed at process start.
type CompletionRequest struct {
	Model       string    `json:"model"`
	APIBase     string    `json:"-"`
	APIKey      string    `json:"-"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// Validate reports request fields that can never produce a valid call.
func (r CompletionRequest) Validate() error {
	if r.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative, got %d", r.MaxTokens)
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return fmt.Errorf("temperature must be within [0,1], got %g", r.Temperature)
	}
	return nil
}

// StopReason explains why generation stopped.
type StopReason string

const (
	StopReasonEndTurn       StopReason = "end_turn"
	StopReasonMaxTokens     StopReason = "max_tokens"
	StopReasonContentFilter StopReason = "content_filter"
)

// Usage reports token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionResponse carries the first completion choice.
type CompletionResponse struct {
	Text       string     `json:"text"`
	Model      string     `json:"model"`
	StopReason StopReason `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}
