// Package openai adapts the chat-completions endpoint of OpenAI-compatible
// APIs to the llm.Client interface.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/openagi/pkg/llm"
)

// DefaultBaseURL is used when neither the request nor the client names one.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client issues chat-completion requests. The SDK client is built per call
// because the API key and base URL arrive with each request.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the base URL used when a request carries none.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient sets the HTTP client used for outbound calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ llm.Client = (*Client)(nil)

// Complete performs a single chat-completion call. There is no retry.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return llm.CompletionResponse{}, fmt.Errorf("openai: invalid request: %w", err)
	}

	cfg := openai.DefaultConfig(req.APIKey)
	cfg.BaseURL = c.resolveBaseURL(req.APIBase)
	cfg.HTTPClient = c.httpClient
	sdk := openai.NewClientWithConfig(cfg)

	resp, err := sdk.CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return llm.CompletionResponse{}, mapOpenAIError(err)
	}
	return convertOpenAIResponse(resp)
}

func (c *Client) resolveBaseURL(requested string) string {
	base := strings.TrimSpace(requested)
	if base == "" {
		base = c.baseURL
	}
	return strings.TrimRight(base, "/")
}

// ─── request conversion ──────────────────────────────────────────────────────

// buildRequest converts a unified request to the chat-completions body
// {model, messages, max_tokens, temperature}.
//
// Reasoning models reject max_tokens and any temperature other than 1, so
// for them the limit moves to max_completion_tokens and temperature is left
// at the API default.
func buildRequest(req llm.CompletionRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: buildMessages(req.Messages),
	}
	if isReasoningModel(req.Model) {
		out.MaxCompletionTokens = req.MaxTokens
		return out
	}
	out.MaxTokens = req.MaxTokens
	out.Temperature = temperature(req.Temperature)
	return out
}

var reasoningPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

func isReasoningModel(model string) bool {
	for _, p := range reasoningPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// temperature maps 0 to the smallest positive float32: the SDK drops a zero
// temperature via omitempty and the API would apply its default of 1.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func buildMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// ─── response conversion ─────────────────────────────────────────────────────

// convertOpenAIResponse extracts choices[0].message.content.
func convertOpenAIResponse(resp openai.ChatCompletionResponse) (llm.CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return llm.CompletionResponse{}, &llm.MalformedResponseError{LLMError: llm.LLMError{
			Code:    http.StatusOK,
			Message: "response contains no choices",
		}}
	}
	choice := resp.Choices[0]

	stop := llm.StopReasonEndTurn
	switch choice.FinishReason {
	case openai.FinishReasonLength:
		stop = llm.StopReasonMaxTokens
	case openai.FinishReasonContentFilter:
		stop = llm.StopReasonContentFilter
	}

	return llm.CompletionResponse{
		Text:       choice.Message.Content,
		Model:      resp.Model,
		StopReason: stop,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// ─── error mapping ───────────────────────────────────────────────────────────

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classify(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return classify(reqErr.HTTPStatusCode, msg, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &llm.MalformedResponseError{LLMError: llm.LLMError{
			Code:    http.StatusOK,
			Message: "response body is not a chat completion",
			Cause:   err,
		}}
	}

	for _, local := range sdkValidationErrors {
		if errors.Is(err, local) {
			return &llm.LLMError{Message: "request rejected before sending", Cause: err}
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &llm.NetworkError{LLMError: llm.LLMError{Message: "request failed", Cause: err}}
	}
	return &llm.LLMError{Message: "request failed", Cause: err}
}

// sdkValidationErrors are returned by go-openai before any request is sent.
var sdkValidationErrors = []error{
	openai.ErrChatCompletionInvalidModel,
	openai.ErrChatCompletionStreamNotSupported,
	openai.ErrContentFieldsMisused,
	openai.ErrReasoningModelMaxTokensDeprecated,
	openai.ErrReasoningModelLimitationsLogprobs,
	openai.ErrReasoningModelLimitationsOther,
	openai.ErrO1MaxTokensDeprecated,
	openai.ErrO1BetaLimitationsMessageTypes,
	openai.ErrO1BetaLimitationsTools,
	openai.ErrO1BetaLimitationsLogprobs,
	openai.ErrO1BetaLimitationsOther,
}

func classify(code int, message string, cause error) error {
	base := llm.LLMError{Code: code, Message: message, Cause: cause}
	switch {
	case code == http.StatusTooManyRequests:
		return &llm.RateLimitError{LLMError: base}
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return &llm.AuthError{LLMError: base}
	case code == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "context length"):
		return &llm.ContextLengthError{LLMError: base}
	case code >= 500:
		return &llm.ServerError{LLMError: base}
	case code >= 200 && code < 300:
		return &llm.MalformedResponseError{LLMError: base}
	default:
		return &base
	}
}
