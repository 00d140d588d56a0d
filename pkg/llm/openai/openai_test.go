package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/openagi/pkg/llm"
)

func helloRequest(base string) llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:       "gpt-3.5-turbo",
		APIBase:     base,
		APIKey:      "sk-test",
		Messages:    []llm.Message{llm.UserMessage("Hello")},
		MaxTokens:   2000,
		Temperature: 0.5,
	}
}

// ─── TestBuildRequest ────────────────────────────────────────────────────────

func TestBuildRequest_Fields(t *testing.T) {
	got := buildRequest(helloRequest(""))
	if got.Model != "gpt-3.5-turbo" {
		t.Errorf("model: want %q, got %q", "gpt-3.5-turbo", got.Model)
	}
	if got.MaxTokens != 2000 {
		t.Errorf("max tokens: want 2000, got %d", got.MaxTokens)
	}
	if got.Temperature != 0.5 {
		t.Errorf("temperature: want 0.5, got %v", got.Temperature)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("want 1 message, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != openai.ChatMessageRoleUser {
		t.Errorf("role: want user, got %q", got.Messages[0].Role)
	}
	if got.Messages[0].Content != "Hello" {
		t.Errorf("content: want %q, got %q", "Hello", got.Messages[0].Content)
	}
}

func TestBuildRequest_ZeroTemperatureSurvivesOmitempty(t *testing.T) {
	req := helloRequest("")
	req.Temperature = 0
	got := buildRequest(req)
	if got.Temperature <= 0 {
		t.Fatalf("zero temperature must map to a positive float32, got %v", got.Temperature)
	}
	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := body["temperature"]; !ok {
		t.Error("temperature field was dropped from the request body")
	}
}

func TestBuildRequest_ReasoningModel(t *testing.T) {
	for _, model := range []string{"o1-mini", "o3", "o4-mini", "gpt-5"} {
		req := helloRequest("")
		req.Model = model
		got := buildRequest(req)
		if got.MaxTokens != 0 {
			t.Errorf("%s: max_tokens must not be sent, got %d", model, got.MaxTokens)
		}
		if got.MaxCompletionTokens != 2000 {
			t.Errorf("%s: max_completion_tokens: want 2000, got %d", model, got.MaxCompletionTokens)
		}
		if got.Temperature != 0 {
			t.Errorf("%s: temperature must be left to the API default, got %v", model, got.Temperature)
		}
	}
}

// ─── TestConvertOpenAIResponse ───────────────────────────────────────────────

func TestConvertOpenAIResponse_TextOnly(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Model: "gpt-3.5-turbo",
		Choices: []openai.ChatCompletionChoice{
			{
				Message:      openai.ChatCompletionMessage{Content: "Hi there"},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
	got, err := convertOpenAIResponse(resp)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.Text != "Hi there" {
		t.Errorf("text: want %q, got %q", "Hi there", got.Text)
	}
	if got.StopReason != llm.StopReasonEndTurn {
		t.Errorf("stop reason: want end_turn, got %q", got.StopReason)
	}
	if got.Usage.InputTokens != 10 || got.Usage.OutputTokens != 5 {
		t.Errorf("usage: want 10/5, got %d/%d", got.Usage.InputTokens, got.Usage.OutputTokens)
	}
}

func TestConvertOpenAIResponse_FinishReasonLength(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "trunc"}, FinishReason: openai.FinishReasonLength},
		},
	}
	got, err := convertOpenAIResponse(resp)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got.StopReason != llm.StopReasonMaxTokens {
		t.Errorf("stop reason: want max_tokens, got %q", got.StopReason)
	}
}

func TestConvertOpenAIResponse_NoChoices(t *testing.T) {
	_, err := convertOpenAIResponse(openai.ChatCompletionResponse{})
	var me *llm.MalformedResponseError
	if !errors.As(err, &me) {
		t.Fatalf("want *llm.MalformedResponseError, got %T (%v)", err, err)
	}
}

// ─── TestMapOpenAIError ──────────────────────────────────────────────────────

func makeAPIError(code int) error {
	return &openai.APIError{HTTPStatusCode: code, Message: "test error"}
}

func TestMapOpenAIError_RateLimit(t *testing.T) {
	err := mapOpenAIError(makeAPIError(429))
	var rl *llm.RateLimitError
	if !errors.As(err, &rl) {
		t.Errorf("want *llm.RateLimitError, got %T", err)
	}
	if !llm.Retryable(err) {
		t.Error("RateLimitError should be retryable")
	}
	if got := llm.StatusCode(err); got != 429 {
		t.Errorf("status: want 429, got %d", got)
	}
}

func TestMapOpenAIError_Auth(t *testing.T) {
	for _, code := range []int{401, 403} {
		err := mapOpenAIError(makeAPIError(code))
		var ae *llm.AuthError
		if !errors.As(err, &ae) {
			t.Errorf("code %d: want *llm.AuthError, got %T", code, err)
		}
		if llm.Retryable(err) {
			t.Errorf("code %d: AuthError should not be retryable", code)
		}
	}
}

func TestMapOpenAIError_Server(t *testing.T) {
	for _, code := range []int{500, 502, 503} {
		err := mapOpenAIError(makeAPIError(code))
		var se *llm.ServerError
		if !errors.As(err, &se) {
			t.Errorf("code %d: want *llm.ServerError, got %T", code, err)
		}
	}
}

func TestMapOpenAIError_RequestError(t *testing.T) {
	err := mapOpenAIError(&openai.RequestError{HTTPStatusCode: 502})
	var se *llm.ServerError
	if !errors.As(err, &se) {
		t.Errorf("want *llm.ServerError, got %T", err)
	}
}

func TestMapOpenAIError_SDKValidationNotRetryable(t *testing.T) {
	for _, cause := range sdkValidationErrors {
		err := mapOpenAIError(fmt.Errorf("wrapped: %w", cause))
		var ne *llm.NetworkError
		if errors.As(err, &ne) {
			t.Errorf("%v: validation error must not be a NetworkError", cause)
		}
		if llm.Retryable(err) {
			t.Errorf("%v: validation error must not be retryable", cause)
		}
		if !errors.Is(err, cause) {
			t.Errorf("%v: cause lost in %v", cause, err)
		}
	}
}

func TestMapOpenAIError_UnknownNotRetryable(t *testing.T) {
	err := mapOpenAIError(errors.New("marshal request"))
	if llm.Retryable(err) {
		t.Errorf("unclassified local error should not be retryable: %v", err)
	}
}

func TestMapOpenAIError_Nil(t *testing.T) {
	if err := mapOpenAIError(nil); err != nil {
		t.Errorf("want nil, got %v", err)
	}
}

// ─── TestComplete (httptest) ─────────────────────────────────────────────────

func TestComplete_SendsChatCompletionsRequest(t *testing.T) {
	t.Parallel()
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()))
	resp, err := c.Complete(t.Context(), helloRequest(srv.URL+"/v1"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "Hi there" {
		t.Errorf("text: want %q, got %q", "Hi there", resp.Text)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("path: want /v1/chat/completions, got %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization: want %q, got %q", "Bearer sk-test", gotAuth)
	}
	if gotBody["model"] != "gpt-3.5-turbo" {
		t.Errorf("body model: got %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(2000) {
		t.Errorf("body max_tokens: got %v", gotBody["max_tokens"])
	}
	if gotBody["temperature"] != 0.5 {
		t.Errorf("body temperature: got %v", gotBody["temperature"])
	}
	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("body messages: want 1, got %v", gotBody["messages"])
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "user" || first["content"] != "Hello" {
		t.Errorf("body message: got %v", first)
	}
}

func TestComplete_FallsBackToClientBaseURL(t *testing.T) {
	t.Parallel()
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL+"/v1/"), WithHTTPClient(srv.Client()))
	if _, err := c.Complete(t.Context(), helloRequest("")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if hits != 1 {
		t.Errorf("want 1 request, got %d", hits)
	}
}

func TestComplete_Non2xx(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := New(WithHTTPClient(srv.Client())).Complete(t.Context(), helloRequest(srv.URL+"/v1"))
	var ae *llm.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("want *llm.AuthError, got %T (%v)", err, err)
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	_, err := New(WithHTTPClient(srv.Client())).Complete(t.Context(), helloRequest(srv.URL+"/v1"))
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestComplete_NetworkFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL + "/v1"
	srv.Close()

	_, err := New().Complete(t.Context(), helloRequest(base))
	var ne *llm.NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("want *llm.NetworkError, got %T (%v)", err, err)
	}
}

func TestComplete_RejectsMissingKey(t *testing.T) {
	req := helloRequest("http://127.0.0.1:0/v1")
	req.APIKey = ""
	if _, err := New().Complete(t.Context(), req); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestComplete_ReasoningModelReachesServer(t *testing.T) {
	t.Parallel()
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"o3-mini","choices":[{"index":0,"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(srv.Close)

	req := helloRequest(srv.URL + "/v1")
	req.Model = "o3-mini"
	got, err := New(WithHTTPClient(srv.Client())).Complete(t.Context(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != "ok" {
		t.Errorf("text: want ok, got %q", got.Text)
	}
	if _, ok := body["max_tokens"]; ok {
		t.Error("max_tokens must not be sent to a reasoning model")
	}
	if body["max_completion_tokens"] != float64(2000) {
		t.Errorf("max_completion_tokens: want 2000, got %v", body["max_completion_tokens"])
	}
}
