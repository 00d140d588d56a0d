package llm

import "context"

// Client is the completion interface the workflow executor depends on.
type Client interface {
	// Complete performs a blocking generation and returns the first choice.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// ClientFunc adapts an ordinary function to the Client interface.
type ClientFunc func(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

// Complete calls f(ctx, req).
func (f ClientFunc) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return f(ctx, req)
}
