package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ravi-parthasarathy/openagi/pkg/llm"
)

// RunResult describes a completed run.
type RunResult struct {
	Output       string         `json:"output"`
	OutputNodeID string         `json:"outputNodeId,omitempty"`
	Model        string         `json:"model"`
	StopReason   llm.StopReason `json:"stopReason"`
	Usage        llm.Usage      `json:"usage"`
	Duration     time.Duration  `json:"duration"`
}

// Executor runs the Input → LLM → Output pipeline held by a Graph.
//
// At most one run is in flight: starting a run cancels the previous one,
// and only the most recently started run may write the Output node.
type Executor struct {
	graph   *Graph
	client  llm.Client
	timeout time.Duration

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRequestTimeout bounds each completion request. Zero means no timeout.
func WithRequestTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an Executor over g that issues requests through client.
func NewExecutor(g *Graph, client llm.Client, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("graph must not be nil")
	}
	if client == nil {
		return nil, fmt.Errorf("llm client must not be nil")
	}
	e := &Executor{graph: g, client: client}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Run reads the Input text and LLM configuration, performs one completion
// request and writes the first completion into the Output node.
//
// Errors: ErrMissingConfiguration (no request issued), *RequestFailedError
// (Output left unchanged) and ErrRunSuperseded.
func (e *Executor) Run(ctx context.Context) (RunResult, error) {
	req, err := e.buildRequest()
	if err != nil {
		return RunResult{}, err
	}

	runCtx, seq, release := e.begin(ctx)
	defer release()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, e.timeout)
		defer cancel()
	}

	slog.Info("running workflow", "model", req.Model, "max_tokens", req.MaxTokens, "temperature", req.Temperature)
	start := time.Now()
	resp, callErr := e.client.Complete(runCtx, req)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq != seq {
		slog.Info("workflow run superseded", "duration", elapsed)
		return RunResult{}, ErrRunSuperseded
	}
	if callErr != nil {
		slog.Warn("workflow run failed",
			"status", llm.StatusCode(callErr),
			"retryable", llm.Retryable(callErr),
			"duration", elapsed,
			"err", callErr)
		return RunResult{}, &RequestFailedError{Cause: callErr}
	}

	outID := e.graph.writeOutput(resp.Text)
	slog.Info("workflow run complete",
		"duration", elapsed,
		"output_tokens", resp.Usage.OutputTokens,
		"output_node", outID)

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return RunResult{
		Output:       resp.Text,
		OutputNodeID: outID,
		Model:        model,
		StopReason:   resp.StopReason,
		Usage:        resp.Usage,
		Duration:     elapsed,
	}, nil
}

// Cancel aborts the in-flight run, if any. The cancelled run returns
// ErrRunSuperseded.
func (e *Executor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.seq++
		e.cancel()
		e.cancel = nil
	}
}

// begin registers a new run, cancelling any in-flight one.
func (e *Executor) begin(parent context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(parent)

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.seq++
	seq := e.seq
	e.cancel = cancel
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		if e.seq == seq {
			e.cancel = nil
		}
		e.mu.Unlock()
		cancel()
	}
	return ctx, seq, release
}

// buildRequest checks the run preconditions and assembles the completion
// request from a single snapshot.
func (e *Executor) buildRequest() (llm.CompletionRequest, error) {
	s := e.graph.Snapshot()

	inNode, okIn := s.NodeByKind(KindInput)
	llmNode, okLLM := s.NodeByKind(KindLLM)
	if !okIn || !okLLM {
		return llm.CompletionRequest{}, ErrMissingConfiguration
	}
	input, _ := inNode.Data.(InputData)
	cfg, _ := llmNode.Data.(LLMData)
	if input.Text == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return llm.CompletionRequest{}, ErrMissingConfiguration
	}

	model := cfg.ModelName
	if model == "" {
		model = DefaultModelName
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return llm.CompletionRequest{
		Model:       model,
		APIBase:     cfg.APIBase,
		APIKey:      strings.TrimSpace(cfg.APIKey),
		Messages:    []llm.Message{llm.UserMessage(input.Text)},
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
	}, nil
}

// IsSuperseded reports whether err came from a run replaced by a newer one.
func IsSuperseded(err error) bool {
	return errors.Is(err, ErrRunSuperseded)
}
