package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"github.com/ravi-parthasarathy/openagi/internal/config"
	"github.com/ravi-parthasarathy/openagi/internal/server"
	"github.com/ravi-parthasarathy/openagi/pkg/llm/openai"
	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd(cfg).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(cfg *config.Config) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:   "openagi",
		Short: "openagi — Input → LLM → Output workflow service",
		Long: `openagi backs a visual workflow editor with exactly three node kinds.

An Input node feeds text to an LLM node, whose completion lands in an Output
node. The server exposes the graph over HTTP and streams changes over a
websocket; the run command executes the pipeline once from the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initLogger(logLevel, logFormat)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", cfg.LogFormat, "log format: text or json")

	root.AddCommand(serveCmd(cfg))
	root.AddCommand(runCmd(cfg))
	root.AddCommand(graphCmd())
	return root
}

// initLogger installs the default slog logger. Output goes to stderr so the
// run command's stdout carries only the completion.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q: use debug, info, warn or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// ─── serve ────────────────────────────────────────────────────────────────────

func serveCmd(cfg *config.Config) *cobra.Command {
	var (
		addr       string
		apiBase    string
		timeout    time.Duration
		runHistory int
		origins    []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the workflow API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy := server.NewOriginPolicy(origins)
			hub := server.NewHub(server.WithOriginPolicy(policy))
			g := workflow.NewGraph(workflow.WithObserver(hub.Publish))
			ex, err := workflow.NewExecutor(g,
				openai.New(openai.WithBaseURL(apiBase)),
				workflow.WithRequestTimeout(timeout))
			if err != nil {
				return fmt.Errorf("build executor: %w", err)
			}
			runs, err := server.NewRunStore(runHistory)
			if err != nil {
				return err
			}
			srv := server.New(addr, server.NewMux(server.NewAPI(g, ex, runs, hub), hub, policy))

			eg, ctx := errgroup.WithContext(signalContext(cmd.Context()))
			eg.Go(srv.Start)
			eg.Go(func() error {
				<-ctx.Done()
				slog.Info("shutting down api server")
				ex.Cancel()
				hub.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&apiBase, "api-base", cfg.APIBase, "default completion API base URL for LLM nodes without one")
	cmd.Flags().DurationVar(&timeout, "request-timeout", cfg.RequestTimeout, "per-run completion timeout (0 = none)")
	cmd.Flags().IntVar(&runHistory, "run-history", cfg.RunHistory, "number of recent runs kept for GET /api/runs/{id}")
	cmd.Flags().StringSliceVar(&origins, "allowed-origins", cfg.AllowedOrigins, "browser origins allowed to use the API (default: same-origin and localhost)")
	return cmd
}

// ─── run ──────────────────────────────────────────────────────────────────────

type runOptions struct {
	input       string
	model       string
	apiKey      string
	apiBase     string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	out         string
}

func runCmd(cfg *config.Config) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Input → LLM → Output pipeline once and print the output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := executeOnce(signalContext(cmd.Context()), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			return writeRunResult(opts.out, res)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "text entered into the Input node")
	cmd.Flags().StringVar(&opts.model, "model", workflow.DefaultModelName, "model name")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", cfg.APIKey, "API key (defaults to OPENAI_API_KEY)")
	cmd.Flags().StringVar(&opts.apiBase, "api-base", cfg.APIBase, "completion API base URL")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", workflow.DefaultMaxTokens, "maximum completion tokens")
	cmd.Flags().Float64Var(&opts.temperature, "temperature", workflow.DefaultTemperature, "sampling temperature in [0,1]")
	cmd.Flags().DurationVar(&opts.timeout, "request-timeout", cfg.RequestTimeout, "completion timeout (0 = none)")
	cmd.Flags().StringVar(&opts.out, "out", "", "write the run result as JSON to this file (optional)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// executeOnce builds a fresh graph through the same operations the editor
// uses, configures it from opts and runs it.
func executeOnce(ctx context.Context, opts runOptions) (workflow.RunResult, error) {
	g := workflow.NewGraph()
	for _, k := range workflow.Kinds {
		if _, err := g.AddNode(k); err != nil {
			return workflow.RunResult{}, fmt.Errorf("add %s node: %w", k, err)
		}
	}

	in, _ := g.NodeByKind(workflow.KindInput)
	if err := patchNode(g, in.ID, map[string]any{"text": opts.input}); err != nil {
		return workflow.RunResult{}, err
	}
	l, _ := g.NodeByKind(workflow.KindLLM)
	if err := patchNode(g, l.ID, map[string]any{
		"modelName":   opts.model,
		"apiBase":     opts.apiBase,
		"apiKey":      opts.apiKey,
		"maxTokens":   opts.maxTokens,
		"temperature": opts.temperature,
	}); err != nil {
		return workflow.RunResult{}, err
	}

	ex, err := workflow.NewExecutor(g, openai.New(), workflow.WithRequestTimeout(opts.timeout))
	if err != nil {
		return workflow.RunResult{}, err
	}
	res, err := ex.Run(ctx)
	if err != nil {
		return workflow.RunResult{}, fmt.Errorf("%s: %w", workflow.ErrorCode(err), err)
	}
	return res, nil
}

func patchNode(g *workflow.Graph, id string, fields map[string]any) error {
	patch := []byte(`{}`)
	for path, v := range fields {
		var err error
		if patch, err = sjson.SetBytes(patch, path, v); err != nil {
			return fmt.Errorf("encode patch field %s: %w", path, err)
		}
	}
	if err := g.UpdateNodeData(id, patch); err != nil {
		return fmt.Errorf("configure node: %w", err)
	}
	return nil
}

// writeRunResult writes res as indented JSON to path. An empty path is a
// no-op.
func writeRunResult(path string, res workflow.RunResult) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run result: %w", err)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case <-ch:
			slog.Warn("interrupted, cancelling")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}

