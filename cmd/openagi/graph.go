package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

func graphCmd() *cobra.Command {
	var format, serverURL string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the workflow graph",
		Long: `Print the workflow graph as text or DOT.

Without --server the canonical Input → LLM → Output pipeline is printed.
With --server the live graph is read from a running openagi server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				s   workflow.Snapshot
				err error
			)
			if serverURL != "" {
				s, err = fetchSnapshot(cmd.Context(), serverURL)
			} else {
				s, err = canonicalSnapshot()
			}
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "dot":
				src, err := workflow.RenderDOT(s)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), src)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(s))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running server, e.g. http://localhost:8080")
	return cmd
}

const fetchTimeout = 10 * time.Second

// fetchSnapshot reads the live graph from GET /api/graph.
func fetchSnapshot(ctx context.Context, baseURL string) (workflow.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	endpoint := strings.TrimRight(baseURL, "/") + "/api/graph"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return workflow.Snapshot{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return workflow.Snapshot{}, fmt.Errorf("fetch graph: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return workflow.Snapshot{}, fmt.Errorf("fetch graph: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var s workflow.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("decode graph: %w", err)
	}
	return s, nil
}

// canonicalSnapshot builds the full pipeline with stable numeric ids so the
// printed graph is reproducible.
func canonicalSnapshot() (workflow.Snapshot, error) {
	next := 0
	g := workflow.NewGraph(workflow.WithIDGenerator(func() string {
		next++
		return strconv.Itoa(next)
	}))
	for _, k := range workflow.Kinds {
		if _, err := g.AddNode(k); err != nil {
			return workflow.Snapshot{}, err
		}
	}
	s := g.Snapshot()
	if err := workflow.ValidateErr(s); err != nil {
		return workflow.Snapshot{}, err
	}
	return s, nil
}

// topoOrder returns node ids in BFS order from the Input node; nodes it
// cannot reach follow in creation order.
func topoOrder(s workflow.Snapshot) []string {
	visited := map[string]bool{}
	var order []string

	if start, ok := s.NodeByKind(workflow.KindInput); ok {
		queue := []string{start.ID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			order = append(order, cur)
			for _, e := range s.OutgoingEdges(cur) {
				if !visited[e.Target] {
					queue = append(queue, e.Target)
				}
			}
		}
	}

	for _, n := range s.Nodes {
		if !visited[n.ID] {
			order = append(order, n.ID)
		}
	}
	return order
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// describe summarises a node's payload without revealing secrets.
func describe(p workflow.Payload) string {
	switch d := p.(type) {
	case workflow.InputData:
		return "text=" + strconv.Quote(truncate(d.Text, 60))
	case workflow.LLMData:
		return fmt.Sprintf("model=%s maxTokens=%d temperature=%g apiKeySet=%t",
			d.ModelName, d.MaxTokens, d.Temperature, d.APIKeySet())
	case workflow.OutputData:
		if d.Output == nil {
			return "output=<none>"
		}
		return "output=" + strconv.Quote(truncate(*d.Output, 60))
	}
	return ""
}

// renderText produces the human-readable text summary.
func renderText(s workflow.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Workflow  (%d nodes, %d edges)\n", len(s.Nodes), len(s.Edges))

	byID := make(map[string]workflow.Node, len(s.Nodes))
	maxIDLen := 4 // minimum "node"
	for _, n := range s.Nodes {
		byID[n.ID] = n
		if len(n.ID) > maxIDLen {
			maxIDLen = len(n.ID)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, id := range topoOrder(s) {
		n := byID[id]
		fmt.Fprintf(&sb, "  %-*s  %-8s  %s\n", maxIDLen, id, n.Kind.Label(), describe(n.Data))
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	for _, e := range s.Edges {
		fmt.Fprintf(&sb, "  %-*s  →  %s\n", maxIDLen, e.Source, e.Target)
	}
	return sb.String()
}
