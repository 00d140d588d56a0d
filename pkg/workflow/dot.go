package workflow

import (
	"fmt"
	"strconv"

	gographviz "github.com/awalterschulze/gographviz"
)

const dotGraphName = "workflow"

// RenderDOT renders a snapshot as a Graphviz digraph. Node positions are
// pinned so the layout matches the editor canvas.
func RenderDOT(s Snapshot) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(dotGraphName); err != nil {
		return "", fmt.Errorf("dot: set name: %w", err)
	}
	if err := g.SetDir(true); err != nil {
		return "", fmt.Errorf("dot: set dir: %w", err)
	}
	if err := g.AddAttr(dotGraphName, "rankdir", "LR"); err != nil {
		return "", fmt.Errorf("dot: graph attrs: %w", err)
	}

	for _, n := range s.Nodes {
		attrs := map[string]string{
			"label":   strconv.Quote(n.Kind.Label() + " Node"),
			"shape":   "box",
			"pos":     strconv.Quote(fmt.Sprintf("%g,%g!", n.Position.X, n.Position.Y)),
			"comment": strconv.Quote(string(n.Kind)),
		}
		if err := g.AddNode(dotGraphName, strconv.Quote(n.ID), attrs); err != nil {
			return "", fmt.Errorf("dot: node %q: %w", n.ID, err)
		}
	}
	for _, e := range s.Edges {
		attrs := map[string]string{"comment": strconv.Quote(e.ID)}
		if err := g.AddEdge(strconv.Quote(e.Source), strconv.Quote(e.Target), true, attrs); err != nil {
			return "", fmt.Errorf("dot: edge %q: %w", e.ID, err)
		}
	}
	return g.String(), nil
}
