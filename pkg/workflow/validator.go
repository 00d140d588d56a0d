package workflow

import (
	"fmt"
	"strings"
)

// allowedConnections is the complete pipeline topology.
var allowedConnections = map[[2]NodeKind]bool{
	{KindInput, KindLLM}:  true,
	{KindLLM, KindOutput}: true,
}

// ValidateConnection decides whether an edge from a sourceKind node to a
// targetKind node is permitted. Only Input → LLM and LLM → Output are.
func ValidateConnection(sourceKind, targetKind NodeKind) error {
	if allowedConnections[[2]NodeKind{sourceKind, targetKind}] {
		return nil
	}
	return &InvalidConnectionError{SourceKind: sourceKind, TargetKind: targetKind}
}

// LintError describes a structural problem in a graph snapshot.
type LintError struct {
	NodeID  string
	Message string
}

func (e LintError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("node %q: %s", e.NodeID, e.Message)
	}
	return e.Message
}

// Validate checks a snapshot against the graph invariants and returns every
// problem found. Graphs built through Graph's methods always pass; the check
// exists for snapshots assembled elsewhere.
func Validate(s Snapshot) []LintError {
	var errs []LintError

	// At most one node per kind, unique ids.
	seenKind := map[NodeKind]string{}
	byID := map[string]Node{}
	for _, n := range s.Nodes {
		if n.ID == "" {
			errs = append(errs, LintError{Message: "node with empty id"})
			continue
		}
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, LintError{NodeID: n.ID, Message: "duplicate node id"})
			continue
		}
		byID[n.ID] = n

		if !n.Kind.Valid() {
			errs = append(errs, LintError{NodeID: n.ID, Message: fmt.Sprintf("unknown kind %q", n.Kind)})
			continue
		}
		if first, ok := seenKind[n.Kind]; ok {
			errs = append(errs, LintError{NodeID: n.ID, Message: fmt.Sprintf("second %s node (first is %q)", n.Kind, first)})
			continue
		}
		seenKind[n.Kind] = n.ID

		if n.Data == nil || n.Data.Kind() != n.Kind {
			errs = append(errs, LintError{NodeID: n.ID, Message: "payload does not match node kind"})
		}
	}

	// Every edge references existing nodes, follows the topology and is unique.
	seenPair := map[[2]string]bool{}
	for _, e := range s.Edges {
		src, okSrc := byID[e.Source]
		tgt, okTgt := byID[e.Target]
		if !okSrc {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge %q references unknown source node %q", e.ID, e.Source)})
		}
		if !okTgt {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge %q references unknown target node %q", e.ID, e.Target)})
		}
		if !okSrc || !okTgt {
			continue
		}
		if e.Source == e.Target {
			errs = append(errs, LintError{NodeID: e.Source, Message: "self-loop edge"})
			continue
		}
		if err := ValidateConnection(src.Kind, tgt.Kind); err != nil {
			errs = append(errs, LintError{Message: fmt.Sprintf("edge %q: %s -> %s is not allowed", e.ID, src.Kind, tgt.Kind)})
			continue
		}
		pair := [2]string{e.Source, e.Target}
		if seenPair[pair] {
			errs = append(errs, LintError{Message: fmt.Sprintf("duplicate edge %s -> %s", e.Source, e.Target)})
			continue
		}
		seenPair[pair] = true
	}

	return errs
}

// ValidateErr calls Validate and returns nil if there are no errors, or a
// combined error message listing all lint errors.
func ValidateErr(s Snapshot) error {
	errs := Validate(s)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("workflow validation failed:\n  %s", strings.Join(msgs, "\n  "))
}
