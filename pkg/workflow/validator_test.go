package workflow_test

import (
	"errors"
	"testing"

	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

func TestValidateConnection_AllPairs(t *testing.T) {
	allowed := map[[2]workflow.NodeKind]bool{
		{workflow.KindInput, workflow.KindLLM}:  true,
		{workflow.KindLLM, workflow.KindOutput}: true,
	}
	for _, a := range workflow.Kinds {
		for _, b := range workflow.Kinds {
			err := workflow.ValidateConnection(a, b)
			if allowed[[2]workflow.NodeKind{a, b}] {
				if err != nil {
					t.Errorf("ValidateConnection(%s,%s) = %v, want nil", a, b, err)
				}
				continue
			}
			var ic *workflow.InvalidConnectionError
			if !errors.As(err, &ic) {
				t.Errorf("ValidateConnection(%s,%s) = %v, want *InvalidConnectionError", a, b, err)
			}
		}
	}
}

func TestValidate_Valid(t *testing.T) {
	g := workflow.NewGraph()
	for _, k := range workflow.Kinds {
		_, _ = g.AddNode(k)
	}
	if errs := workflow.Validate(g.Snapshot()); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	s := workflow.Snapshot{
		Nodes: []workflow.Node{
			{ID: "1", Kind: workflow.KindInput, Data: workflow.InputData{}},
			{ID: "2", Kind: workflow.KindInput, Data: workflow.InputData{}},
			{ID: "3", Kind: workflow.KindOutput, Data: workflow.InputData{}},
		},
		Edges: []workflow.Edge{
			{ID: "e1-3", Source: "1", Target: "3"},
			{ID: "e1-9", Source: "1", Target: "9"},
			{ID: "e3-3", Source: "3", Target: "3"},
		},
	}
	errs := workflow.Validate(s)
	// second input, payload mismatch, disallowed pair, unknown target, self-loop
	if len(errs) != 5 {
		t.Fatalf("want 5 lint errors, got %d: %v", len(errs), errs)
	}
	if err := workflow.ValidateErr(s); err == nil {
		t.Error("ValidateErr should fail")
	}
}

func TestValidate_DuplicateEdge(t *testing.T) {
	s := workflow.Snapshot{
		Nodes: []workflow.Node{
			{ID: "1", Kind: workflow.KindInput, Data: workflow.InputData{}},
			{ID: "2", Kind: workflow.KindLLM, Data: workflow.DefaultLLMData()},
		},
		Edges: []workflow.Edge{
			{ID: "e1-2", Source: "1", Target: "2"},
			{ID: "e1-2", Source: "1", Target: "2"},
		},
	}
	errs := workflow.Validate(s)
	if len(errs) != 1 {
		t.Fatalf("want 1 lint error, got %v", errs)
	}
}
