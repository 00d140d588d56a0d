package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

const maxBodyBytes = 1 << 20

// API exposes the workflow graph and executor over HTTP.
type API struct {
	graph    *workflow.Graph
	executor *workflow.Executor
	runs     *RunStore
	hub      *Hub
}

func NewAPI(g *workflow.Graph, ex *workflow.Executor, runs *RunStore, hub *Hub) *API {
	return &API{graph: g, executor: ex, runs: runs, hub: hub}
}

func (a *API) HandleGraph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.graph.Snapshot())
}

func (a *API) HandleGraphDOT(w http.ResponseWriter, r *http.Request) {
	src, err := workflow.RenderDOT(a.graph.Snapshot())
	if err != nil {
		slog.Error("render dot failed", "err", err)
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = io.WriteString(w, src)
}

type addNodeRequest struct {
	Kind string `json:"kind"`
}

func (a *API) HandleAddNode(w http.ResponseWriter, r *http.Request) {
	var in addNodeRequest
	if err := decodeBody(r, &in); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	kind, err := workflow.KindOf(in.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := a.graph.AddNode(kind)
	if err != nil {
		slog.Debug("add node rejected", "kind", kind, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (a *API) HandleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	patch, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "could not read body")
		return
	}
	if err := a.graph.UpdateNodeData(id, patch); err != nil {
		writeError(w, err)
		return
	}
	n, ok := a.graph.Node(id)
	if !ok {
		// Unknown ids are accepted without effect.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type connectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (a *API) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var in connectRequest
	if err := decodeBody(r, &in); err != nil {
		writeBadRequest(w, "invalid json body")
		return
	}
	e, err := a.graph.Connect(strings.TrimSpace(in.Source), strings.TrimSpace(in.Target))
	if err != nil {
		slog.Debug("connect rejected", "source", in.Source, "target", in.Target, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type runResponse struct {
	RunID      string `json:"runId"`
	Output     string `json:"output"`
	Model      string `json:"model"`
	StopReason string `json:"stopReason,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

func (a *API) HandleRun(w http.ResponseWriter, r *http.Request) {
	rec := a.runs.Start()
	w.Header().Set("X-Run-Id", rec.ID)
	a.hub.Publish(workflow.Event{Type: workflow.EventRunStarted, RunID: rec.ID})

	res, err := a.executor.Run(r.Context())
	final := a.runs.Finish(rec.ID, res, err)
	if err != nil {
		a.hub.Publish(workflow.Event{
			Type:  workflow.EventRunFailed,
			RunID: rec.ID,
			Error: final.Error,
			Code:  final.Code,
		})
		writeError(w, err)
		return
	}
	a.hub.Publish(workflow.Event{Type: workflow.EventRunFinished, RunID: rec.ID, Output: res.Output})
	writeJSON(w, http.StatusOK, runResponse{
		RunID:      rec.ID,
		Output:     res.Output,
		Model:      res.Model,
		StopReason: string(res.StopReason),
		DurationMS: res.Duration.Milliseconds(),
	})
}

func (a *API) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.runs.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Run not found.", Code: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after json body")
	}
	return nil
}
