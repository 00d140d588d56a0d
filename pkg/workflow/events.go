package workflow

// EventType identifies a change to the graph or a run.
type EventType string

const (
	EventNodeAdded   EventType = "node_added"
	EventEdgeAdded   EventType = "edge_added"
	EventNodeUpdated EventType = "node_updated"
	EventRunStarted  EventType = "run_started"
	EventRunFinished EventType = "run_finished"
	EventRunFailed   EventType = "run_failed"
)

// Event is emitted after a mutation so the editor can refresh without polling.
type Event struct {
	// Seq orders graph events; it is zero for run events, which are
	// published outside the graph.
	Seq    uint64    `json:"seq,omitempty"`
	Type   EventType `json:"type"`
	Node   *Node     `json:"node,omitempty"`
	Edge   *Edge     `json:"edge,omitempty"`
	RunID  string    `json:"runId,omitempty"`
	Output string    `json:"output,omitempty"`
	Error  string    `json:"error,omitempty"`
	Code   string    `json:"code,omitempty"`
}

// Observer receives events in Seq order. It is called without the graph
// lock held and may read the graph, but must not mutate it.
type Observer func(Event)
