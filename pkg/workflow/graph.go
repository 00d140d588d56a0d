package workflow

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Position is a canvas coordinate. Layout beyond the initial placement is
// owned by the editor.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single stage of the pipeline.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     Payload  `json:"data"`
}

// UnmarshalJSON reads the node type first and decodes data into the
// matching payload variant.
func (n *Node) UnmarshalJSON(b []byte) error {
	var w struct {
		ID       string          `json:"id"`
		Kind     NodeKind        `json:"type"`
		Position Position        `json:"position"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	data, err := decodePayload(w.Kind, w.Data)
	if err != nil {
		return fmt.Errorf("node %q: %w", w.ID, err)
	}
	*n = Node{ID: w.ID, Kind: w.Kind, Position: w.Position, Data: data}
	return nil
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeID derives an edge id from its endpoints.
func EdgeID(sourceID, targetID string) string {
	return fmt.Sprintf("e%s-%s", sourceID, targetID)
}

// Snapshot is a point-in-time copy of the graph.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByKind returns the node of kind k in the snapshot.
func (s Snapshot) NodeByKind(k NodeKind) (Node, bool) {
	for _, n := range s.Nodes {
		if n.Kind == k {
			return n, true
		}
	}
	return Node{}, false
}

// OutgoingEdges returns all edges leaving nodeID, in creation order.
func (s Snapshot) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Graph is the single source of truth for the editor canvas. All methods
// are safe for concurrent use; readers receive copies.
type Graph struct {
	mu       sync.RWMutex
	nodes    []*Node
	byID     map[string]*Node
	edges    []Edge
	newID    func() string
	observer Observer

	// Events are queued under mu in mutation order and delivered under
	// emitMu, so observers see them in Seq order. Lock order: emitMu, mu.
	emitMu  sync.Mutex
	seq     uint64
	pending []Event
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithObserver registers fn to receive an Event after every mutation.
func WithObserver(fn Observer) GraphOption {
	return func(g *Graph) { g.observer = fn }
}

// WithIDGenerator replaces the UUID node id generator.
func WithIDGenerator(fn func() string) GraphOption {
	return func(g *Graph) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// NewGraph returns an empty graph.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		byID:  make(map[string]*Node),
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// autoConnect lists the edges to attempt when a node of a given kind is added.
var autoConnect = map[NodeKind][][2]NodeKind{
	KindInput:  {{KindInput, KindLLM}},
	KindLLM:    {{KindInput, KindLLM}, {KindLLM, KindOutput}},
	KindOutput: {{KindLLM, KindOutput}},
}

// AddNode creates a node of the given kind at its default position with its
// default payload, then connects it to existing neighbours the topology
// allows. It fails with *DuplicateKindError when the kind is already present.
func (g *Graph) AddNode(kind NodeKind) (Node, error) {
	if !kind.Valid() {
		return Node{}, &UnknownKindError{Name: string(kind)}
	}

	g.mu.Lock()
	if g.byKindLocked(kind) != nil {
		g.mu.Unlock()
		return Node{}, &DuplicateKindError{Kind: kind}
	}

	n := &Node{
		ID:       g.newID(),
		Kind:     kind,
		Position: DefaultPosition(kind),
		Data:     DefaultPayload(kind),
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.ID] = n

	added := *n
	g.enqueueLocked(Event{Type: EventNodeAdded, Node: &added})
	for _, pair := range autoConnect[kind] {
		src, tgt := g.byKindLocked(pair[0]), g.byKindLocked(pair[1])
		if src == nil || tgt == nil {
			continue
		}
		e, created, err := g.connectLocked(src, tgt)
		if err != nil || !created {
			continue
		}
		g.enqueueLocked(Event{Type: EventEdgeAdded, Edge: &e})
	}
	g.mu.Unlock()

	g.flush()
	return added, nil
}

// Connect adds the edge sourceID → targetID after checking it against the
// fixed topology. Connecting an already connected pair returns the existing
// edge.
func (g *Graph) Connect(sourceID, targetID string) (Edge, error) {
	g.mu.Lock()
	src, tgt := g.byID[sourceID], g.byID[targetID]
	if src == nil || tgt == nil {
		g.mu.Unlock()
		missing := sourceID
		if src != nil {
			missing = targetID
		}
		return Edge{}, &InvalidConnectionError{Reason: fmt.Sprintf("node %q does not exist", missing)}
	}
	e, created, err := g.connectLocked(src, tgt)
	if created {
		g.enqueueLocked(Event{Type: EventEdgeAdded, Edge: &e})
	}
	g.mu.Unlock()
	if err != nil {
		return Edge{}, err
	}
	g.flush()
	return e, nil
}

func (g *Graph) connectLocked(src, tgt *Node) (Edge, bool, error) {
	if src.ID == tgt.ID {
		return Edge{}, false, &InvalidConnectionError{SourceKind: src.Kind, TargetKind: tgt.Kind, Reason: "a node cannot connect to itself"}
	}
	if err := ValidateConnection(src.Kind, tgt.Kind); err != nil {
		return Edge{}, false, err
	}
	for _, e := range g.edges {
		if e.Source == src.ID && e.Target == tgt.ID {
			return e, false, nil
		}
	}
	e := Edge{ID: EdgeID(src.ID, tgt.ID), Source: src.ID, Target: tgt.ID}
	g.edges = append(g.edges, e)
	return e, true, nil
}

// UpdateNodeData merges a partial JSON object into the node's payload. An
// unknown id is a no-op. On error the node is left unchanged.
func (g *Graph) UpdateNodeData(id string, patch []byte) error {
	g.mu.Lock()
	n, ok := g.byID[id]
	if !ok {
		g.mu.Unlock()
		return nil
	}
	data, err := applyPatch(id, n.Data, patch)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	n.Data = data
	updated := *n
	g.enqueueLocked(Event{Type: EventNodeUpdated, Node: &updated})
	g.mu.Unlock()

	g.flush()
	return nil
}

// writeOutput stores text in the Output node. It returns the node id, or ""
// when the graph has no Output node.
func (g *Graph) writeOutput(text string) string {
	g.mu.Lock()
	n := g.byKindLocked(KindOutput)
	if n == nil {
		g.mu.Unlock()
		return ""
	}
	n.Data = OutputData{Output: &text}
	updated := *n
	g.enqueueLocked(Event{Type: EventNodeUpdated, Node: &updated})
	g.mu.Unlock()

	g.flush()
	return updated.ID
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.byID[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// NodeByKind returns a copy of the node of kind k.
func (g *Graph) NodeByKind(k NodeKind) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := g.byKindLocked(k)
	if n == nil {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in creation order.
func (g *Graph) Nodes() []Node {
	return g.Snapshot().Nodes
}

// Edges returns all edges in creation order.
func (g *Graph) Edges() []Edge {
	return g.Snapshot().Edges
}

// Snapshot returns a consistent copy of nodes and edges.
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := Snapshot{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]Edge, len(g.edges)),
	}
	for _, n := range g.nodes {
		s.Nodes = append(s.Nodes, *n)
	}
	copy(s.Edges, g.edges)
	return s
}

func (g *Graph) byKindLocked(k NodeKind) *Node {
	for _, n := range g.nodes {
		if n.Kind == k {
			return n
		}
	}
	return nil
}

// enqueueLocked stamps ev with the next sequence number and queues it.
// Callers hold g.mu.
func (g *Graph) enqueueLocked(ev Event) {
	if g.observer == nil {
		return
	}
	g.seq++
	ev.Seq = g.seq
	g.pending = append(g.pending, ev)
}

// flush delivers every queued event. Callers must not hold g.mu.
func (g *Graph) flush() {
	if g.observer == nil {
		return
	}
	g.emitMu.Lock()
	defer g.emitMu.Unlock()

	g.mu.Lock()
	batch := g.pending
	g.pending = nil
	g.mu.Unlock()

	for _, ev := range batch {
		g.observer(ev)
	}
}
