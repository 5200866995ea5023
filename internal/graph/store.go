package graph

import (
	"sync"
)

// ---------------------------------------------------------------------------
// MapStore
// ---------------------------------------------------------------------------

// MapStore is the canonical, in-memory state of a single mind map: the node
// set, the edge set, the current selection, and the per-node collapse flags.
//
// Every operation is a total function over the current state — unknown ids
// are ignored rather than signalled, because callers always derive ids from
// a snapshot of this store. All public methods are goroutine-safe; reads
// return copies so callers can never alias internal state.
type MapStore struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string // node ids in insertion order
	edges    []Edge
	selected string // selected node id, "" when none
}

// NewMapStore returns an empty, initialised MapStore.
func NewMapStore() *MapStore {
	return &MapStore{
		nodes: make(map[string]*Node),
	}
}

// ============================ MUTATIONS ==================================

// SetGraph atomically replaces both the node and edge sets. No reader
// observes a mixed old/new state. Used by import, new-map, and full
// regeneration flows. A selection pointing at a node that no longer exists
// is cleared.
func (s *MapStore) SetGraph(nodes []Node, edges []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*Node, len(nodes))
	s.order = make([]string, 0, len(nodes))
	for i := range nodes {
		n := nodes[i]
		if _, ok := s.nodes[n.ID]; !ok {
			s.order = append(s.order, n.ID)
		}
		s.nodes[n.ID] = &n
	}

	s.edges = make([]Edge, len(edges))
	copy(s.edges, edges)

	if _, ok := s.nodes[s.selected]; !ok {
		s.selected = ""
	}
}

// MergeNodes appends nodes to the existing set. It does not deduplicate by
// id — callers are responsible for collision-free ids; a duplicate id
// replaces the stored node but keeps its original ordering slot.
func (s *MapStore) MergeNodes(nodes []Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range nodes {
		n := nodes[i]
		if _, ok := s.nodes[n.ID]; !ok {
			s.order = append(s.order, n.ID)
		}
		s.nodes[n.ID] = &n
	}
}

// MergeEdges appends edges to the existing set. No deduplication.
func (s *MapStore) MergeEdges(edges []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, edges...)
}

// Connect appends a single user-drawn edge from sourceID to targetID with
// an empty label and returns it.
func (s *MapStore) Connect(sourceID, targetID string) Edge {
	e := NewEdge(sourceID, targetID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = append(s.edges, e)
	return e
}

// SetSelected records the selected node id, or clears the selection when id
// is empty. Selecting an id that is not in the store is accepted; consumers
// treat it as "no selection".
func (s *MapStore) SetSelected(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
}

// Selected returns the currently selected node and true, or a zero Node and
// false when nothing valid is selected.
func (s *MapStore) Selected() (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[s.selected]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// ToggleCollapse flips the collapse flag on exactly the named node.
// No-op when the node does not exist.
func (s *MapStore) ToggleCollapse(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[id]; ok {
		n.IsCollapsed = !n.IsCollapsed
	}
}

// UpdateNode rewrites the label, details, and category of the named node.
// An invalid category leaves the stored category untouched. No-op when the
// node does not exist.
func (s *MapStore) UpdateNode(id, label, details string, category Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	n.Label = label
	n.Details = details
	if category.Valid() {
		n.Category = category
	}
}

// RemoveNode deletes the named node and every edge touching it. No-op when
// the node does not exist. A selection pointing at the removed node is
// cleared.
func (s *MapStore) RemoveNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	filtered := s.edges[:0]
	for _, e := range s.edges {
		if e.Source != id && e.Target != id {
			filtered = append(filtered, e)
		}
	}
	s.edges = filtered

	if s.selected == id {
		s.selected = ""
	}
}

// ============================= READS =====================================

// Node returns a copy of the node with the given id and true, or a zero
// Node and false.
func (s *MapStore) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Snapshot returns deep copies of the full node and edge sets, nodes in
// insertion order. This is the export projection.
func (s *MapStore) Snapshot() ([]Node, []Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// snapshotLocked copies the full state. Caller MUST hold at least s.mu.RLock.
func (s *MapStore) snapshotLocked() ([]Node, []Edge) {
	nodes := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		if n, ok := s.nodes[id]; ok {
			nodes = append(nodes, *n)
		}
	}
	edges := make([]Edge, len(s.edges))
	copy(edges, s.edges)
	return nodes, edges
}

// NodeCount returns the number of nodes in the store.
func (s *MapStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of edges in the store.
func (s *MapStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Stats summarises the store contents by node category.
type Stats struct {
	TotalNodes      int            `json:"total_nodes"`
	TotalEdges      int            `json:"total_edges"`
	NodesByCategory map[string]int `json:"nodes_by_category"`
	CollapsedNodes  int            `json:"collapsed_nodes"`
}

// ComputeStats returns a Stats snapshot.
func (s *MapStore) ComputeStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCat := make(map[string]int)
	collapsed := 0
	for _, n := range s.nodes {
		byCat[string(n.Category)]++
		if n.IsCollapsed {
			collapsed++
		}
	}
	return Stats{
		TotalNodes:      len(s.nodes),
		TotalEdges:      len(s.edges),
		NodesByCategory: byCat,
		CollapsedNodes:  collapsed,
	}
}

// ======================= VISIBLE PROJECTION ==============================

// ComputeVisible derives the renderable subgraph under the current collapse
// flags. It is a pure projection — never persisted — and is cheap enough to
// recompute on every change.
//
// For every collapsed node a BFS over edges in source→target direction
// collects all reachable descendants; the collapsed node itself stays
// visible as the user's collapse anchor. The hidden sets of all collapsed
// nodes are unioned, so a node beneath any collapsed ancestor is hidden
// regardless of its own flag. Visible edges are those whose endpoints are
// both present and unhidden. Runs in O(N+E) using an adjacency index built
// once per call; the per-call visited set makes it terminate on cycles and
// visit diamond joins once.
func (s *MapStore) ComputeVisible() ([]Node, []Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Adjacency index, built once per call.
	out := make(map[string][]string, len(s.nodes))
	for _, e := range s.edges {
		out[e.Source] = append(out[e.Source], e.Target)
	}

	hidden := make(map[string]bool)
	for _, id := range s.order {
		n := s.nodes[id]
		if !n.IsCollapsed {
			continue
		}
		collectDescendants(n.ID, out, hidden)
	}

	nodes := make([]Node, 0, len(s.order))
	visible := make(map[string]bool, len(s.order))
	for _, id := range s.order {
		if hidden[id] {
			continue
		}
		if n, ok := s.nodes[id]; ok {
			nodes = append(nodes, *n)
			visible[id] = true
		}
	}

	edges := make([]Edge, 0, len(s.edges))
	for _, e := range s.edges {
		if visible[e.Source] && visible[e.Target] {
			edges = append(edges, e)
		}
	}
	return nodes, edges
}

// collectDescendants runs a BFS from startID following the out adjacency
// and marks every reachable node in hidden. The start node itself is not
// marked. The local visited set bounds the walk on cyclic graphs.
func collectDescendants(startID string, out map[string][]string, hidden map[string]bool) {
	visited := map[string]bool{startID: true}
	queue := []string{startID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, target := range out[cur] {
			if visited[target] {
				continue
			}
			visited[target] = true
			hidden[target] = true
			queue = append(queue, target)
		}
	}
}
