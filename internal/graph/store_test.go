package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildStore assembles a store from shorthand: nodes by id, edges as
// [source, target] pairs.
func buildStore(nodeIDs []string, edgePairs [][2]string) *MapStore {
	nodes := make([]Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		nodes = append(nodes, NewNode(id, CategoryExplanation, "label "+id))
	}
	edges := make([]Edge, 0, len(edgePairs))
	for _, p := range edgePairs {
		edges = append(edges, NewEdge(p[0], p[1]))
	}
	s := NewMapStore()
	s.SetGraph(nodes, edges)
	return s
}

func visibleIDs(s *MapStore) []string {
	nodes, _ := s.ComputeVisible()
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestComputeVisibleNoCollapse(t *testing.T) {
	s := buildStore([]string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}})

	nodes, edges := s.ComputeVisible()
	assert.Len(t, nodes, 3)
	assert.Len(t, edges, 2)
}

func TestCollapseHidesDescendantsKeepsAnchor(t *testing.T) {
	s := buildStore(
		[]string{"root", "a", "b", "c"},
		[][2]string{{"root", "a"}, {"a", "b"}, {"a", "c"}},
	)

	s.ToggleCollapse("a")

	assert.ElementsMatch(t, []string{"root", "a"}, visibleIDs(s))

	_, edges := s.ComputeVisible()
	require.Len(t, edges, 1)
	assert.Equal(t, "root", edges[0].Source)
	assert.Equal(t, "a", edges[0].Target)
}

func TestCollapseDiamond(t *testing.T) {
	// A→B→D, A→C→D.
	s := buildStore(
		[]string{"A", "B", "C", "D"},
		[][2]string{{"A", "B"}, {"B", "D"}, {"A", "C"}, {"C", "D"}},
	)

	s.ToggleCollapse("A")
	assert.ElementsMatch(t, []string{"A"}, visibleIDs(s))

	// Expand A, collapse only B: D hidden, C still visible.
	s.ToggleCollapse("A")
	s.ToggleCollapse("B")
	assert.ElementsMatch(t, []string{"A", "B", "C"}, visibleIDs(s))
}

func TestCollapseCycleTerminates(t *testing.T) {
	s := buildStore(
		[]string{"x", "y", "z"},
		[][2]string{{"x", "y"}, {"y", "z"}, {"z", "x"}},
	)

	s.ToggleCollapse("x")

	// y and z are descendants; x stays visible even though the cycle
	// leads back to it.
	assert.ElementsMatch(t, []string{"x"}, visibleIDs(s))
}

func TestTogglePairRestoresVisibleSubgraph(t *testing.T) {
	s := buildStore(
		[]string{"root", "a", "b"},
		[][2]string{{"root", "a"}, {"a", "b"}},
	)

	before := visibleIDs(s)
	s.ToggleCollapse("a")
	s.ToggleCollapse("a")
	assert.ElementsMatch(t, before, visibleIDs(s))
}

func TestHiddenByAncestorRegardlessOfOwnFlag(t *testing.T) {
	s := buildStore(
		[]string{"root", "mid", "leaf"},
		[][2]string{{"root", "mid"}, {"mid", "leaf"}},
	)

	// mid is itself collapsed, but collapsing root hides mid anyway.
	s.ToggleCollapse("mid")
	s.ToggleCollapse("root")
	assert.ElementsMatch(t, []string{"root"}, visibleIDs(s))
}

func TestToggleCollapseUnknownIDIsNoop(t *testing.T) {
	s := buildStore([]string{"a"}, nil)
	s.ToggleCollapse("nope")

	n, ok := s.Node("a")
	require.True(t, ok)
	assert.False(t, n.IsCollapsed)
}

func TestSetGraphReplacesStateAndClearsStaleSelection(t *testing.T) {
	s := buildStore([]string{"old1", "old2"}, [][2]string{{"old1", "old2"}})
	s.SetSelected("old2")

	s.SetGraph([]Node{NewNode("new", CategoryTopic, "New")}, nil)

	assert.Equal(t, 1, s.NodeCount())
	assert.Equal(t, 0, s.EdgeCount())
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestSetSelectedUnknownIDTreatedAsNoSelection(t *testing.T) {
	s := buildStore([]string{"a"}, nil)
	s.SetSelected("missing")

	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestMergeAppendsWithoutDeduplication(t *testing.T) {
	s := buildStore([]string{"a"}, nil)

	s.MergeNodes([]Node{NewNode("b", CategoryExample, "B")})
	s.MergeEdges([]Edge{NewEdge("a", "b"), NewEdge("a", "b")})

	assert.Equal(t, 2, s.NodeCount())
	assert.Equal(t, 2, s.EdgeCount())
}

func TestDanglingEdgeFilteredFromVisible(t *testing.T) {
	s := buildStore([]string{"a"}, nil)
	s.MergeEdges([]Edge{NewEdge("a", "ghost")})

	nodes, edges := s.ComputeVisible()
	assert.Len(t, nodes, 1)
	assert.Empty(t, edges)
}

func TestRemoveNodeDropsIncidentEdges(t *testing.T) {
	s := buildStore(
		[]string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}},
	)
	s.SetSelected("b")

	s.RemoveNode("b")

	assert.Equal(t, 2, s.NodeCount())
	assert.Equal(t, 1, s.EdgeCount())
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestConnectAppendsEdgeWithEmptyLabel(t *testing.T) {
	s := buildStore([]string{"a", "b"}, nil)

	e := s.Connect("a", "b")

	assert.NotEmpty(t, e.ID)
	assert.Empty(t, e.Label)
	assert.Equal(t, 1, s.EdgeCount())
}

func TestUpdateNodeIgnoresInvalidCategory(t *testing.T) {
	s := buildStore([]string{"a"}, nil)

	s.UpdateNode("a", "renamed", "some details", Category("bogus"))

	n, ok := s.Node("a")
	require.True(t, ok)
	assert.Equal(t, "renamed", n.Label)
	assert.Equal(t, "some details", n.Details)
	assert.Equal(t, CategoryExplanation, n.Category)
}

func TestSnapshotReturnsCopies(t *testing.T) {
	s := buildStore([]string{"a"}, nil)

	nodes, _ := s.Snapshot()
	require.Len(t, nodes, 1)
	nodes[0].Label = "mutated"

	n, _ := s.Node("a")
	assert.Equal(t, "label a", n.Label)
}

func TestComputeStats(t *testing.T) {
	s := NewMapStore()
	s.SetGraph([]Node{
		NewNode("t", CategoryTopic, "T"),
		NewNode("e1", CategoryExplanation, "E1"),
		NewNode("e2", CategoryExplanation, "E2"),
	}, []Edge{NewEdge("t", "e1")})
	s.ToggleCollapse("e1")

	st := s.ComputeStats()
	assert.Equal(t, 3, st.TotalNodes)
	assert.Equal(t, 1, st.TotalEdges)
	assert.Equal(t, 1, st.CollapsedNodes)
	assert.Equal(t, 2, st.NodesByCategory["explanation"])
}
