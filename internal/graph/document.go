package graph

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Document — the export/import file format
// ---------------------------------------------------------------------------

// Document is the serialized mind-map file: exactly two top-level arrays.
// Round-tripping export→import reproduces an equivalent visible subgraph,
// though not necessarily a byte-identical file, since absent position and
// collapse fields are re-synthesized on import.
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// docNode mirrors Node with optional fields kept as pointers so the
// importer can distinguish "absent" from zero values.
type docNode struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Category    Category  `json:"category"`
	Details     string    `json:"details,omitempty"`
	IsCollapsed *bool     `json:"isCollapsed,omitempty"`
	Position    *Position `json:"position,omitempty"`
}

// Export serialises the store's full state as a Document.
func Export(s *MapStore) Document {
	nodes, edges := s.Snapshot()
	return Document{Nodes: nodes, Edges: edges}
}

// Import parses data as a Document and normalises it: a node with a missing
// id gets `node-<index>`, a missing or invalid category becomes
// "explanation", an empty label becomes "Untitled Node", an absent position
// is synthesized from the node's index so nothing stacks at the origin, and
// an absent collapse flag defaults to expanded. Edges are passed through;
// dangling references are tolerated and filtered by the visible projection.
func Import(data []byte) (Document, error) {
	var raw struct {
		Nodes []docNode `json:"nodes"`
		Edges []Edge    `json:"edges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("graph: parse document: %w", err)
	}
	if raw.Nodes == nil || raw.Edges == nil {
		return Document{}, fmt.Errorf("graph: document must contain nodes and edges arrays")
	}

	doc := Document{
		Nodes: make([]Node, 0, len(raw.Nodes)),
		Edges: raw.Edges,
	}
	for i, rn := range raw.Nodes {
		n := Node{
			ID:       rn.ID,
			Label:    rn.Label,
			Category: rn.Category,
			Details:  rn.Details,
		}
		if n.ID == "" {
			n.ID = fmt.Sprintf("node-%d", i)
		}
		if n.Label == "" {
			n.Label = "Untitled Node"
		}
		if !n.Category.Valid() {
			n.Category = CategoryExplanation
		}
		if rn.IsCollapsed != nil {
			n.IsCollapsed = *rn.IsCollapsed
		}
		if rn.Position != nil {
			n.Position = *rn.Position
		} else {
			n.Position = Position{X: float64(i) * 200, Y: float64(i) * 100}
		}
		doc.Nodes = append(doc.Nodes, n)
	}
	return doc, nil
}
