package graph

import (
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Edge
// ---------------------------------------------------------------------------

// Edge is a directed arc between two mind-map nodes, pointing from the
// broader concept (Source) to the narrower one (Target).
//
// Both endpoints should reference nodes present in the same graph snapshot.
// Dangling edges from partial merges are tolerated transiently; projections
// such as ComputeVisible filter them out.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// NewEdge creates an Edge from sourceID to targetID with a fresh UUID v4 id.
func NewEdge(sourceID, targetID string) Edge {
	return Edge{
		ID:     uuid.New().String(),
		Source: sourceID,
		Target: targetID,
	}
}
