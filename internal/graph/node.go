package graph

import (
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Node categories
// ---------------------------------------------------------------------------

// Category classifies the kind of concept a mind-map node represents.
type Category string

const (
	CategoryTopic         Category = "topic"
	CategoryDefinition    Category = "definition"
	CategoryExplanation   Category = "explanation"
	CategoryCriticalPoint Category = "critical-point"
	CategoryExample       Category = "example"
)

// Valid reports whether c is one of the known node categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTopic, CategoryDefinition, CategoryExplanation,
		CategoryCriticalPoint, CategoryExample:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Position
// ---------------------------------------------------------------------------

// Position is the advisory 2D layout coordinate of a node. It exists purely
// for the renderer; no graph invariant depends on it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ---------------------------------------------------------------------------
// Node
// ---------------------------------------------------------------------------

// Node is a single labeled concept in the mind map. Nodes are owned
// exclusively by the MapStore; callers receive copies, never aliases.
type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Category    Category `json:"category"`
	Details     string   `json:"details,omitempty"`
	IsCollapsed bool     `json:"isCollapsed"`
	Position    Position `json:"position"`
}

// NewNode creates a Node with the given category and label.
// If id is empty a new UUID v4 is generated.
func NewNode(id string, category Category, label string) Node {
	if id == "" {
		id = uuid.New().String()
	}
	return Node{
		ID:       id,
		Category: category,
		Label:    label,
	}
}
