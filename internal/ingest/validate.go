package ingest

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/mindflow/mindflow-ai/internal/graph"
)

// ValidationError reports a payload that parsed as JSON but does not satisfy
// one of the expected shapes.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "ingest: invalid payload: " + e.Detail
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Detail: fmt.Sprintf(format, args...)}
}

// jitter spreads fallback-positioned expansion nodes so they do not stack.
// Overridable in tests.
var jitter = func() float64 { return rand.Float64() * 50 }

// ---------------------------------------------------------------------------
// Raw wire shapes
// ---------------------------------------------------------------------------

// rawNode mirrors the node shape the prompts ask the model for: layout
// fields at the top level, content fields nested under "data".
type rawNode struct {
	ID       string          `json:"id"`
	Position *graph.Position `json:"position"`
	Data     struct {
		Label   string `json:"label"`
		Type    string `json:"type"`
		Details string `json:"details"`
	} `json:"data"`
}

type rawEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

func (re rawEdge) toEdge(index int) graph.Edge {
	e := graph.Edge{ID: re.ID, Source: re.Source, Target: re.Target, Label: re.Label}
	if e.ID == "" {
		e.ID = fmt.Sprintf("edge-%d", index)
	}
	return e
}

// ---------------------------------------------------------------------------
// Mind-map flow
// ---------------------------------------------------------------------------

// MindMapFlow is a complete validated graph ready for MapStore.SetGraph.
type MindMapFlow struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// ValidateMindMapFlow checks that raw is an object with non-empty "nodes"
// and present "edges" arrays, and normalises each node: a missing id becomes
// node-<index>, a missing label "Untitled Node", an unknown category
// "explanation", and a missing position is synthesized from the index so the
// fallback layout never stacks nodes. Edges pass through unvalidated;
// dangling references are tolerated and left to the visible projection.
func ValidateMindMapFlow(raw json.RawMessage) (MindMapFlow, error) {
	var payload struct {
		Nodes []rawNode `json:"nodes"`
		Edges []rawEdge `json:"edges"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return MindMapFlow{}, invalid("not a mind-map object: %v", err)
	}
	if payload.Nodes == nil || payload.Edges == nil {
		return MindMapFlow{}, invalid("nodes and edges arrays are required")
	}
	if len(payload.Nodes) == 0 {
		return MindMapFlow{}, invalid("nodes array is empty")
	}

	flow := MindMapFlow{
		Nodes: make([]graph.Node, 0, len(payload.Nodes)),
		Edges: make([]graph.Edge, 0, len(payload.Edges)),
	}
	for i, rn := range payload.Nodes {
		n := graph.Node{
			ID:       rn.ID,
			Label:    rn.Data.Label,
			Category: graph.Category(rn.Data.Type),
			Details:  rn.Data.Details,
		}
		if n.ID == "" {
			n.ID = fmt.Sprintf("node-%d", i)
		}
		if n.Label == "" {
			n.Label = "Untitled Node"
		}
		if !n.Category.Valid() {
			n.Category = graph.CategoryExplanation
		}
		if rn.Position != nil {
			n.Position = *rn.Position
		} else {
			n.Position = graph.Position{X: float64(i) * 200, Y: float64(i) * 100}
		}
		flow.Nodes = append(flow.Nodes, n)
	}
	for i, re := range payload.Edges {
		flow.Edges = append(flow.Edges, re.toEdge(i))
	}
	return flow, nil
}

// ---------------------------------------------------------------------------
// Expansion
// ---------------------------------------------------------------------------

// Expansion is the validated delta produced by expanding a single node.
type Expansion struct {
	NewNodes []graph.Node
	NewEdges []graph.Edge
}

// ValidateExpansion checks an expansion payload against the prompt contract
// for parentID. Nodes arrive expanded (collapse flags are discarded) and a
// node without a position is placed below the parent with a small random
// vertical jitter. The parent must not appear among the new nodes;
// that is rejected outright rather than filtered, since a model echoing the
// parent back has ignored the contract and the rest of the delta is suspect.
func ValidateExpansion(raw json.RawMessage, parentID string, parentPos graph.Position) (Expansion, error) {
	var payload struct {
		Nodes []rawNode `json:"nodes"`
		Edges []rawEdge `json:"edges"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Expansion{}, invalid("not an expansion object: %v", err)
	}
	if payload.Nodes == nil || payload.Edges == nil {
		return Expansion{}, invalid("nodes and edges arrays are required")
	}

	exp := Expansion{
		NewNodes: make([]graph.Node, 0, len(payload.Nodes)),
		NewEdges: make([]graph.Edge, 0, len(payload.Edges)),
	}
	for i, rn := range payload.Nodes {
		if rn.ID == parentID {
			return Expansion{}, invalid("expansion echoes parent node %q", parentID)
		}
		n := graph.Node{
			ID:          rn.ID,
			Label:       rn.Data.Label,
			Category:    graph.Category(rn.Data.Type),
			Details:     rn.Data.Details,
			IsCollapsed: false,
		}
		if n.ID == "" {
			n.ID = fmt.Sprintf("%s-child%d", parentID, i+1)
		}
		if n.Label == "" {
			n.Label = "Untitled"
		}
		if !n.Category.Valid() {
			n.Category = graph.CategoryExplanation
		}
		if rn.Position != nil {
			n.Position = *rn.Position
		} else {
			n.Position = graph.Position{X: parentPos.X, Y: parentPos.Y + 100 + jitter()}
		}
		exp.NewNodes = append(exp.NewNodes, n)
	}
	for i, re := range payload.Edges {
		exp.NewEdges = append(exp.NewEdges, re.toEdge(i))
	}
	return exp, nil
}

// ---------------------------------------------------------------------------
// Quiz
// ---------------------------------------------------------------------------

// QuizQuestion is one validated quiz entry.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Type          string   `json:"type"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

const (
	QuizMultipleChoice = "multiple-choice"
	QuizTrueFalse      = "true-false"
)

// ValidateQuiz checks that raw is an array of well-formed questions. Any
// single bad element fails the whole batch: a quiz with a missing answer or
// too few options cannot be rendered, and serving a partial quiz would
// silently change its length.
func ValidateQuiz(raw json.RawMessage) ([]QuizQuestion, error) {
	var questions []QuizQuestion
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, invalid("not a quiz array: %v", err)
	}
	if len(questions) == 0 {
		return nil, invalid("quiz array is empty")
	}

	for i, q := range questions {
		if q.Question == "" {
			return nil, invalid("question %d: missing question text", i)
		}
		if q.Type != QuizMultipleChoice && q.Type != QuizTrueFalse {
			return nil, invalid("question %d: unknown type %q", i, q.Type)
		}
		if q.CorrectAnswer == "" {
			return nil, invalid("question %d: missing correct answer", i)
		}
		if q.Type == QuizMultipleChoice && len(q.Options) < 2 {
			return nil, invalid("question %d: multiple-choice needs at least 2 options", i)
		}
	}
	return questions, nil
}
