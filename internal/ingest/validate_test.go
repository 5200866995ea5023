package ingest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflow/mindflow-ai/internal/graph"
)

func TestValidateMindMapFlowNormalises(t *testing.T) {
	raw := json.RawMessage(`{
		"nodes": [
			{"id": "root", "position": {"x": 10, "y": 20}, "data": {"label": "Go", "type": "topic"}},
			{"data": {"type": "weird-kind"}}
		],
		"edges": [
			{"source": "root", "target": "node-1"}
		]
	}`)

	flow, err := ValidateMindMapFlow(raw)
	require.NoError(t, err)
	require.Len(t, flow.Nodes, 2)

	root := flow.Nodes[0]
	assert.Equal(t, "root", root.ID)
	assert.Equal(t, "Go", root.Label)
	assert.Equal(t, graph.CategoryTopic, root.Category)
	assert.Equal(t, graph.Position{X: 10, Y: 20}, root.Position)

	repaired := flow.Nodes[1]
	assert.Equal(t, "node-1", repaired.ID)
	assert.Equal(t, "Untitled Node", repaired.Label)
	assert.Equal(t, graph.CategoryExplanation, repaired.Category)
	assert.Equal(t, graph.Position{X: 200, Y: 100}, repaired.Position)

	require.Len(t, flow.Edges, 1)
	assert.Equal(t, "edge-0", flow.Edges[0].ID)
	assert.Equal(t, "root", flow.Edges[0].Source)
}

func TestValidateMindMapFlowDanglingEdgesPassThrough(t *testing.T) {
	raw := json.RawMessage(`{
		"nodes": [{"id": "a", "data": {"label": "A", "type": "topic"}}],
		"edges": [{"id": "e1", "source": "a", "target": "missing"}]
	}`)

	flow, err := ValidateMindMapFlow(raw)
	require.NoError(t, err)
	assert.Len(t, flow.Edges, 1)
}

func TestValidateMindMapFlowRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing nodes", `{"edges": []}`},
		{"missing edges", `{"nodes": [{"id": "a"}]}`},
		{"empty nodes", `{"nodes": [], "edges": []}`},
		{"nodes not an array", `{"nodes": {"id": "a"}, "edges": []}`},
		{"not an object", `[1, 2, 3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateMindMapFlow(json.RawMessage(tt.raw))
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateExpansion(t *testing.T) {
	raw := json.RawMessage(`{
		"nodes": [
			{"id": "p-child1", "position": {"x": 0, "y": 300}, "data": {"label": "Child", "type": "definition"}},
			{"id": "p-child2", "data": {"label": "Other"}}
		],
		"edges": [
			{"id": "e-p-child1", "source": "p", "target": "p-child1"}
		]
	}`)

	origJitter := jitter
	jitter = func() float64 { return 25 }
	defer func() { jitter = origJitter }()

	exp, err := ValidateExpansion(raw, "p", graph.Position{X: 40, Y: 60})
	require.NoError(t, err)
	require.Len(t, exp.NewNodes, 2)

	assert.Equal(t, graph.Position{X: 0, Y: 300}, exp.NewNodes[0].Position)
	assert.False(t, exp.NewNodes[0].IsCollapsed)

	fallback := exp.NewNodes[1]
	assert.Equal(t, graph.Position{X: 40, Y: 185}, fallback.Position)
	assert.Equal(t, graph.CategoryExplanation, fallback.Category)
}

func TestValidateExpansionRejectsParentEcho(t *testing.T) {
	raw := json.RawMessage(`{
		"nodes": [{"id": "p", "data": {"label": "Parent again"}}],
		"edges": []
	}`)

	_, err := ValidateExpansion(raw, "p", graph.Position{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Detail, "parent")
}

func TestValidateExpansionJitterRange(t *testing.T) {
	raw := json.RawMessage(`{"nodes": [{"data": {"label": "n"}}], "edges": []}`)

	for i := 0; i < 20; i++ {
		exp, err := ValidateExpansion(raw, "p", graph.Position{X: 0, Y: 0})
		require.NoError(t, err)
		y := exp.NewNodes[0].Position.Y
		assert.GreaterOrEqual(t, y, 100.0)
		assert.Less(t, y, 150.0)
	}
}

func TestValidateQuiz(t *testing.T) {
	raw := json.RawMessage(`[
		{"question": "Is Go compiled?", "type": "true-false", "correctAnswer": "True"},
		{"question": "Pick one", "type": "multiple-choice", "options": ["a", "b", "c"], "correctAnswer": "b", "explanation": "because"}
	]`)

	qs, err := ValidateQuiz(raw)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, QuizTrueFalse, qs[0].Type)
	assert.Equal(t, "b", qs[1].CorrectAnswer)
}

func TestValidateQuizAllOrNothing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing question", `[{"type": "true-false", "correctAnswer": "True"}]`},
		{"unknown type", `[{"question": "q", "type": "essay", "correctAnswer": "x"}]`},
		{"missing answer", `[{"question": "q", "type": "true-false"}]`},
		{"too few options", `[{"question": "q", "type": "multiple-choice", "options": ["only"], "correctAnswer": "only"}]`},
		{"one bad among good", `[
			{"question": "ok", "type": "true-false", "correctAnswer": "True"},
			{"question": "bad", "type": "multiple-choice", "correctAnswer": "x"}
		]`},
		{"empty array", `[]`},
		{"not an array", `{"question": "q"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateQuiz(json.RawMessage(tt.raw))
			assert.Error(t, err)
		})
	}
}
