package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflow/mindflow-ai/internal/graph"
	"github.com/mindflow/mindflow-ai/internal/kv"
	"github.com/mindflow/mindflow-ai/internal/ratelimit"
	"github.com/mindflow/mindflow-ai/internal/vault"
)

// fakeProvider returns a canned response or error and records the prompt.
type fakeProvider struct {
	response   string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeProvider) Generate(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Close() error { return nil }

type gatewayFixture struct {
	gw       *Gateway
	provider *fakeProvider
	store    *graph.MapStore
	vault    *vault.Vault
	limiter  *ratelimit.Limiter
}

func newFixture(t *testing.T, response string) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		provider: &fakeProvider{response: response},
		store:    graph.NewMapStore(),
		vault:    vault.New(kv.NewMemoryStore(), nil),
		limiter:  ratelimit.New(100, time.Minute, nil, nil),
	}
	require.NoError(t, f.vault.Store("test-api-key"))
	f.gw = NewGateway(f.provider, f.limiter, f.vault, f.store, nil)
	return f
}

const goodFlow = `{
	"nodes": [
		{"id": "root", "position": {"x": 0, "y": 0}, "data": {"label": "Go", "type": "topic"}},
		{"id": "n1", "position": {"x": 0, "y": 100}, "data": {"label": "Goroutines", "type": "explanation"}}
	],
	"edges": [{"id": "e1", "source": "root", "target": "n1"}]
}`

func TestGenerateMindMapReplacesGraph(t *testing.T) {
	f := newFixture(t, "Sure!\n```json\n"+goodFlow+"\n```")

	flow, err := f.gw.GenerateMindMap(context.Background(), "some source text")
	require.NoError(t, err)
	assert.Len(t, flow.Nodes, 2)
	assert.Equal(t, 2, f.store.NodeCount())
	assert.Equal(t, 1, f.store.EdgeCount())
	assert.Contains(t, f.provider.lastPrompt, "some source text")
}

func TestGenerateMindMapSanitizesInput(t *testing.T) {
	f := newFixture(t, goodFlow)

	_, err := f.gw.GenerateMindMap(context.Background(), `read this <script>alert(1)</script> carefully`)
	require.NoError(t, err)
	assert.NotContains(t, f.provider.lastPrompt, "<script>")
	assert.Contains(t, f.provider.lastPrompt, "read this")
}

func TestGenerateMindMapEmptyAfterSanitization(t *testing.T) {
	f := newFixture(t, goodFlow)

	_, err := f.gw.GenerateMindMap(context.Background(), "<script>only()</script>")
	require.Error(t, err)
	var cerr *CallError
	assert.False(t, errors.As(err, &cerr))
	assert.Zero(t, f.provider.calls)
}

func TestRateLimitedCall(t *testing.T) {
	f := newFixture(t, goodFlow)
	f.limiter = ratelimit.New(1, time.Minute, nil, nil)
	f.gw = NewGateway(f.provider, f.limiter, f.vault, f.store, nil)

	_, err := f.gw.GenerateMindMap(context.Background(), "text")
	require.NoError(t, err)

	_, err = f.gw.GenerateMindMap(context.Background(), "text")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonRateLimited, cerr.Reason)
	assert.Equal(t, 60, cerr.RetryAfterSeconds)
	assert.True(t, cerr.Retryable())
}

func TestRateLimitKeysArePerOperation(t *testing.T) {
	f := newFixture(t, goodFlow)
	f.limiter = ratelimit.New(1, time.Minute, nil, nil)
	f.gw = NewGateway(f.provider, f.limiter, f.vault, f.store, nil)

	_, err := f.gw.GenerateMindMap(context.Background(), "text")
	require.NoError(t, err)

	// A different operation has its own window.
	f.provider.response = "ok summary"
	_, err = f.gw.Summarize(context.Background(), []graph.Node{{ID: "a", Label: "A"}}, "")
	assert.NoError(t, err)
}

func TestMissingCredential(t *testing.T) {
	f := newFixture(t, goodFlow)
	require.NoError(t, f.vault.Remove())

	_, err := f.gw.GenerateMindMap(context.Background(), "text")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonMissingCredential, cerr.Reason)
	assert.False(t, cerr.Retryable())
	assert.Zero(t, f.provider.calls)
}

func TestTransportError(t *testing.T) {
	f := newFixture(t, "")
	f.provider.err = errors.New("connection refused")

	_, err := f.gw.GenerateMindMap(context.Background(), "text")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonTransport, cerr.Reason)
	assert.Equal(t, 0, f.store.NodeCount())
}

func TestMalformedResponse(t *testing.T) {
	f := newFixture(t, "I'm sorry, I cannot produce a mind map for that.")

	_, err := f.gw.GenerateMindMap(context.Background(), "text")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonMalformedResponse, cerr.Reason)
	assert.Equal(t, 0, f.store.NodeCount())
}

func TestSchemaInvalidResponse(t *testing.T) {
	f := newFixture(t, `{"nodes": [], "edges": []}`)

	_, err := f.gw.GenerateMindMap(context.Background(), "text")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonSchemaInvalid, cerr.Reason)
	assert.Equal(t, 0, f.store.NodeCount())
}

func TestCancelledCallMergesNothing(t *testing.T) {
	f := newFixture(t, goodFlow)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.gw.GenerateMindMap(ctx, "text")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonTransport, cerr.Reason)
	assert.Equal(t, 0, f.store.NodeCount())
}

func TestExpandNodeMergesChildren(t *testing.T) {
	f := newFixture(t, `{
		"nodes": [
			{"id": "p-child1", "data": {"label": "Child 1", "type": "definition"}},
			{"id": "p-child2", "data": {"label": "Child 2", "type": "example"}}
		],
		"edges": [
			{"id": "e-p-child1", "source": "p", "target": "p-child1"},
			{"id": "e-p-child2", "source": "p", "target": "p-child2"}
		]
	}`)
	f.store.SetGraph([]graph.Node{graph.NewNode("p", graph.CategoryTopic, "Parent")}, nil)

	exp, err := f.gw.ExpandNode(context.Background(), "p")
	require.NoError(t, err)
	assert.Len(t, exp.NewNodes, 2)
	assert.Equal(t, 3, f.store.NodeCount())
	assert.Equal(t, 2, f.store.EdgeCount())
	assert.Contains(t, f.provider.lastPrompt, `"Parent"`)
}

func TestExpandNodeDisambiguatesCollidingIDs(t *testing.T) {
	f := newFixture(t, `{
		"nodes": [{"id": "p-child1", "data": {"label": "Fresh", "type": "definition"}}],
		"edges": [{"id": "e1", "source": "p", "target": "p-child1"}]
	}`)
	f.store.SetGraph([]graph.Node{
		graph.NewNode("p", graph.CategoryTopic, "Parent"),
		graph.NewNode("p-child1", graph.CategoryExplanation, "Existing"),
	}, nil)

	exp, err := f.gw.ExpandNode(context.Background(), "p")
	require.NoError(t, err)
	require.Len(t, exp.NewNodes, 1)

	assert.Equal(t, "p-child1-2", exp.NewNodes[0].ID)
	assert.Equal(t, "p-child1-2", exp.NewEdges[0].Target)

	// The pre-existing node was not shadowed.
	existing, ok := f.store.Node("p-child1")
	require.True(t, ok)
	assert.Equal(t, "Existing", existing.Label)

	added, ok := f.store.Node("p-child1-2")
	require.True(t, ok)
	assert.Equal(t, "Fresh", added.Label)
}

func TestExpandUnknownNode(t *testing.T) {
	f := newFixture(t, goodFlow)

	_, err := f.gw.ExpandNode(context.Background(), "ghost")
	require.Error(t, err)
	assert.Zero(t, f.provider.calls)
}

func TestGenerateQuiz(t *testing.T) {
	f := newFixture(t, `[
		{"question": "Q1?", "type": "true-false", "correctAnswer": "True"},
		{"question": "Q2?", "type": "multiple-choice", "options": ["a", "b"], "correctAnswer": "a"}
	]`)
	nodes := []graph.Node{
		{ID: "a", Label: "A", Category: graph.CategoryTopic},
		{ID: "b", Label: "B", Category: graph.CategoryExplanation},
	}
	edges := []graph.Edge{{ID: "e", Source: "a", Target: "b"}}

	qs, err := f.gw.GenerateQuiz(context.Background(), nodes, edges)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Contains(t, f.provider.lastPrompt, `"A" -> "B"`)
}

func TestGenerateQuizEmptyGraph(t *testing.T) {
	f := newFixture(t, "[]")

	_, err := f.gw.GenerateQuiz(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Zero(t, f.provider.calls)
}

func TestSummarize(t *testing.T) {
	f := newFixture(t, "  A concise summary of the topic.\n")

	nodes := []graph.Node{{ID: "a", Label: "A", Category: graph.CategoryTopic, Details: "some details"}}
	summary, err := f.gw.Summarize(context.Background(), nodes, "My Map")
	require.NoError(t, err)
	assert.Equal(t, "A concise summary of the topic.", summary)
	assert.Contains(t, f.provider.lastPrompt, `"My Map"`)
}

func TestSummarizeEmptyModelOutput(t *testing.T) {
	f := newFixture(t, "   \n")

	_, err := f.gw.Summarize(context.Background(), []graph.Node{{ID: "a", Label: "A"}}, "")
	var cerr *CallError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonMalformedResponse, cerr.Reason)
}
