package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindflow/mindflow-ai/internal/graph"
	"github.com/mindflow/mindflow-ai/internal/ingest"
	"github.com/mindflow/mindflow-ai/internal/ratelimit"
	"github.com/mindflow/mindflow-ai/internal/vault"
)

// Rate-limit keys, one window per operation.
const (
	rateKeyGenerate  = "ai_generate"
	rateKeyExpand    = "ai_expand"
	rateKeyQuiz      = "ai_quiz"
	rateKeySummarize = "ai_summarize"
)

// Gateway orchestrates a single generation call: rate limit, credential,
// prompt, provider, ingestion. Each call walks that sequence once; there
// are no automatic retries, and any failure is terminal for the call and
// surfaced as a *CallError. The provider call is the only suspension point
// and honors context cancellation — a cancelled call merges nothing into
// the graph.
type Gateway struct {
	provider Provider
	limiter  *ratelimit.Limiter
	vault    *vault.Vault
	store    *graph.MapStore
	logger   *slog.Logger

	now func() time.Time
}

// NewGateway wires a Gateway. All collaborators are required.
func NewGateway(provider Provider, limiter *ratelimit.Limiter, v *vault.Vault, store *graph.MapStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider: provider,
		limiter:  limiter,
		vault:    v,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// admit runs the rate-limit and credential gates shared by every operation.
func (g *Gateway) admit(key string) *CallError {
	res := g.limiter.CheckAndRecord(key, g.now())
	if !res.Allowed {
		return rateLimited(res.RetryAfterSeconds)
	}
	if g.vault.Load() == "" {
		return missingCredential()
	}
	return nil
}

// call invokes the provider and guards against post-cancellation merging.
func (g *Gateway) call(ctx context.Context, prompt string) (string, *CallError) {
	start := g.now()
	text, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		return "", transportError(err)
	}
	if ctx.Err() != nil {
		return "", transportError(ctx.Err())
	}
	g.logger.Debug("ai: provider call complete",
		"provider", g.provider.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
		"response_chars", len(text))
	return text, nil
}

// ---------------------------------------------------------------------------
// GenerateMindMap
// ---------------------------------------------------------------------------

// GenerateMindMap turns source text into a full mind map and replaces the
// graph with it. Input is sanitized and length-capped before prompting.
func (g *Gateway) GenerateMindMap(ctx context.Context, text string) (ingest.MindMapFlow, error) {
	if len(text) > MaxTextLength {
		return ingest.MindMapFlow{}, fmt.Errorf("ai: input text too long (%d chars, limit %d)", len(text), MaxTextLength)
	}
	sanitized := SanitizeText(text)
	if strings.TrimSpace(sanitized) == "" {
		return ingest.MindMapFlow{}, fmt.Errorf("ai: input text is empty after sanitization")
	}

	if cerr := g.admit(rateKeyGenerate); cerr != nil {
		return ingest.MindMapFlow{}, cerr
	}

	raw, cerr := g.call(ctx, BuildMindMapPrompt(sanitized))
	if cerr != nil {
		return ingest.MindMapFlow{}, cerr
	}

	payload, err := ingest.ExtractObject(raw)
	if err != nil {
		return ingest.MindMapFlow{}, malformedResponse(err)
	}
	flow, err := ingest.ValidateMindMapFlow(payload)
	if err != nil {
		return ingest.MindMapFlow{}, schemaInvalid(err)
	}

	g.store.SetGraph(flow.Nodes, flow.Edges)
	g.logger.Info("ai: mind map generated", "nodes", len(flow.Nodes), "edges", len(flow.Edges))
	return flow, nil
}

// ---------------------------------------------------------------------------
// ExpandNode
// ---------------------------------------------------------------------------

// ExpandNode asks the model for 2-3 children of the named node and merges
// them into the graph. Ids the model reuses from the existing graph are
// suffix-disambiguated before the merge, edges rewritten to match, so an
// expansion never shadows an existing node.
func (g *Gateway) ExpandNode(ctx context.Context, parentID string) (ingest.Expansion, error) {
	parent, ok := g.store.Node(parentID)
	if !ok {
		return ingest.Expansion{}, fmt.Errorf("ai: unknown node %q", parentID)
	}

	if cerr := g.admit(rateKeyExpand); cerr != nil {
		return ingest.Expansion{}, cerr
	}

	raw, cerr := g.call(ctx, BuildExpansionPrompt(parent))
	if cerr != nil {
		return ingest.Expansion{}, cerr
	}

	payload, err := ingest.ExtractObject(raw)
	if err != nil {
		return ingest.Expansion{}, malformedResponse(err)
	}
	exp, err := ingest.ValidateExpansion(payload, parent.ID, parent.Position)
	if err != nil {
		return ingest.Expansion{}, schemaInvalid(err)
	}

	g.disambiguate(&exp)
	g.store.MergeNodes(exp.NewNodes)
	g.store.MergeEdges(exp.NewEdges)
	g.logger.Info("ai: node expanded", "parent", parentID, "new_nodes", len(exp.NewNodes))
	return exp, nil
}

// disambiguate renames any new node whose id already exists in the store,
// rewriting the expansion's edges to follow.
func (g *Gateway) disambiguate(exp *ingest.Expansion) {
	taken := func(id string) bool {
		_, exists := g.store.Node(id)
		if exists {
			return true
		}
		for _, n := range exp.NewNodes {
			if n.ID == id {
				return true
			}
		}
		return false
	}

	for i := range exp.NewNodes {
		id := exp.NewNodes[i].ID
		if _, exists := g.store.Node(id); !exists {
			continue
		}
		fresh := id
		for n := 2; taken(fresh); n++ {
			fresh = fmt.Sprintf("%s-%d", id, n)
		}
		g.logger.Debug("ai: expansion id collision", "id", id, "renamed", fresh)
		for j := range exp.NewEdges {
			if exp.NewEdges[j].Source == id {
				exp.NewEdges[j].Source = fresh
			}
			if exp.NewEdges[j].Target == id {
				exp.NewEdges[j].Target = fresh
			}
		}
		exp.NewNodes[i].ID = fresh
	}
}

// ---------------------------------------------------------------------------
// GenerateQuiz
// ---------------------------------------------------------------------------

// GenerateQuiz produces 3-5 questions covering the given graph.
func (g *Gateway) GenerateQuiz(ctx context.Context, nodes []graph.Node, edges []graph.Edge) ([]ingest.QuizQuestion, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("ai: cannot generate a quiz from an empty mind map")
	}
	prompt := BuildQuizPrompt(nodes, edges)
	if len(prompt) > MaxTextLength/2 {
		return nil, fmt.Errorf("ai: mind map too large for quiz generation (%d chars)", len(prompt))
	}

	if cerr := g.admit(rateKeyQuiz); cerr != nil {
		return nil, cerr
	}

	raw, cerr := g.call(ctx, prompt)
	if cerr != nil {
		return nil, cerr
	}

	payload, err := ingest.ExtractArray(raw)
	if err != nil {
		return nil, malformedResponse(err)
	}
	questions, err := ingest.ValidateQuiz(payload)
	if err != nil {
		return nil, schemaInvalid(err)
	}

	g.logger.Info("ai: quiz generated", "questions", len(questions))
	return questions, nil
}

// ---------------------------------------------------------------------------
// Summarize
// ---------------------------------------------------------------------------

// Summarize produces a short prose summary of the given nodes. The result
// is plain text; the only shape requirement is that it is non-empty.
func (g *Gateway) Summarize(ctx context.Context, nodes []graph.Node, title string) (string, error) {
	if len(nodes) == 0 {
		return "", fmt.Errorf("ai: no content available to summarize")
	}
	prompt := BuildSummaryPrompt(nodes, title)
	if len(prompt) > MaxTextLength {
		return "", fmt.Errorf("ai: content too long to summarize (%d chars)", len(prompt))
	}

	if cerr := g.admit(rateKeySummarize); cerr != nil {
		return "", cerr
	}

	raw, cerr := g.call(ctx, prompt)
	if cerr != nil {
		return "", cerr
	}

	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", malformedResponse(fmt.Errorf("ai: model returned an empty summary"))
	}
	return summary, nil
}
