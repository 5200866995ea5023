package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mindflow/mindflow-ai/internal/ai"
	"github.com/mindflow/mindflow-ai/internal/graph"
)

// requireGateway rejects AI requests when no provider is configured.
func (s *Server) requireGateway(w http.ResponseWriter) bool {
	if s.gateway == nil {
		writeError(w, http.StatusServiceUnavailable, "AI_DISABLED",
			"no AI provider configured")
		return false
	}
	return true
}

// writeCallError maps a gateway failure onto an HTTP response.
func writeCallError(w http.ResponseWriter, err error) {
	var cerr *ai.CallError
	if !errors.As(err, &cerr) {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	switch cerr.Reason {
	case ai.ReasonRateLimited:
		w.Header().Set("Retry-After", fmt.Sprintf("%d", cerr.RetryAfterSeconds))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":             cerr.Detail,
			"code":              string(cerr.Reason),
			"retryAfterSeconds": cerr.RetryAfterSeconds,
		})
	case ai.ReasonMissingCredential:
		writeError(w, http.StatusUnauthorized, string(cerr.Reason), cerr.Detail)
	case ai.ReasonTransport:
		writeError(w, http.StatusBadGateway, string(cerr.Reason), cerr.Detail)
	case ai.ReasonMalformedResponse, ai.ReasonSchemaInvalid:
		writeError(w, http.StatusUnprocessableEntity, string(cerr.Reason), cerr.Detail)
	default:
		writeError(w, http.StatusInternalServerError, string(cerr.Reason), cerr.Detail)
	}
}

// POST /api/ai/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.requireGateway(w) {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	s.sse.Broadcast(SSEEvent{Event: EventGenerationStarted, Data: map[string]string{"operation": "generate"}})

	flow, err := s.gateway.GenerateMindMap(r.Context(), req.Text)
	s.sse.Broadcast(SSEEvent{Event: EventGenerationFinished, Data: map[string]any{
		"operation": "generate",
		"ok":        err == nil,
	}})
	if err != nil {
		writeCallError(w, err)
		return
	}

	s.broadcastMapUpdated("generate")
	writeJSON(w, http.StatusOK, mapResponse{Nodes: flow.Nodes, Edges: flow.Edges})
}

// POST /api/ai/expand
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if !s.requireGateway(w) {
		return
	}

	var req struct {
		NodeID string `json:"nodeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if _, ok := s.store.Node(req.NodeID); !ok {
		writeError(w, http.StatusNotFound, "NODE_NOT_FOUND", "no such node")
		return
	}

	s.sse.Broadcast(SSEEvent{Event: EventGenerationStarted, Data: map[string]string{"operation": "expand"}})

	exp, err := s.gateway.ExpandNode(r.Context(), req.NodeID)
	s.sse.Broadcast(SSEEvent{Event: EventGenerationFinished, Data: map[string]any{
		"operation": "expand",
		"ok":        err == nil,
	}})
	if err != nil {
		writeCallError(w, err)
		return
	}

	s.broadcastMapUpdated("expand")
	writeJSON(w, http.StatusOK, map[string]any{
		"newNodes": exp.NewNodes,
		"newEdges": exp.NewEdges,
	})
}

// POST /api/ai/quiz — quiz over the whole current graph.
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	if !s.requireGateway(w) {
		return
	}

	nodes, edges := s.store.Snapshot()
	questions, err := s.gateway.GenerateQuiz(r.Context(), nodes, edges)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// POST /api/ai/summary — summary of the named nodes, or of the whole graph
// when no ids are given.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !s.requireGateway(w) {
		return
	}

	var req struct {
		NodeIDs []string `json:"nodeIds"`
		Title   string   `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	var nodes []graph.Node
	if len(req.NodeIDs) == 0 {
		nodes, _ = s.store.Snapshot()
	} else {
		for _, id := range req.NodeIDs {
			if n, ok := s.store.Node(id); ok {
				nodes = append(nodes, n)
			}
		}
	}

	summary, err := s.gateway.Summarize(r.Context(), nodes, req.Title)
	if err != nil {
		writeCallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// ---------------------------------------------------------------------------
// Credential
// ---------------------------------------------------------------------------

// GET /api/credential — presence only; the secret itself never leaves the vault.
func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"configured": s.vault.HasCredential(),
	})
}

// PUT /api/credential
func (s *Server) handleCredentialStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Credential string `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	if err := s.vault.Store(req.Credential); err != nil {
		writeError(w, http.StatusInternalServerError, "VAULT_WRITE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"configured": req.Credential != "",
	})
}

// DELETE /api/credential
func (s *Server) handleCredentialRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Remove(); err != nil {
		writeError(w, http.StatusInternalServerError, "VAULT_WRITE", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
