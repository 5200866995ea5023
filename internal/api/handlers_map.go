package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/mindflow/mindflow-ai/internal/graph"
)

// maxImportBytes bounds a full-document import request body.
const maxImportBytes = 16 << 20

// mapResponse is the full-graph payload returned by GET /api/map.
type mapResponse struct {
	Nodes      []graph.Node `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	SelectedID string       `json:"selectedId,omitempty"`
}

// GET /api/map
func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	nodes, edges := s.store.Snapshot()
	resp := mapResponse{Nodes: nodes, Edges: edges}
	if sel, ok := s.store.Selected(); ok {
		resp.SelectedID = sel.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/map/visible
func (s *Server) handleGetVisible(w http.ResponseWriter, r *http.Request) {
	nodes, edges := s.store.ComputeVisible()
	writeJSON(w, http.StatusOK, mapResponse{Nodes: nodes, Edges: edges})
}

// GET /api/map/stats
func (s *Server) handleMapStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ComputeStats())
}

// GET /api/map/export
func (s *Server) handleExportMap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="mindmap.json"`)
	writeJSON(w, http.StatusOK, graph.Export(s.store))
}

// PUT /api/map — replaces the whole graph from an exported document.
func (s *Server) handleImportMap(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "READ_BODY", "could not read request body")
		return
	}

	doc, err := graph.Import(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_DOCUMENT", err.Error())
		return
	}

	s.store.SetGraph(doc.Nodes, doc.Edges)
	s.broadcastMapUpdated("import")
	writeJSON(w, http.StatusOK, map[string]int{
		"nodes": len(doc.Nodes),
		"edges": len(doc.Edges),
	})
}

// POST /api/map/nodes — merges new nodes into the graph. A node arriving
// without an id gets a generated one.
func (s *Server) handleMergeNodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nodes []graph.Node `json:"nodes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if len(req.Nodes) == 0 {
		writeError(w, http.StatusBadRequest, "NO_NODES", "nodes array is required")
		return
	}

	for i := range req.Nodes {
		n := &req.Nodes[i]
		if n.ID == "" {
			n.ID = graph.NewNode("", n.Category, n.Label).ID
		}
		if n.Label == "" {
			n.Label = "Untitled Node"
		}
		if !n.Category.Valid() {
			n.Category = graph.CategoryExplanation
		}
	}

	s.store.MergeNodes(req.Nodes)
	s.broadcastMapUpdated("merge_nodes")
	writeJSON(w, http.StatusCreated, map[string]any{"nodes": req.Nodes})
}

// PATCH /api/map/nodes/{id}
func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Node(id); !ok {
		writeError(w, http.StatusNotFound, "NODE_NOT_FOUND", "no such node")
		return
	}

	var req struct {
		Label    string         `json:"label"`
		Details  string         `json:"details"`
		Category graph.Category `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	s.store.UpdateNode(id, req.Label, req.Details, req.Category)
	s.broadcastMapUpdated("update_node")

	n, _ := s.store.Node(id)
	writeJSON(w, http.StatusOK, n)
}

// DELETE /api/map/nodes/{id} — idempotent.
func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	s.store.RemoveNode(r.PathValue("id"))
	s.broadcastMapUpdated("remove_node")
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/map/nodes/{id}/collapse
func (s *Server) handleToggleCollapse(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.store.Node(id); !ok {
		writeError(w, http.StatusNotFound, "NODE_NOT_FOUND", "no such node")
		return
	}

	s.store.ToggleCollapse(id)
	s.broadcastMapUpdated("toggle_collapse")

	n, _ := s.store.Node(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          n.ID,
		"isCollapsed": n.IsCollapsed,
	})
}

// POST /api/map/edges — user-drawn connection between two existing nodes.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if _, ok := s.store.Node(req.Source); !ok {
		writeError(w, http.StatusNotFound, "NODE_NOT_FOUND", "source node does not exist")
		return
	}
	if _, ok := s.store.Node(req.Target); !ok {
		writeError(w, http.StatusNotFound, "NODE_NOT_FOUND", "target node does not exist")
		return
	}

	edge := s.store.Connect(req.Source, req.Target)
	s.broadcastMapUpdated("connect")
	writeJSON(w, http.StatusCreated, edge)
}

// POST /api/map/selection — an empty or unknown id clears the selection.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	s.store.SetSelected(req.ID)

	resp := map[string]any{"selectedId": nil}
	if sel, ok := s.store.Selected(); ok {
		resp["selectedId"] = sel.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// broadcastMapUpdated pushes the new visible projection to SSE clients.
func (s *Server) broadcastMapUpdated(cause string) {
	nodes, edges := s.store.ComputeVisible()
	s.sse.Broadcast(SSEEvent{
		Event: EventMapUpdated,
		Data: map[string]any{
			"cause": cause,
			"nodes": nodes,
			"edges": edges,
		},
	})
}
