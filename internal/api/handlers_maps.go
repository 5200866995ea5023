package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mindflow/mindflow-ai/internal/graph"
	"github.com/mindflow/mindflow-ai/internal/storage"
)

// requireDB rejects persistence requests when no database is configured.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "PERSISTENCE_DISABLED",
			"no database configured")
		return false
	}
	return true
}

// GET /api/maps
func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	maps, err := s.db.ListMaps(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_READ", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"maps": maps})
}

// POST /api/maps — snapshots the current graph under the given name.
func (s *Server) handleSaveMap(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "NAME_REQUIRED", "map name is required")
		return
	}

	doc := graph.Export(s.store)
	payload, err := json.Marshal(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ENCODE", err.Error())
		return
	}

	saved, err := s.db.SaveMap(r.Context(), req.Name, payload, len(doc.Nodes), len(doc.Edges))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_WRITE", err.Error())
		return
	}
	saved.Document = nil
	writeJSON(w, http.StatusCreated, saved)
}

// GET /api/maps/{id}
func (s *Server) handleGetSavedMap(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	m, err := s.db.GetMap(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrMapNotFound) {
		writeError(w, http.StatusNotFound, "MAP_NOT_FOUND", "no such map")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_READ", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// PUT /api/maps/{id} — re-snapshots the current graph over a saved map.
func (s *Server) handleUpdateSavedMap(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	doc := graph.Export(s.store)
	payload, err := json.Marshal(doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ENCODE", err.Error())
		return
	}

	err = s.db.UpdateMap(r.Context(), r.PathValue("id"), req.Name, payload, len(doc.Nodes), len(doc.Edges))
	if errors.Is(err, storage.ErrMapNotFound) {
		writeError(w, http.StatusNotFound, "MAP_NOT_FOUND", "no such map")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_WRITE", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/maps/{id} — idempotent.
func (s *Server) handleDeleteSavedMap(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	if err := s.db.DeleteMap(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, "DB_WRITE", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/maps/{id}/load — replaces the working graph with a saved map.
func (s *Server) handleLoadSavedMap(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	m, err := s.db.GetMap(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrMapNotFound) {
		writeError(w, http.StatusNotFound, "MAP_NOT_FOUND", "no such map")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_READ", err.Error())
		return
	}

	doc, err := graph.Import(m.Document)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_DOCUMENT", err.Error())
		return
	}

	s.store.SetGraph(doc.Nodes, doc.Edges)
	s.broadcastMapUpdated("load_map")
	writeJSON(w, http.StatusOK, map[string]any{
		"id":    m.ID,
		"name":  m.Name,
		"nodes": len(doc.Nodes),
		"edges": len(doc.Edges),
	})
}
