package http

import (
	"encoding/json"
	"net/http"

	"donorflow/internal/analysis"
)

// handleAnalysisState returns the full analysis state: results per kind,
// loading flags, last error and active tab.
func (s *Server) handleAnalysisState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

// handleAnalysisFetch runs one analysis kind and returns the updated state.
// A failed fetch is reported inside the snapshot, not as an HTTP error.
func (s *Server) handleAnalysisFetch(w http.ResponseWriter, r *http.Request) {
	kind := analysis.Kind(r.PathValue("kind"))
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown analysis kind: "+kind.String())
		return
	}

	_ = s.controller.Fetch(r.Context(), kind)
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAnalysisResetAll(w http.ResponseWriter, r *http.Request) {
	s.controller.ResetAll(r.Context())
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAnalysisResetOne(w http.ResponseWriter, r *http.Request) {
	kind := analysis.Kind(r.PathValue("kind"))
	if !kind.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown analysis kind: "+kind.String())
		return
	}

	s.controller.ResetOne(r.Context(), kind)
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleAnalysisTab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tab int `json:"tab"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tab < 0 || req.Tab >= len(analysis.Kinds()) {
		writeError(w, http.StatusBadRequest, "tab index out of range")
		return
	}

	s.controller.SetActiveTab(r.Context(), req.Tab)
	writeJSON(w, http.StatusOK, s.controller.Snapshot())
}
