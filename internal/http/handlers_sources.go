package http

import (
	"context"
	"encoding/json"
	"net/http"

	"donorflow/internal/donorapi"
	"donorflow/internal/sources"
)

const maxUploadBytes = 50 << 20 // 50 MB

// handleUploadExcel accepts a multipart upload of current-year Excel files
// and forwards them to the analytics backend.
func (s *Server) handleUploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	files := make([]donorapi.UploadFile, 0, len(parts))
	for _, fh := range parts {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file "+fh.Filename)
			return
		}
		defer f.Close()
		files = append(files, donorapi.UploadFile{Name: fh.Filename, Reader: f})
	}

	result, err := s.sources.Upload(r.Context(), sources.UploadRequest{
		Files:  files,
		Source: r.FormValue("source"),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "upload failed")
		return
	}

	writeJSON(w, http.StatusOK, result.Backend)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	list, err := s.sources.ListSources(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to list sources")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type deleteRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleDeleteBySource(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, s.sources.DeleteBySource)
}

func (s *Server) handleDeleteByIstochnik(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, s.sources.DeleteByIstochnik)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, del func(ctx context.Context, filename string) (sources.DeleteResult, error)) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	result, err := del(r.Context(), req.Filename)
	if err != nil {
		writeError(w, http.StatusBadGateway, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResetAllCRM(w http.ResponseWriter, r *http.Request) {
	result, err := s.sources.ResetCRM(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleResetAllExcel2025(w http.ResponseWriter, r *http.Request) {
	result, err := s.sources.ResetExcel2025(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "reset failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
