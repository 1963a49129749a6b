package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"donorflow/internal/amqp"
	"donorflow/internal/analysis"
	"donorflow/internal/backend"
	"donorflow/internal/donorapi"
	"donorflow/internal/storage"
)

// Uploader is the slice of the analytics API client the service needs.
type Uploader interface {
	UploadExcel(ctx context.Context, files []donorapi.UploadFile, source string) (donorapi.UploadResult, error)
	ListUploadedSources(ctx context.Context) ([]string, error)
	DeleteBySource(ctx context.Context, filename string) (json.RawMessage, error)
	DeleteByIstochnik(ctx context.Context, filename string) (json.RawMessage, error)
	ResetAllCRM(ctx context.Context) (json.RawMessage, error)
	ResetAllExcel2025(ctx context.Context) (json.RawMessage, error)
}

// RefreshPublisher forwards refresh requests to the worker queue.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, msg *amqp.RefreshMessage) error
}

// Service orchestrates dataset changes: the analytics backend is updated
// first and stays authoritative, the local registry mirrors it, and a
// refresh message is published so stale analyses get refetched. A failed
// registry write or publish never fails the operation.
type Service struct {
	api       Uploader
	registry  backend.SourceRegistry
	publisher RefreshPublisher
}

func NewService(api Uploader, registry backend.SourceRegistry, publisher RefreshPublisher) *Service {
	return &Service{
		api:       api,
		registry:  registry,
		publisher: publisher,
	}
}

// UploadResult pairs the backend's upload summary with the local registry id.
type UploadResult struct {
	Backend    donorapi.UploadResult
	RegistryID int64
}

// Upload sends current-year Excel files to the backend and registers them.
type UploadRequest struct {
	Files  []donorapi.UploadFile
	Source string
}

func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if len(req.Files) == 0 {
		return UploadResult{}, fmt.Errorf("no files to upload")
	}

	result, err := s.api.UploadExcel(ctx, req.Files, req.Source)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload to backend: %w", err)
	}

	out := UploadResult{Backend: result}
	for _, f := range req.Files {
		id, err := s.registry.RecordUpload(ctx, storage.UploadedSource{
			Filename:    f.Name,
			Source:      req.Source,
			Dataset:     storage.DatasetExcel2025,
			RecordCount: result.Added,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to register upload",
				"filename", f.Name, "error", err)
			continue
		}
		out.RegistryID = id
	}

	s.publishRefresh(ctx, []string{
		analysis.KindExcel2025.String(),
		analysis.KindComparison.String(),
	}, "excel-uploaded")

	return out, nil
}

// Sources lists the backend's source names next to the local registry.
type Sources struct {
	Backend  []string                 `json:"sources"`
	Registry []storage.UploadedSource `json:"registry"`
}

func (s *Service) ListSources(ctx context.Context) (Sources, error) {
	names, err := s.api.ListUploadedSources(ctx)
	if err != nil {
		return Sources{}, fmt.Errorf("list backend sources: %w", err)
	}

	local, err := s.registry.ListSources(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list local registry", "error", err)
		local = nil
	}

	return Sources{Backend: names, Registry: local}, nil
}

// DeleteResult reports the backend response plus local registry rows removed.
type DeleteResult struct {
	Backend      json.RawMessage `json:"backend"`
	LocalRemoved int64           `json:"local_removed"`
}

// DeleteBySource removes every current-year record loaded from a file.
func (s *Service) DeleteBySource(ctx context.Context, filename string) (DeleteResult, error) {
	raw, err := s.api.DeleteBySource(ctx, filename)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete by source: %w", err)
	}

	removed := s.pruneRegistry(ctx, func() (int64, error) {
		return s.registry.DeleteByFilename(ctx, filename)
	})

	s.publishRefresh(ctx, []string{
		analysis.KindExcel2025.String(),
		analysis.KindComparison.String(),
	}, "source-deleted")

	return DeleteResult{Backend: raw, LocalRemoved: removed}, nil
}

// DeleteByIstochnik removes every CRM record tagged with a source label.
func (s *Service) DeleteByIstochnik(ctx context.Context, filename string) (DeleteResult, error) {
	raw, err := s.api.DeleteByIstochnik(ctx, filename)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete by istochnik: %w", err)
	}

	removed := s.pruneRegistry(ctx, func() (int64, error) {
		return s.registry.DeleteBySourceLabel(ctx, filename)
	})

	s.publishRefresh(ctx, []string{
		analysis.KindCRM.String(),
		analysis.KindComparison.String(),
	}, "istochnik-deleted")

	return DeleteResult{Backend: raw, LocalRemoved: removed}, nil
}

// ResetCRM drops the whole CRM dataset.
func (s *Service) ResetCRM(ctx context.Context) (DeleteResult, error) {
	raw, err := s.api.ResetAllCRM(ctx)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("reset crm: %w", err)
	}

	removed := s.pruneRegistry(ctx, func() (int64, error) {
		return s.registry.DeleteByDataset(ctx, storage.DatasetCRM)
	})

	s.publishRefresh(ctx, []string{
		analysis.KindCRM.String(),
		analysis.KindComparison.String(),
	}, "crm-reset")

	return DeleteResult{Backend: raw, LocalRemoved: removed}, nil
}

// ResetExcel2025 drops the whole current-year dataset.
func (s *Service) ResetExcel2025(ctx context.Context) (DeleteResult, error) {
	raw, err := s.api.ResetAllExcel2025(ctx)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("reset excel 2025: %w", err)
	}

	removed := s.pruneRegistry(ctx, func() (int64, error) {
		return s.registry.DeleteByDataset(ctx, storage.DatasetExcel2025)
	})

	s.publishRefresh(ctx, []string{
		analysis.KindExcel2025.String(),
		analysis.KindComparison.String(),
	}, "excel-2025-reset")

	return DeleteResult{Backend: raw, LocalRemoved: removed}, nil
}

func (s *Service) pruneRegistry(ctx context.Context, del func() (int64, error)) int64 {
	removed, err := del()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to prune upload registry", "error", err)
		return 0
	}
	return removed
}

func (s *Service) publishRefresh(ctx context.Context, kinds []string, reason string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Refresh publisher not available, skipping message", "reason", reason)
		return
	}
	if err := s.publisher.PublishRefresh(ctx, amqp.NewRefreshMessage(kinds, reason)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish refresh message",
			"kinds", kinds, "reason", reason, "error", err)
		// Don't fail the request - the backend change already happened
	}
}
