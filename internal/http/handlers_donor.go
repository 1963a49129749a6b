package http

import (
	"log/slog"
	"net/http"

	"donorflow/internal/core"
	"donorflow/internal/donor"
)

// handleDonorProfile looks up one donor by key, normalizes the backend's
// response and serves it. Profiles are cached for a few minutes since the
// same donor tends to be opened repeatedly.
func (s *Server) handleDonorProfile(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	if profile, ok := s.profileCache.Get(key); ok {
		writeJSON(w, http.StatusOK, profile)
		return
	}

	raw, err := s.profiles.DonorProfile(r.Context(), key)
	if err != nil {
		slog.ErrorContext(r.Context(), "Donor profile fetch failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "donor profile unavailable")
		return
	}

	profile, err := donor.Normalize(key, raw)
	if err != nil {
		slog.ErrorContext(r.Context(), "Donor profile normalization failed", "key", key, "error", err)
		writeError(w, http.StatusBadGateway, "donor profile unavailable")
		return
	}

	// Charts need at least one real category. Only when no month resolved
	// at all does a synthetic January bucket get added; donors with actual
	// months keep exactly those.
	if noResolvedMonths(profile.MonthlyTotals) {
		profile.MonthlyTotals[core.MonthNames[0]] = 0
	}

	s.profileCache.Set(key, profile)
	writeJSON(w, http.StatusOK, profile)
}

// noResolvedMonths reports whether the mapping is empty or holds only the
// unresolved-date bucket.
func noResolvedMonths(m core.MonthStats) bool {
	if len(m) == 0 {
		return true
	}
	if len(m) == 1 {
		_, onlySentinel := m[core.MonthUnknown]
		return onlySentinel
	}
	return false
}
