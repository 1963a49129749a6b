package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"donorflow/internal/analysis"
	"donorflow/internal/cache"
	"donorflow/internal/donor"
	"donorflow/internal/log"
	"donorflow/internal/sources"
)

// ProfileAPI is the slice of the analytics client the server needs for
// donor profile lookups.
type ProfileAPI interface {
	DonorProfile(ctx context.Context, key string) (json.RawMessage, error)
}

type Server struct {
	http.Server

	controller *analysis.Controller
	sources    *sources.Service
	profiles   ProfileAPI

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// LRU cache for normalized donor profiles
	profileCache *cache.LRUCache[donor.Profile]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// Deps bundles what the server serves.
type Deps struct {
	Controller *analysis.Controller
	Sources    *sources.Service
	Profiles   ProfileAPI
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		controller:   deps.Controller,
		sources:      deps.Sources,
		profiles:     deps.Profiles,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		profileCache: cache.NewLRUCache[donor.Profile](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.profileCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("GET /api/analysis", s.secured(s.handleAnalysisState))
	mux.HandleFunc("POST /api/analysis/reset", s.secured(s.handleAnalysisResetAll))
	mux.HandleFunc("POST /api/analysis/reset/{kind}", s.secured(s.handleAnalysisResetOne))
	mux.HandleFunc("POST /api/analysis/{kind}", s.secured(s.handleAnalysisFetch))
	mux.HandleFunc("PUT /api/analysis/tab", s.secured(s.handleAnalysisTab))

	mux.HandleFunc("GET /api/crm/donator_profile", s.secured(s.handleDonorProfile))

	mux.HandleFunc("POST /api/upload_excel", s.secured(s.handleUploadExcel))
	mux.HandleFunc("GET /api/list_uploaded_sources", s.secured(s.handleListSources))
	mux.HandleFunc("POST /api/delete_by_source", s.secured(s.handleDeleteBySource))
	mux.HandleFunc("POST /api/delete_by_istochnik", s.secured(s.handleDeleteByIstochnik))
	mux.HandleFunc("POST /api/reset_all_crm", s.secured(s.handleResetAllCRM))
	mux.HandleFunc("POST /api/reset_all_excel_2025", s.secured(s.handleResetAllExcel2025))

	return s
}

type contextKey string

const requestIDKey contextKey = "request_id"

// secured adds security headers, rate limiting and request logging.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request detected",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.String())
		}

		// Rate limit mutating requests only
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
