package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"donorflow/internal/cache"
	"donorflow/internal/donorapi"
)

// User-facing error messages. Failing statuses all collapse to the same
// message; only unreachable-backend failures get their own wording.
const (
	msgAnalysisFailed     = "Ошибка при получении анализа. Попробуйте позже."
	msgBackendUnreachable = "Сервис аналитики недоступен."
)

// Fetcher runs one analysis per kind against the analytics backend.
type Fetcher interface {
	AnalyzeCRM(ctx context.Context) (json.RawMessage, error)
	AnalyzeExcel2025(ctx context.Context) (json.RawMessage, error)
	ComparePeriods(ctx context.Context) (json.RawMessage, error)
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Results   map[Kind]json.RawMessage `json:"results"`
	Loading   map[Kind]bool            `json:"loading"`
	LastError string                   `json:"last_error,omitempty"`
	ActiveTab int                      `json:"active_tab"`
}

// Controller owns the analysis results, their loading flags, the last error
// message and the selected tab. Results are hydrated from the persisted
// cache at construction and written back after every successful fetch.
//
// Concurrent fetches of the same kind are allowed; the last one to finish
// wins. There is no deduplication, cancellation or retry.
type Controller struct {
	fetcher Fetcher
	cache   *cache.ResultCache
	logger  *slog.Logger

	mu        sync.Mutex
	results   map[Kind]json.RawMessage
	loading   map[Kind]bool
	lastError string
	activeTab int
}

func NewController(ctx context.Context, fetcher Fetcher, rc *cache.ResultCache, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		fetcher: fetcher,
		cache:   rc,
		logger:  logger,
		results: make(map[Kind]json.RawMessage),
		loading: make(map[Kind]bool),
	}

	entry, ok, err := rc.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load cached analysis results", "error", err)
		return c
	}
	if ok {
		for name, raw := range entry.Results {
			if k := Kind(name); k.IsValid() {
				c.results[k] = raw
			}
		}
		c.activeTab = entry.ActiveTab
		logger.Info("Hydrated analysis results from cache",
			"kinds", len(c.results),
			"active_tab", c.activeTab)
	}
	return c
}

// Fetch runs one analysis and records the outcome. The loading flag is set
// and the previous error cleared before any I/O starts, so an immediate
// Snapshot already reflects the request in flight.
func (c *Controller) Fetch(ctx context.Context, kind Kind) error {
	if !kind.IsValid() {
		return fmt.Errorf("unknown analysis kind: %s", kind)
	}

	c.mu.Lock()
	c.loading[kind] = true
	c.lastError = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading[kind] = false
		c.mu.Unlock()
	}()

	raw, err := c.run(ctx, kind)
	if err != nil {
		msg := collapseError(err)
		c.mu.Lock()
		c.lastError = msg
		c.mu.Unlock()

		c.logger.Error("Analysis fetch failed", "kind", kind, "error", err)
		return err
	}

	c.mu.Lock()
	c.results[kind] = raw
	c.mu.Unlock()

	c.persist(ctx)
	c.logger.Info("Analysis fetched", "kind", kind, "bytes", len(raw))
	return nil
}

func (c *Controller) run(ctx context.Context, kind Kind) (json.RawMessage, error) {
	switch kind {
	case KindCRM:
		return c.fetcher.AnalyzeCRM(ctx)
	case KindExcel2025:
		return c.fetcher.AnalyzeExcel2025(ctx)
	case KindComparison:
		return c.fetcher.ComparePeriods(ctx)
	default:
		return nil, fmt.Errorf("unknown analysis kind: %s", kind)
	}
}

// ResetAll drops every result, returns to the first tab, clears the error
// and wipes the persisted cache.
func (c *Controller) ResetAll(ctx context.Context) {
	c.mu.Lock()
	c.results = make(map[Kind]json.RawMessage)
	c.activeTab = 0
	c.lastError = ""
	c.mu.Unlock()

	if err := c.cache.Clear(ctx); err != nil {
		c.logger.Warn("Failed to clear analysis cache", "error", err)
	}
}

// ResetOne drops a single result and persists the remaining state as a
// fresh entry. The other kinds and the selected tab are untouched.
func (c *Controller) ResetOne(ctx context.Context, kind Kind) {
	c.mu.Lock()
	delete(c.results, kind)
	c.mu.Unlock()

	c.persist(ctx)
}

// SetActiveTab records the selected tab and persists it. Persisting rewrites
// the whole entry, so the TTL clock restarts too.
func (c *Controller) SetActiveTab(ctx context.Context, tab int) {
	c.mu.Lock()
	c.activeTab = tab
	c.mu.Unlock()

	c.persist(ctx)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Results:   make(map[Kind]json.RawMessage, len(c.results)),
		Loading:   make(map[Kind]bool, len(c.loading)),
		LastError: c.lastError,
		ActiveTab: c.activeTab,
	}
	for k, v := range c.results {
		snap.Results[k] = v
	}
	for k, v := range c.loading {
		snap.Loading[k] = v
	}
	return snap
}

// persist writes the current results through to the cache. A failed write
// is logged and swallowed: the in-memory state stays authoritative.
func (c *Controller) persist(ctx context.Context) {
	c.mu.Lock()
	results := make(map[string]json.RawMessage, len(c.results))
	for k, v := range c.results {
		results[k.String()] = v
	}
	tab := c.activeTab
	c.mu.Unlock()

	if err := c.cache.Save(ctx, results, tab); err != nil {
		c.logger.Warn("Failed to persist analysis results", "error", err)
	}
}

// collapseError reduces the client error taxonomy to one user-facing
// message. Response bodies of failing statuses are never surfaced; the
// unreachable-backend message carries the underlying transport error.
func collapseError(err error) string {
	var transportErr *donorapi.TransportError
	if errors.As(err, &transportErr) {
		return fmt.Sprintf("%s (%v)", msgBackendUnreachable, transportErr.Err)
	}
	return msgAnalysisFailed
}
