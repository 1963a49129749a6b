package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Persisted state keys. They are read, written and cleared as a unit; no
// other code touches them.
const (
	stateKeyResults   = "aiAnalysisResults"
	stateKeyTimestamp = "aiAnalysisTimestamp"
	stateKeyActiveTab = "aiAnalysisActiveTab"
)

// ResultTTL bounds how long a stored analysis snapshot stays valid. An entry
// whose age reaches the TTL exactly is already expired.
const ResultTTL = time.Hour

// Entry is one analysis snapshot: every fetched result keyed by analysis
// kind, plus the tab the user was on. StoredAt is unix milliseconds at save
// time; the whole entry shares one timestamp.
type Entry struct {
	Results   map[string]json.RawMessage
	ActiveTab int
	StoredAt  int64
}

// StateStore persists small key/value state across restarts.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	DeleteState(ctx context.Context, keys ...string) error
}

// ResultCache stores analysis snapshots with a fixed TTL. Expiry is checked
// on read: Load clears an expired or unreadable entry before reporting a
// miss, so stale state never survives a lookup.
type ResultCache struct {
	store StateStore
	now   func() time.Time
}

func NewResultCache(store StateStore) *ResultCache {
	return &ResultCache{store: store, now: time.Now}
}

// Load returns the stored entry, or ok=false when nothing valid is stored.
func (c *ResultCache) Load(ctx context.Context) (Entry, bool, error) {
	raw, ok, err := c.store.GetState(ctx, stateKeyResults)
	if err != nil {
		return Entry{}, false, err
	}
	if !ok {
		return Entry{}, false, nil
	}

	ts, ok, err := c.store.GetState(ctx, stateKeyTimestamp)
	if err != nil {
		return Entry{}, false, err
	}
	storedAt, parseErr := strconv.ParseInt(ts, 10, 64)
	if !ok || parseErr != nil {
		return Entry{}, false, c.Clear(ctx)
	}
	if c.now().UnixMilli()-storedAt >= ResultTTL.Milliseconds() {
		return Entry{}, false, c.Clear(ctx)
	}

	var results map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return Entry{}, false, c.Clear(ctx)
	}

	entry := Entry{Results: results, StoredAt: storedAt}
	if tab, ok, err := c.store.GetState(ctx, stateKeyActiveTab); err != nil {
		return Entry{}, false, err
	} else if ok {
		if n, err := strconv.Atoi(tab); err == nil {
			entry.ActiveTab = n
		}
	}
	return entry, true, nil
}

// Save overwrites the stored entry as a whole and restarts the TTL clock.
func (c *ResultCache) Save(ctx context.Context, results map[string]json.RawMessage, activeTab int) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return err
	}
	if err := c.store.SetState(ctx, stateKeyResults, string(raw)); err != nil {
		return err
	}
	if err := c.store.SetState(ctx, stateKeyTimestamp, strconv.FormatInt(c.now().UnixMilli(), 10)); err != nil {
		return err
	}
	return c.store.SetState(ctx, stateKeyActiveTab, strconv.Itoa(activeTab))
}

// Clear drops the stored entry unconditionally.
func (c *ResultCache) Clear(ctx context.Context) error {
	return c.store.DeleteState(ctx, stateKeyResults, stateKeyTimestamp, stateKeyActiveTab)
}
