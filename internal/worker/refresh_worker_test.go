package worker

import (
	"context"
	"encoding/json"
	"testing"

	"donorflow/internal/amqp"
	"donorflow/internal/analysis"
	"donorflow/internal/cache"
	"donorflow/internal/donorapi"
	"donorflow/internal/report/memory"
	"donorflow/internal/storage"
)

type stubFetcher struct {
	crm        json.RawMessage
	excel      json.RawMessage
	comparison json.RawMessage
	err        error
}

func (f *stubFetcher) AnalyzeCRM(context.Context) (json.RawMessage, error) {
	return f.crm, f.err
}

func (f *stubFetcher) AnalyzeExcel2025(context.Context) (json.RawMessage, error) {
	return f.excel, f.err
}

func (f *stubFetcher) ComparePeriods(context.Context) (json.RawMessage, error) {
	return f.comparison, f.err
}

func newTestWorker(t *testing.T, fetcher analysis.Fetcher) (*RefreshWorker, *analysis.Controller, *memory.Store) {
	t.Helper()
	rc := cache.NewResultCache(storage.NewMemoryStore())
	ctrl := analysis.NewController(context.Background(), fetcher, rc, nil)
	reporter := memory.New()
	return NewRefreshWorker(ctrl, reporter), ctrl, reporter
}

func TestHandleRefreshMessage(t *testing.T) {
	fetcher := &stubFetcher{
		crm:   json.RawMessage(`{"a":1}`),
		excel: json.RawMessage(`{"b":22}`),
	}
	worker, ctrl, reporter := newTestWorker(t, fetcher)

	msg := amqp.NewRefreshMessage([]string{"crm", "excel2025"}, "post-upload")
	if err := worker.HandleRefreshMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleRefreshMessage() error = %v", err)
	}

	snap := ctrl.Snapshot()
	if _, ok := snap.Results[analysis.KindCRM]; !ok {
		t.Error("crm not refreshed")
	}
	if _, ok := snap.Results[analysis.KindExcel2025]; !ok {
		t.Error("excel2025 not refreshed")
	}
	if _, ok := snap.Results[analysis.KindComparison]; ok {
		t.Error("comparison refreshed despite not being requested")
	}

	entries := reporter.Entries()
	if len(entries) != 2 {
		t.Fatalf("refresh log has %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Outcome != "ok" {
			t.Errorf("entry %s outcome = %q", e.Kind, e.Outcome)
		}
		if e.Reason != "post-upload" {
			t.Errorf("entry %s reason = %q", e.Kind, e.Reason)
		}
		if e.Bytes == 0 {
			t.Errorf("entry %s bytes = 0", e.Kind)
		}
	}
}

func TestHandleRefreshMessageEmptyKindsMeansAll(t *testing.T) {
	fetcher := &stubFetcher{
		crm:        json.RawMessage(`{}`),
		excel:      json.RawMessage(`{}`),
		comparison: json.RawMessage(`{}`),
	}
	worker, ctrl, _ := newTestWorker(t, fetcher)

	if err := worker.HandleRefreshMessage(context.Background(), amqp.NewRefreshMessage(nil, "periodic")); err != nil {
		t.Fatalf("HandleRefreshMessage() error = %v", err)
	}
	if got := len(ctrl.Snapshot().Results); got != 3 {
		t.Errorf("refreshed %d kinds, want 3", got)
	}
}

func TestHandleRefreshMessageFailureIsReturned(t *testing.T) {
	fetcher := &stubFetcher{err: &donorapi.StatusError{StatusCode: 500}}
	worker, _, reporter := newTestWorker(t, fetcher)

	err := worker.HandleRefreshMessage(context.Background(), amqp.NewRefreshMessage([]string{"crm"}, "post-upload"))
	if err == nil {
		t.Fatal("HandleRefreshMessage() expected error so the message gets requeued")
	}

	entries := reporter.Entries()
	if len(entries) != 1 {
		t.Fatalf("refresh log has %d entries, want 1", len(entries))
	}
	if entries[0].Outcome == "ok" {
		t.Errorf("outcome = %q, want failure text", entries[0].Outcome)
	}
}

func TestParseKinds(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  int
	}{
		{"empty means all", nil, 3},
		{"known kinds", []string{"crm", "comparison"}, 2},
		{"unknown kinds dropped", []string{"crm", "bogus"}, 1},
		{"all unknown falls back to all", []string{"bogus"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseKinds(tt.names); len(got) != tt.want {
				t.Errorf("parseKinds(%v) = %v, want %d kinds", tt.names, got, tt.want)
			}
		})
	}
}
