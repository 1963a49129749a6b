package memory

import (
	"context"
	"testing"
	"time"

	ports "donorflow/internal/report"
)

func TestStoreAppendEntry(t *testing.T) {
	store := New()

	ref, err := store.AppendEntry(context.Background(), ports.Entry{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Kind:      "crm",
		Reason:    "periodic",
		Outcome:   "ok",
		Bytes:     2048,
	})
	if err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries() len = %d, want 1", len(entries))
	}
	if entries[0].Kind != "crm" || entries[0].Outcome != "ok" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestStoreEntriesReturnsCopy(t *testing.T) {
	store := New()
	store.AppendEntry(context.Background(), ports.Entry{Kind: "crm"})

	entries := store.Entries()
	entries[0].Kind = "mutated"

	if store.Entries()[0].Kind != "crm" {
		t.Error("Entries() exposed internal slice")
	}
}
