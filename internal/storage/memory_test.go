package storage

import (
	"context"
	"testing"
)

func TestMemoryStoreState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := store.GetState(ctx, "missing"); ok {
		t.Error("GetState on empty store returned ok")
	}

	if err := store.SetState(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if err := store.SetState(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetState() overwrite error = %v", err)
	}

	v, ok, err := store.GetState(ctx, "k")
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !ok || v != "v2" {
		t.Errorf("GetState() = %q, %v, want v2, true", v, ok)
	}

	if err := store.DeleteState(ctx, "k", "missing"); err != nil {
		t.Fatalf("DeleteState() error = %v", err)
	}
	if _, ok, _ := store.GetState(ctx, "k"); ok {
		t.Error("GetState after delete returned ok")
	}
}

func TestMemoryStoreSources(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	uploads := []UploadedSource{
		{Filename: "jan.xlsx", Source: "halyk", Dataset: DatasetExcel2025, RecordCount: 120},
		{Filename: "feb.xlsx", Source: "halyk", Dataset: DatasetExcel2025, RecordCount: 80},
		{Filename: "crm.xlsx", Source: "kaspi", Dataset: DatasetCRM, RecordCount: 310},
	}
	for _, u := range uploads {
		if _, err := store.RecordUpload(ctx, u); err != nil {
			t.Fatalf("RecordUpload(%s) error = %v", u.Filename, err)
		}
	}

	list, err := store.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListSources() len = %d, want 3", len(list))
	}
	if list[0].Filename != "crm.xlsx" {
		t.Errorf("newest first: got %s", list[0].Filename)
	}

	t.Run("delete by filename", func(t *testing.T) {
		n, err := store.DeleteByFilename(ctx, "jan.xlsx")
		if err != nil {
			t.Fatalf("DeleteByFilename() error = %v", err)
		}
		if n != 1 {
			t.Errorf("DeleteByFilename() = %d, want 1", n)
		}
	})

	t.Run("delete by source label", func(t *testing.T) {
		n, err := store.DeleteBySourceLabel(ctx, "halyk")
		if err != nil {
			t.Fatalf("DeleteBySourceLabel() error = %v", err)
		}
		if n != 1 {
			t.Errorf("DeleteBySourceLabel() = %d, want 1", n)
		}
	})

	t.Run("delete by dataset", func(t *testing.T) {
		n, err := store.DeleteByDataset(ctx, DatasetCRM)
		if err != nil {
			t.Fatalf("DeleteByDataset() error = %v", err)
		}
		if n != 1 {
			t.Errorf("DeleteByDataset() = %d, want 1", n)
		}
		list, _ := store.ListSources(ctx)
		if len(list) != 0 {
			t.Errorf("registry not empty after deletes: %v", list)
		}
	})
}
