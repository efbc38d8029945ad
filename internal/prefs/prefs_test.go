package prefs

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := store.Load(ctx, "closing:shift-1", "step"); err != nil || ok {
		t.Fatalf("load empty: ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, "closing:shift-1", "step", "collections"); err != nil {
		t.Fatalf("save: %v", err)
	}
	value, ok, err := store.Load(ctx, "closing:shift-1", "step")
	if err != nil || !ok || value != "collections" {
		t.Fatalf("load = %q ok=%v err=%v", value, ok, err)
	}

	if err := store.Delete(ctx, "closing:shift-1", "step"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "closing:shift-1", "step"); ok {
		t.Fatal("value survived delete")
	}
}

func TestMemoryStoreDeleteScope(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Save(ctx, "closing:shift-1", "step", "summary")
	_ = store.Save(ctx, "closing:shift-1", "note", "x")
	_ = store.Save(ctx, "closing:shift-2", "step", "collections")

	if err := store.DeleteScope(ctx, "closing:shift-1"); err != nil {
		t.Fatalf("delete scope: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "closing:shift-1", "step"); ok {
		t.Fatal("scope not cleared")
	}
	if _, ok, _ := store.Load(ctx, "closing:shift-2", "step"); !ok {
		t.Fatal("other scope lost")
	}
}
