package localstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/V4T54L/medallion/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := New(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestStore_PutGetList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	files := map[string]string{
		"bronze/logs_20240101_000000.json":             "a",
		"bronze/logs_20240102_000000.json":             "bb",
		"silver/year=2024/month=1/day=2/part-1.parquet": "ccc",
	}
	for key, body := range files {
		if err := store.Put(ctx, key, []byte(body)); err != nil {
			t.Fatalf("Put(%s) failed: %v", key, err)
		}
	}

	got, err := store.Get(ctx, "bronze/logs_20240102_000000.json")
	if err != nil || string(got) != "bb" {
		t.Errorf("unexpected Get result %q, %v", got, err)
	}

	objects, err := store.List(ctx, "bronze/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 bronze objects, got %d", len(objects))
	}
	if objects[0].Key != "bronze/logs_20240101_000000.json" || objects[1].Size != 2 {
		t.Errorf("unexpected listing: %+v", objects)
	}

	objects, err = store.List(ctx, "silver/")
	if err != nil || len(objects) != 1 {
		t.Errorf("expected 1 silver object, got %d (%v)", len(objects), err)
	}
}

func TestStore_Overwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.Put(ctx, "gold/x", []byte("old"))
	if err := store.Put(ctx, "gold/x", []byte("new")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, _ := store.Get(ctx, "gold/x")
	if string(got) != "new" {
		t.Errorf("expected replaced content, got %q", got)
	}
}

func TestStore_SkipsTempFiles(t *testing.T) {
	store := newTestStore(t)
	dir := filepath.Join(store.root, "silver")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, tempPrefix+"123"), []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	objects, err := store.List(context.Background(), "silver/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("expected in-flight files to be hidden, got %+v", objects)
	}
}

func TestStore_Errors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "bronze/missing.json"); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	for _, key := range []string{"", "../escape", "/abs/path"} {
		if err := store.Put(ctx, key, []byte("x")); err == nil {
			t.Errorf("expected Put(%q) to be rejected", key)
		}
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := "silver/year=2024/month=3/day=15/part-1.parquet"
	if err := store.Put(ctx, key, []byte("PAR1")); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, domain.ErrObjectNotFound) {
		t.Errorf("expected the object to be gone, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("expected deleting a missing key to succeed, got %v", err)
	}
	if err := store.Delete(ctx, "../outside"); err == nil {
		t.Error("expected an invalid key to be rejected")
	}
}
