package storage

import (
	"context"
	"path/filepath"
	"testing"

	apperrors "estate-agent/errors"
)

func TestBoltStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "sessions/u-1", []byte(`[{"id":"s1"}]`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "sessions/u-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != `[{"id":"s1"}]` {
		t.Errorf("Get() = %q, want stored blob", got)
	}

	if _, err := store.Get(ctx, "sessions/u-2"); !apperrors.IsNotFound(err) {
		t.Errorf("Get() missing key error = %v, want ErrNotFound", err)
	}
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	ctx := context.Background()

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	if err := store.Put(ctx, IdentityKey, []byte(`{"id":"u-1"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, IdentityKey)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got) != `{"id":"u-1"}` {
		t.Errorf("Get() after reopen = %q, want persisted blob", got)
	}
}

func TestBoltStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")
	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "k"); !apperrors.IsNotFound(err) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete() of absent key error = %v, want nil", err)
	}
}
