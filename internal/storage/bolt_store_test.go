package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts Options) *boltStore {
	t.Helper()
	raw, err := openBolt(filepath.Join(t.TempDir(), "nested", "cache.db"), normalizeOptions(opts))
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := raw.(*boltStore)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStoreMarksAndExpiresItems(t *testing.T) {
	store := openTestStore(t, Options{ItemTTL: time.Second, CleanupInterval: time.Second})

	seen, err := store.SeenItem("courses", "1")
	if err != nil || seen {
		t.Fatalf("expected unseen item, seen=%v err=%v", seen, err)
	}

	if err := store.MarkItem("courses", "1"); err != nil {
		t.Fatalf("MarkItem: %v", err)
	}

	seen, err = store.SeenItem("courses", "1")
	if err != nil || !seen {
		t.Fatalf("expected item marked as seen, got seen=%v err=%v", seen, err)
	}

	store.lastCleanup.Store(time.Now().Add(-2 * time.Second).Unix())
	time.Sleep(1100 * time.Millisecond)

	seen, err = store.SeenItem("courses", "1")
	if err != nil {
		t.Fatalf("SeenItem after expiry: %v", err)
	}
	if seen {
		t.Fatalf("expected entry to expire and be removed")
	}
}

func TestBoltStoreScopesItemsByEndpoint(t *testing.T) {
	store := openTestStore(t, Options{})

	if err := store.MarkItem("courses", "42"); err != nil {
		t.Fatalf("MarkItem: %v", err)
	}
	seen, err := store.SeenItem("users", "42")
	if err != nil {
		t.Fatalf("SeenItem: %v", err)
	}
	if seen {
		t.Fatalf("item ids must not leak across endpoints")
	}
}

func TestBoltStoreRejectsEmptyKeys(t *testing.T) {
	store := openTestStore(t, Options{})

	if err := store.MarkItem("courses", " "); err == nil {
		t.Fatalf("expected error for empty item id")
	}
	if _, err := store.SeenItem("", "1"); err == nil {
		t.Fatalf("expected error for empty endpoint id")
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.MarkItem("courses", "x"); err != nil {
		t.Fatalf("noop store MarkItem: %v", err)
	}
	if seen, _ := store.SeenItem("courses", "x"); seen {
		t.Fatalf("noop store never remembers items")
	}
}

func TestNewStoreRejectsUnknownType(t *testing.T) {
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected unsupported storage type error")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected missing path error")
	}
}
