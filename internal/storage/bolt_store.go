package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	itemsBucket      = "items"
	expiryValueBytes = 8
)

var errEmptyKey = errors.New("endpoint id and item id are required")

// boltStore keeps one nested bucket per endpoint under the items bucket.
// Values are the big-endian unix expiry of the entry.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	itemTTL         time.Duration
	cleanupInterval time.Duration
}

func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(itemsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		itemTTL:         opts.ItemTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenItem reports whether the item is recorded and not yet expired.
// Expired entries found on lookup are removed.
func (b *boltStore) SeenItem(endpointID, itemID string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}
	endpointID, itemID = strings.TrimSpace(endpointID), strings.TrimSpace(itemID)
	if endpointID == "" || itemID == "" {
		return false, errEmptyKey
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}

	var seen bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		endpoint, err := endpointBucket(tx, endpointID, false)
		if err != nil || endpoint == nil {
			return err
		}

		key := []byte(itemID)
		value := endpoint.Get(key)
		if value == nil {
			return nil
		}
		if expiry, ok := decodeExpiry(value); ok && expiry.After(now) {
			seen = true
			return nil
		}
		return endpoint.Delete(key)
	})
	return seen, err
}

// MarkItem records the item with a fresh expiry.
func (b *boltStore) MarkItem(endpointID, itemID string) error {
	if b == nil || b.db == nil {
		return nil
	}
	endpointID, itemID = strings.TrimSpace(endpointID), strings.TrimSpace(itemID)
	if endpointID == "" || itemID == "" {
		return errEmptyKey
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		endpoint, err := endpointBucket(tx, endpointID, true)
		if err != nil {
			return err
		}
		buf := make([]byte, expiryValueBytes)
		binary.BigEndian.PutUint64(buf, uint64(now.Add(b.itemTTL).Unix()))
		return endpoint.Put([]byte(itemID), buf)
	})
}

func endpointBucket(tx *bolt.Tx, endpointID string, create bool) (*bolt.Bucket, error) {
	root := tx.Bucket([]byte(itemsBucket))
	if root == nil {
		return nil, fmt.Errorf("items bucket missing")
	}
	if !create {
		return root.Bucket([]byte(endpointID)), nil
	}
	return root.CreateBucketIfNotExists([]byte(endpointID))
}

// maybeCleanupExpired sweeps every endpoint bucket at most once per cleanup interval.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(itemsBucket))
		if root == nil {
			return fmt.Errorf("items bucket missing")
		}
		return root.ForEachBucket(func(name []byte) error {
			return sweepBucket(root.Bucket(name), now)
		})
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func sweepBucket(bucket *bolt.Bucket, now time.Time) error {
	if bucket == nil {
		return nil
	}
	cursor := bucket.Cursor()
	for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
		if expiry, ok := decodeExpiry(v); !ok || !expiry.After(now) {
			if err := cursor.Delete(); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) != expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
