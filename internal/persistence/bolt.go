package persistence

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("kgsearchd")

// BoltBackend stores keys in a single-file embedded B-tree database, adopted
// from the example pack's use of go.etcd.io/bbolt as the standard pure-Go
// embedded key/value store.
type BoltBackend struct {
	db *bbolt.DB
}

// NewBoltBackend opens (creating if absent) a bbolt database at path.
func NewBoltBackend(path string) (*BoltBackend, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("persistence: open bolt db %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: init bolt bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Name() string { return "bolt" }

func (b *BoltBackend) Write(_ context.Context, key string, data []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), data)
	})
}

func (b *BoltBackend) Read(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("persistence: bolt read %q: %w", key, err)
	}
	return out, out != nil, nil
}

func (b *BoltBackend) Probe(context.Context) time.Duration {
	start := time.Now()
	_ = b.db.View(func(*bbolt.Tx) error { return nil })
	return time.Since(start)
}

func (b *BoltBackend) Close() error { return b.db.Close() }
