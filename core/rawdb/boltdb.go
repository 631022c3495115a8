package rawdb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// defaultBucket holds every key. Prefixes in schema.go separate record kinds.
var defaultBucket = []byte("merkledrop")

// BoltDB is a persistent key-value store backed by a single bbolt bucket.
// Every Put and Delete runs in its own fsynced transaction.
type BoltDB struct {
	path string
	db   *bolt.DB
}

// Open opens (or creates) the bbolt file at path. The parent directory is
// created if missing. Opening a file already held by another process fails
// after one second.
func Open(path string) (*BoltDB, error) {
	if path == "" {
		return nil, errors.New("rawdb: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("rawdb: create dir: %w", err)
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("rawdb: open bbolt: %w", err)
	}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(defaultBucket)
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("rawdb: create bucket: %w", err)
	}
	return &BoltDB{path: path, db: bdb}, nil
}

// Path returns the file the database was opened from.
func (b *BoltDB) Path() string { return b.path }

func (b *BoltDB) Has(key []byte) (bool, error) {
	var ok bool
	err := b.view(func(bkt *bolt.Bucket) error {
		ok = bkt.Get(key) != nil
		return nil
	})
	return ok, err
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := b.view(func(bkt *bolt.Bucket) error {
		v := bkt.Get(key)
		if v == nil {
			return ErrNotFound
		}
		// bbolt memory is only valid inside the transaction.
		val = append([]byte{}, v...)
		return nil
	})
	return val, err
}

func (b *BoltDB) Put(key, value []byte) error {
	if len(key) == 0 {
		return errors.New("rawdb: empty key")
	}
	// A stored empty value reads back as a non-nil empty slice, so Get can
	// treat nil as missing.
	return b.update(func(bkt *bolt.Bucket) error {
		return bkt.Put(key, append([]byte{}, value...))
	})
}

func (b *BoltDB) Delete(key []byte) error {
	return b.update(func(bkt *bolt.Bucket) error {
		return bkt.Delete(key)
	})
}

// Close releases the file lock.
func (b *BoltDB) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// NewIterator returns an iterator over all keys with the given prefix. The
// range is copied out in a single read transaction.
func (b *BoltDB) NewIterator(prefix []byte) Iterator {
	var items []kv
	_ = b.view(func(bkt *bolt.Bucket) error {
		c := bkt.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			items = append(items, kv{key: append([]byte{}, k...), value: append([]byte{}, v...)})
		}
		return nil
	})
	return newSliceIterator(items)
}

func (b *BoltDB) view(fn func(*bolt.Bucket) error) error {
	err := b.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(defaultBucket))
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

func (b *BoltDB) update(fn func(*bolt.Bucket) error) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(defaultBucket))
	})
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}
