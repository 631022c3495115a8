// Package rawdb provides the low-level key/value storage used to persist
// redemption state.
//
// Each record type uses a distinct single-byte key prefix so several kinds of
// data can share one store without collisions.
package rawdb

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("rawdb: database closed")
)

// KeyValueReader wraps the Has and Get methods of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing data store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// KeyValueStore combines read and write access to a backing data store.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Close() error
}

// Iterator iterates over a database's key/value pairs in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// KeyValueIterator adds prefix iteration to a store.
type KeyValueIterator interface {
	KeyValueStore
	NewIterator(prefix []byte) Iterator
}

// sliceIterator walks a pre-collected, sorted set of pairs. Both MemoryDB and
// BoltDB snapshot the matching range up front so an open iterator never holds
// a lock or transaction.
type sliceIterator struct {
	items []kv
	pos   int
}

type kv struct {
	key, value []byte
}

func newSliceIterator(items []kv) *sliceIterator {
	return &sliceIterator{items: items, pos: -1}
}

func (it *sliceIterator) Next() bool {
	if it.pos < len(it.items) {
		it.pos++
	}
	return it.pos < len(it.items)
}

func (it *sliceIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].key
}

func (it *sliceIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos].value
}

func (it *sliceIterator) Release() { it.items = nil }
