package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	return badger.Open(opts)
}

// BadgerRepository keeps JSON values under "<namespace>/<key>" in an embedded Badger DB.
type BadgerRepository[T any] struct {
	db     *badger.DB
	prefix []byte
}

func NewBadgerRepository[T any](db *badger.DB, namespace string) *BadgerRepository[T] {
	return &BadgerRepository[T]{db: db, prefix: []byte(namespace + "/")}
}

func (b *BadgerRepository[T]) key(k string) []byte {
	return append(append([]byte{}, b.prefix...), k...)
}

func (b *BadgerRepository[T]) Get(_ context.Context, key string) (T, error) {
	var v T
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func (b *BadgerRepository[T]) Put(_ context.Context, key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(key), payload)
	})
}

func (b *BadgerRepository[T]) List(_ context.Context) ([]T, error) {
	items := make([]T, 0)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return err
			}
			items = append(items, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (b *BadgerRepository[T]) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(b.key(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(b.key(key))
	})
}
