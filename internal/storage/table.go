// Package storage holds the badger-backed index tables. Each table owns a
// key prefix inside a shared database and stores JSON records.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var ErrNotFound = errors.New("record not found")

// OpenDB opens the index database at dir, or an in-memory one when dir is
// empty.
func OpenDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return db, nil
}

// Table maps string ids to records of type T. Keys are "<prefix>/<id>".
type Table[T any] struct {
	db     *badger.DB
	prefix []byte
	id     func(*T) string
}

// NewTable returns the table stored under prefix. id extracts the key of a
// record.
func NewTable[T any](db *badger.DB, prefix string, id func(*T) string) *Table[T] {
	return &Table[T]{
		db:     db,
		prefix: []byte(prefix + "/"),
		id:     id,
	}
}

func (t *Table[T]) key(id string) []byte {
	k := make([]byte, 0, len(t.prefix)+len(id))
	k = append(k, t.prefix...)
	return append(k, id...)
}

// Put stores rec, replacing any record with the same id.
func (t *Table[T]) Put(rec *T) error {
	id := t.id(rec)
	if id == "" {
		return errors.New("record id cannot be empty")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", id, err)
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.key(id), data)
	})
}

func (t *Table[T]) Get(id string) (*T, error) {
	var rec T
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(t.key(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case err != nil:
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return &rec, nil
}

func (t *Table[T]) Has(id string) (bool, error) {
	err := t.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(t.key(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Keys returns the ids beginning with idPrefix, in key order.
func (t *Table[T]) Keys(idPrefix string) ([]string, error) {
	var ids []string
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := t.key(idPrefix)
		for it.Seek(seek); it.ValidForPrefix(seek); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(t.prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return ids, nil
}

// All decodes every record in the table, in key order.
func (t *Table[T]) All() ([]T, error) {
	var out []T
	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(t.prefix); it.ValidForPrefix(t.prefix); it.Next() {
			var rec T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return out, nil
}
