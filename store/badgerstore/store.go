// Package badgerstore implements the store contract on BadgerDB.
// Every document lives under a "{collection}:{id}" key; change
// notifications are fanned out in-process after each committed write.
package badgerstore

import (
	"fmt"
	"log/slog"
	"sort"

	"bookswap/errors"
	"bookswap/store"

	"github.com/dgraph-io/badger/v4"
)

type Store struct {
	db       *badger.DB
	log      *slog.Logger
	notifier *notifier
}

func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{db: db, log: log, notifier: newNotifier(log)}
}

func key(collection, id string) []byte {
	return []byte(collection + ":" + id)
}

func (s *Store) Get(collection, id string) (store.Document, error) {
	var doc store.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			doc, err = decode(val)
			return err
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, transient(err)
	}
	return doc, nil
}

func (s *Store) Query(collection string, pred store.Predicate, order *store.OrderBy) ([]store.Document, error) {
	var docs []store.Document
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		docs, err = queryTxn(txn, collection, pred)
		return err
	})
	if err != nil {
		return nil, transient(err)
	}
	sortDocs(docs, order)
	return docs, nil
}

// queryTxn runs the prefix scan inside the caller's transaction so a
// snapshot read stays internally consistent.
func queryTxn(txn *badger.Txn, collection string, pred store.Predicate) ([]store.Document, error) {
	prefix := []byte(collection + ":")
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	var docs []store.Document
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var doc store.Document
		err := it.Item().Value(func(val []byte) error {
			var err error
			doc, err = decode(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(doc) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func sortDocs(docs []store.Document, order *store.OrderBy) {
	if order == nil {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		cmp := compareField(docs[i], docs[j], order.Field)
		if order.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func (s *Store) Set(collection, id string, fields store.Document, merge bool) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return setTxn(txn, collection, id, fields, merge)
	})
	if err != nil {
		return transient(err)
	}
	s.notifier.Changed(collection)
	return nil
}

func setTxn(txn *badger.Txn, collection, id string, fields store.Document, merge bool) error {
	doc := fields
	if merge {
		item, err := txn.Get(key(collection, id))
		switch err {
		case nil:
			var existing store.Document
			if err = item.Value(func(val []byte) error {
				existing, err = decode(val)
				return err
			}); err != nil {
				return err
			}
			for k, v := range fields {
				existing[k] = v
			}
			doc = existing
		case badger.ErrKeyNotFound:
			// merge into nothing is a plain create
		default:
			return err
		}
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	return txn.Set(key(collection, id), data)
}

func (s *Store) SetIf(collection, id, field string, expect any, fields store.Document) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key(collection, id))
		if err != nil {
			return err
		}
		var existing store.Document
		if err = item.Value(func(val []byte) error {
			existing, err = decode(val)
			return err
		}); err != nil {
			return err
		}
		if !equalValue(existing[field], expect) {
			return errors.ErrConflict
		}
		return setTxn(txn, collection, id, fields, true)
	})
	switch {
	case err == badger.ErrKeyNotFound:
		return fmt.Errorf("%s/%s: %w", collection, id, errors.ErrNotFound)
	case err == errors.ErrConflict:
		return fmt.Errorf("%s/%s field %s changed: %w", collection, id, field, errors.ErrConflict)
	case err != nil:
		return transient(err)
	}
	s.notifier.Changed(collection)
	return nil
}

func (s *Store) Delete(collection, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(collection, id))
	})
	if err != nil {
		return transient(err)
	}
	s.notifier.Changed(collection)
	return nil
}

// transient classifies any badger failure as retryable for the caller.
// NotFound and Conflict are decided before this point.
func transient(err error) error {
	return fmt.Errorf("badger: %v: %w", err, errors.ErrTransientStore)
}
