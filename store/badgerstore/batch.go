package badgerstore

import (
	"bookswap/store"

	"github.com/dgraph-io/badger/v4"
)

type batchOp struct {
	collection string
	id         string
	fields     store.Document
	merge      bool
	delete     bool
}

// batch stages writes and commits them in one badger transaction, so a
// reply-cascade delete or a multi-document update lands all-or-nothing.
type batch struct {
	store *Store
	ops   []batchOp
}

func (s *Store) Batch() store.Batch {
	return &batch{store: s}
}

func (b *batch) Set(collection, id string, fields store.Document, merge bool) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields, merge: merge})
}

func (b *batch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, delete: true})
}

func (b *batch) Commit() error {
	if len(b.ops) == 0 {
		return nil
	}
	err := b.store.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			if op.delete {
				if err := txn.Delete(key(op.collection, op.id)); err != nil {
					return err
				}
				continue
			}
			if err := setTxn(txn, op.collection, op.id, op.fields, op.merge); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return transient(err)
	}
	touched := make(map[string]struct{}, len(b.ops))
	for _, op := range b.ops {
		if _, seen := touched[op.collection]; seen {
			continue
		}
		touched[op.collection] = struct{}{}
		b.store.notifier.Changed(op.collection)
	}
	return nil
}
