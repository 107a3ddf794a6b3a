// Package store defines the document-store contract the core is written
// against: schema-less collections with point reads, filtered queries,
// merge writes, batched multi-document commits and live snapshot
// subscriptions. Implementations decide durability and delivery timing;
// callers may only assume eventual consistency.
package store

import "context"

// Document is one schema-less record. Values are JSON-compatible:
// strings, bools, int64/float64 numbers and []string sets.
type Document map[string]any

// Predicate filters documents in queries and subscriptions.
type Predicate func(Document) bool

// OrderBy sorts query results by one field.
type OrderBy struct {
	Field string
	Desc  bool
}

// Snapshot is one full delivery of a subscription: the entire current
// result set of the subscribed query, internally consistent.
type Snapshot struct {
	Docs []Document
}

// Batch stages multiple writes that commit together. A failed commit
// leaves none of the staged operations applied.
type Batch interface {
	Set(collection, id string, fields Document, merge bool)
	Delete(collection, id string)
	Commit() error
}

// DocumentStore is the storage collaborator of the messaging and loan
// workflow core.
type DocumentStore interface {
	// Get returns the document or ErrNotFound.
	Get(collection, id string) (Document, error)

	// Query runs a one-shot filtered read. A nil predicate matches all.
	Query(collection string, pred Predicate, order *OrderBy) ([]Document, error)

	// Subscribe delivers a fresh Snapshot of the query on every change
	// to the collection, starting with the current state. The channel is
	// closed and the listener released when ctx is cancelled.
	Subscribe(ctx context.Context, collection string, pred Predicate, order *OrderBy) (<-chan Snapshot, error)

	// Set writes a document. With merge, absent fields keep their
	// stored values; without, the document is replaced.
	Set(collection, id string, fields Document, merge bool) error

	// SetIf merges fields only if the stored document currently has
	// field == expect, atomically. Returns ErrConflict otherwise and
	// ErrNotFound when the document does not exist.
	SetIf(collection, id, field string, expect any, fields Document) error

	// Delete removes a document. Deleting an absent id is not an error.
	Delete(collection, id string) error

	Batch() Batch
}
