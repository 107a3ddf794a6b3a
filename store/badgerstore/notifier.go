package badgerstore

import (
	"context"
	"log/slog"
	"sync"

	"bookswap/store"
)

// notifier fans committed-write signals out to the live subscriptions
// of a collection. Each subscription re-runs its query per signal and
// conflates: a slow consumer sees fewer, newer snapshots, never stale
// ones queueing up.
type notifier struct {
	mu          sync.Mutex
	log         *slog.Logger
	subscribers map[string][]chan struct{}
}

func newNotifier(log *slog.Logger) *notifier {
	return &notifier{log: log, subscribers: make(map[string][]chan struct{})}
}

func (n *notifier) Changed(collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, kick := range n.subscribers[collection] {
		select {
		case kick <- struct{}{}:
		default:
			// a signal is already pending, the next snapshot covers this change
		}
	}
}

func (n *notifier) register(collection string) chan struct{} {
	kick := make(chan struct{}, 1)
	n.mu.Lock()
	n.subscribers[collection] = append(n.subscribers[collection], kick)
	n.mu.Unlock()
	return kick
}

func (n *notifier) unregister(collection string, kick chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	remaining := n.subscribers[collection][:0]
	for _, c := range n.subscribers[collection] {
		if c != kick {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		delete(n.subscribers, collection)
		return
	}
	n.subscribers[collection] = remaining
}

// Subscribe starts a live query. The first snapshot is the current
// state; one fresh snapshot follows every committed change to the
// collection. The output channel closes once ctx is done and the
// listener is always released, error paths included.
func (s *Store) Subscribe(ctx context.Context, collection string, pred store.Predicate, order *store.OrderBy) (<-chan store.Snapshot, error) {
	out := make(chan store.Snapshot, 1)
	kick := s.notifier.register(collection)

	initial, err := s.Query(collection, pred, order)
	if err != nil {
		s.notifier.unregister(collection, kick)
		close(out)
		return nil, err
	}

	go func() {
		defer s.notifier.unregister(collection, kick)
		defer close(out)

		deliver(ctx, out, store.Snapshot{Docs: initial})
		for {
			select {
			case <-ctx.Done():
				return
			case <-kick:
				docs, err := s.Query(collection, pred, order)
				if err != nil {
					s.log.Warn("live query failed, keeping last snapshot",
						"collection", collection, "error", err)
					continue
				}
				deliver(ctx, out, store.Snapshot{Docs: docs})
			}
		}
	}()
	return out, nil
}

// deliver replaces a pending snapshot instead of blocking behind it.
func deliver(ctx context.Context, out chan store.Snapshot, snap store.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case out <- snap:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
