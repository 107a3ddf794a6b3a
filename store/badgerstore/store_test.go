package badgerstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"bookswap/errors"
	"bookswap/store"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, slog.Default())
}

func Test_Set_Then_Get(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	doc := store.Document{"id": "d1", "content": "hello", "timestamp": int64(42), "read": false}
	req.NoError(s.Set("messages", "d1", doc, false))

	got, err := s.Get("messages", "d1")
	req.NoError(err)
	req.Equal("hello", store.String(got, "content"))
	req.Equal(int64(42), store.Int64(got, "timestamp"))
	req.False(store.Bool(got, "read"))
}

func Test_Get_Missing_Is_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("messages", "nope")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func Test_Merge_Preserves_Absent_Fields(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Set("chats", "c1", store.Document{
		"participants": []string{"alice", "bob"},
		"deletedFor":   []string{"bob"},
		"lastMessage":  "hi",
	}, false))
	req.NoError(s.Set("chats", "c1", store.Document{"lastMessage": "bye"}, true))

	got, err := s.Get("chats", "c1")
	req.NoError(err)
	req.Equal("bye", store.String(got, "lastMessage"))
	req.Equal([]string{"alice", "bob"}, store.Strings(got, "participants"))
	req.Equal([]string{"bob"}, store.Strings(got, "deletedFor"))
}

func Test_SetIf_Guards_Concurrent_Flips(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Set("books", "b1", store.Document{"isAvailable": true}, false))

	req.NoError(s.SetIf("books", "b1", "isAvailable", true, store.Document{"isAvailable": false}))
	err := s.SetIf("books", "b1", "isAvailable", true, store.Document{"isAvailable": false})
	req.ErrorIs(err, errors.ErrConflict)

	err = s.SetIf("books", "missing", "isAvailable", true, store.Document{"isAvailable": false})
	req.ErrorIs(err, errors.ErrNotFound)
}

func Test_Query_Orders_By_Field(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Set("messages", "m1", store.Document{"id": "m1", "timestamp": int64(300)}, false))
	req.NoError(s.Set("messages", "m2", store.Document{"id": "m2", "timestamp": int64(100)}, false))
	req.NoError(s.Set("messages", "m3", store.Document{"id": "m3", "timestamp": int64(200)}, false))

	asc, err := s.Query("messages", nil, &store.OrderBy{Field: "timestamp"})
	req.NoError(err)
	req.Equal([]string{"m2", "m3", "m1"}, ids(asc))

	desc, err := s.Query("messages", nil, &store.OrderBy{Field: "timestamp", Desc: true})
	req.NoError(err)
	req.Equal([]string{"m1", "m3", "m2"}, ids(desc))
}

func Test_Batch_Commits_All_Or_Nothing(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Set("messages", "m1", store.Document{"id": "m1"}, false))

	batch := s.Batch()
	batch.Delete("messages", "m1")
	batch.Set("messages", "m2", store.Document{"id": "m2"}, false)
	req.NoError(batch.Commit())

	_, err := s.Get("messages", "m1")
	req.ErrorIs(err, errors.ErrNotFound)
	_, err = s.Get("messages", "m2")
	req.NoError(err)
}

func Test_Subscribe_Delivers_Initial_And_Updates(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	req.NoError(s.Set("notifications", "n1", store.Document{"id": "n1", "timestamp": int64(1)}, false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snapshots, err := s.Subscribe(ctx, "notifications", nil, &store.OrderBy{Field: "timestamp"})
	req.NoError(err)

	first := nextSnapshot(t, snapshots)
	req.Equal([]string{"n1"}, ids(first.Docs))

	req.NoError(s.Set("notifications", "n2", store.Document{"id": "n2", "timestamp": int64(2)}, false))
	req.Eventually(func() bool {
		select {
		case snap := <-snapshots:
			return len(snap.Docs) == 2
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func Test_Subscribe_Cancel_Closes_And_Releases(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	snapshots, err := s.Subscribe(ctx, "notifications", nil, nil)
	req.NoError(err)

	nextSnapshot(t, snapshots)
	cancel()

	req.Eventually(func() bool {
		select {
		case _, open := <-snapshots:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	s.notifier.mu.Lock()
	remaining := len(s.notifier.subscribers["notifications"])
	s.notifier.mu.Unlock()
	req.Zero(remaining)
}

func nextSnapshot(t *testing.T, snapshots <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap := <-snapshots:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return store.Snapshot{}
	}
}

func ids(docs []store.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, store.String(doc, "id"))
	}
	return out
}
