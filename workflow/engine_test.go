package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"bookswap/domain"
	"bookswap/errors"
	"bookswap/repositories"
	"bookswap/store"
	"bookswap/store/badgerstore"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type harness struct {
	documents     store.DocumentStore
	notifications *repositories.NotificationRepository
	engine        *Engine
	book          domain.Book
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	documents := badgerstore.New(db, slog.Default())
	notifications := repositories.NewNotificationRepository(documents, slog.Default())
	h := &harness{
		documents:     documents,
		notifications: notifications,
		engine:        NewEngine(documents, notifications, slog.Default()),
		book:          domain.Book{ID: "book-1", Title: "Dune", OwnerID: "yvonne", IsAvailable: true},
	}
	require.NoError(t, documents.Set(CollectionBooks, h.book.ID, DocFromBook(h.book), false))
	return h
}

func (h *harness) requestLoan(t *testing.T, borrowerID string) domain.Notification {
	t.Helper()
	notification, err := h.engine.RequestLoan(borrowerID, h.book)
	require.NoError(t, err)
	return notification
}

func (h *harness) borrows(t *testing.T) []domain.BorrowRecord {
	t.Helper()
	docs, err := h.documents.Query(CollectionBorrows, nil, nil)
	require.NoError(t, err)
	records := make([]domain.BorrowRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, BorrowFromDoc(doc))
	}
	return records
}

func (h *harness) notificationsFor(t *testing.T, recipientID string) []domain.Notification {
	t.Helper()
	docs, err := h.documents.Query(repositories.CollectionNotifications, nil, nil)
	require.NoError(t, err)
	var out []domain.Notification
	for _, doc := range docs {
		n, err := h.notifications.Get(store.String(doc, "id"))
		require.NoError(t, err)
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

func Test_Accept_Runs_The_Full_Saga(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	request := h.requestLoan(t, "xavier")

	req.NoError(h.engine.Accept(context.Background(), "yvonne", request))

	_, err := h.notifications.Get(request.ID)
	req.ErrorIs(err, errors.ErrNotFound, "the request is consumed, not archived")

	bookDoc, err := h.documents.Get(CollectionBooks, h.book.ID)
	req.NoError(err)
	req.False(BookFromDoc(bookDoc).IsAvailable)

	records := h.borrows(t)
	req.Len(records, 1)
	req.Equal(h.book.ID, records[0].BookID)
	req.Equal("yvonne", records[0].OwnerID)
	req.Equal("xavier", records[0].BorrowerID)
	req.Equal(domain.BorrowStatusAccepted, records[0].Status)

	confirmations := h.notificationsFor(t, "xavier")
	req.Len(confirmations, 1)
	req.Equal(domain.NotificationLoanAccepted, confirmations[0].Type)
	req.Equal(h.book.ID, confirmations[0].BookID)

	pending, err := h.engine.PendingSagas()
	req.NoError(err)
	req.Empty(pending, "a completed saga leaves no marker")
}

func Test_Reject_Consumes_Request_And_Notifies(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	request := h.requestLoan(t, "xavier")

	req.NoError(h.engine.Reject(context.Background(), "yvonne", request))

	_, err := h.notifications.Get(request.ID)
	req.ErrorIs(err, errors.ErrNotFound)

	bookDoc, err := h.documents.Get(CollectionBooks, h.book.ID)
	req.NoError(err)
	req.True(BookFromDoc(bookDoc).IsAvailable, "rejecting never touches availability")

	req.Empty(h.borrows(t))

	confirmations := h.notificationsFor(t, "xavier")
	req.Len(confirmations, 1)
	req.Equal(domain.NotificationLoanRejected, confirmations[0].Type)
}

// Two requesters race for one book. The availability flip is a
// compare-and-set, so exactly one acceptance wins; the loser stops with
// a conflict after its request was already consumed.
func Test_Accept_Same_Book_Twice_Has_One_Winner(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	first := h.requestLoan(t, "xavier")
	second := h.requestLoan(t, "zelda")

	req.NoError(h.engine.Accept(context.Background(), "yvonne", first))

	err := h.engine.Accept(context.Background(), "yvonne", second)
	req.ErrorIs(err, errors.ErrPartialSaga)
	req.ErrorIs(err, errors.ErrConflict)

	var sagaErr *SagaError
	req.ErrorAs(err, &sagaErr)
	req.Equal(domain.StepBookUnavailable, sagaErr.FailedStep)
	req.Equal(domain.StepNotificationDeleted, sagaErr.Completed)

	req.Len(h.borrows(t), 1, "only the winner creates a borrow record")

	_, err = h.notifications.Get(second.ID)
	req.ErrorIs(err, errors.ErrNotFound, "the loser's request is still consumed, the documented trade-off")
}

func Test_Accept_Requires_A_Loan_Request(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	notification, err := h.notifications.Create(domain.Notification{
		RecipientID: "yvonne", SenderID: "xavier",
		Type: domain.NotificationLoanAccepted, BookID: h.book.ID,
	})
	req.NoError(err)

	err = h.engine.Accept(context.Background(), "yvonne", notification)
	req.ErrorIs(err, errors.ErrInvalidArgument)

	err = h.engine.Accept(context.Background(), "", notification)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

// failingStore refuses writes to one collection, simulating the store
// going away mid-saga.
type failingStore struct {
	store.DocumentStore
	failCollection string
}

func (f *failingStore) Set(collection, id string, fields store.Document, merge bool) error {
	if collection == f.failCollection {
		return fmt.Errorf("write refused: %w", errors.ErrTransientStore)
	}
	return f.DocumentStore.Set(collection, id, fields, merge)
}

func Test_Accept_Partial_Failure_Reports_Furthest_Step(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	request := h.requestLoan(t, "xavier")

	flaky := &failingStore{DocumentStore: h.documents, failCollection: CollectionBorrows}
	engine := NewEngine(flaky, h.notifications, slog.Default())

	err := engine.Accept(context.Background(), "yvonne", request)
	req.ErrorIs(err, errors.ErrPartialSaga)
	req.ErrorIs(err, errors.ErrTransientStore)

	var sagaErr *SagaError
	req.ErrorAs(err, &sagaErr)
	req.Equal(domain.StepBorrowCreated, sagaErr.FailedStep)
	req.Equal(domain.StepBookUnavailable, sagaErr.Completed)

	// committed steps stay committed: request consumed, book flipped
	_, err = h.notifications.Get(request.ID)
	req.ErrorIs(err, errors.ErrNotFound)
	bookDoc, err := h.documents.Get(CollectionBooks, h.book.ID)
	req.NoError(err)
	req.False(BookFromDoc(bookDoc).IsAvailable)
	req.Empty(h.borrows(t))

	// the marker survives for reconciliation
	pending, err := h.engine.PendingSagas()
	req.NoError(err)
	req.Len(pending, 1)
	req.Equal(request.ID, pending[0].NotificationID)
	req.Equal(domain.StepBookUnavailable, pending[0].Step)
}
