// Package workflow orchestrates the loan decision sagas. There is no
// cross-collection transaction: each step commits on its own, in order,
// and a furthest-completed-step marker is persisted between steps so a
// partial failure can be reconciled later.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookswap/domain"
	"bookswap/errors"
	"bookswap/repositories"
	"bookswap/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	CollectionBooks     = "books"
	CollectionBorrows   = "borrows"
	CollectionLoanSagas = "loan_sagas"
)

// Engine runs the accept and reject workflows. It holds the
// notification repository as its capability to consume loan requests
// and emit decision notifications; books, borrows and saga markers it
// writes through the store directly.
type Engine struct {
	store         store.DocumentStore
	notifications repositories.INotificationRepository
	log           *slog.Logger
	now           func() time.Time
}

func NewEngine(documents store.DocumentStore, notifications repositories.INotificationRepository, log *slog.Logger) *Engine {
	return &Engine{store: documents, notifications: notifications, log: log, now: time.Now}
}

// RequestLoan is the borrower's side: it emits the LOAN_REQUEST
// notification the owner later decides on.
func (e *Engine) RequestLoan(borrowerID string, book domain.Book) (domain.Notification, error) {
	if borrowerID == "" || book.ID == "" || book.OwnerID == "" {
		return domain.Notification{}, fmt.Errorf("borrower, book and owner ids required: %w", errors.ErrInvalidArgument)
	}
	return e.notifications.Create(domain.Notification{
		RecipientID: book.OwnerID,
		SenderID:    borrowerID,
		Type:        domain.NotificationLoanRequest,
		BookID:      book.ID,
		Title:       book.Title,
		Message:     fmt.Sprintf("wants to borrow %q", book.Title),
	})
}

// Accept runs the four-step acceptance saga. Step N starts only after
// step N-1's write is acknowledged. The request notification is
// consumed first and never restored, so a later failure leaves a
// SagaError naming the furthest committed step instead of a retryable
// duplicate request. Concurrent accepts on one book race on the
// availability flip: exactly one wins, the rest stop with ErrConflict.
func (e *Engine) Accept(ctx context.Context, ownerID string, notification domain.Notification) error {
	if err := e.checkDecision(ownerID, notification); err != nil {
		return err
	}
	saga := &run{engine: e, kind: domain.SagaAccept, notificationID: notification.ID}
	if err := saga.begin(ctx); err != nil {
		return err
	}

	if err := saga.step(ctx, domain.StepNotificationDeleted, func() error {
		return e.notifications.Delete(notification.ID)
	}); err != nil {
		return err
	}

	if err := saga.step(ctx, domain.StepBookUnavailable, func() error {
		return e.store.SetIf(CollectionBooks, notification.BookID,
			fieldIsAvailable, true, store.Document{fieldIsAvailable: false})
	}); err != nil {
		return err
	}

	if err := saga.step(ctx, domain.StepBorrowCreated, func() error {
		return e.createBorrow(notification, ownerID)
	}); err != nil {
		return err
	}

	if err := saga.step(ctx, domain.StepConfirmationSent, func() error {
		_, err := e.notifications.Create(domain.Notification{
			RecipientID: notification.SenderID,
			SenderID:    ownerID,
			Type:        domain.NotificationLoanAccepted,
			BookID:      notification.BookID,
			Title:       notification.Title,
			Message:     fmt.Sprintf("accepted your loan request for %q", notification.Title),
		})
		return err
	}); err != nil {
		return err
	}

	saga.finish()
	e.log.Info("loan accepted", "notification", notification.ID, "book", notification.BookID, "borrower", notification.SenderID)
	return nil
}

// Reject consumes the request and tells the requester. Two steps, same
// ordered-commit bookkeeping as Accept.
func (e *Engine) Reject(ctx context.Context, ownerID string, notification domain.Notification) error {
	if err := e.checkDecision(ownerID, notification); err != nil {
		return err
	}
	saga := &run{engine: e, kind: domain.SagaReject, notificationID: notification.ID}
	if err := saga.begin(ctx); err != nil {
		return err
	}

	if err := saga.step(ctx, domain.StepNotificationDeleted, func() error {
		return e.notifications.Delete(notification.ID)
	}); err != nil {
		return err
	}

	if err := saga.step(ctx, domain.StepConfirmationSent, func() error {
		_, err := e.notifications.Create(domain.Notification{
			RecipientID: notification.SenderID,
			SenderID:    ownerID,
			Type:        domain.NotificationLoanRejected,
			BookID:      notification.BookID,
			Title:       notification.Title,
			Message:     fmt.Sprintf("declined your loan request for %q", notification.Title),
		})
		return err
	}); err != nil {
		return err
	}

	saga.finish()
	e.log.Info("loan rejected", "notification", notification.ID, "book", notification.BookID, "requester", notification.SenderID)
	return nil
}

func (e *Engine) checkDecision(ownerID string, notification domain.Notification) error {
	if ownerID == "" {
		return fmt.Errorf("owner id required: %w", errors.ErrInvalidArgument)
	}
	if notification.ID == "" || notification.SenderID == "" || notification.BookID == "" {
		return fmt.Errorf("notification id, sender and book required: %w", errors.ErrInvalidArgument)
	}
	if notification.Type != domain.NotificationLoanRequest {
		return fmt.Errorf("notification %s is %s, not a loan request: %w",
			notification.ID, notification.Type, errors.ErrInvalidArgument)
	}
	return nil
}

func (e *Engine) createBorrow(notification domain.Notification, ownerID string) error {
	record := domain.BorrowRecord{
		ID:         uuid.New().String(),
		BookID:     notification.BookID,
		OwnerID:    ownerID,
		BorrowerID: notification.SenderID,
		BorrowDate: e.now().UTC(),
		Status:     domain.BorrowStatusAccepted,
	}
	return e.store.Set(CollectionBorrows, record.ID, docFromBorrow(record), false)
}

// PendingSagas lists the persisted markers of sagas that stopped before
// completion, for operator reconciliation.
func (e *Engine) PendingSagas() ([]domain.LoanSaga, error) {
	docs, err := e.store.Query(CollectionLoanSagas, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query sagas: %w", err)
	}
	return lo.Map(docs, func(doc store.Document, _ int) domain.LoanSaga {
		return sagaFromDoc(doc)
	}), nil
}
