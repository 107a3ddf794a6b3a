package workflow

import (
	"context"
	"fmt"

	"bookswap/domain"
	"bookswap/errors"
	"bookswap/store"
)

// SagaError reports a saga that stopped mid-way: which step refused and
// which one last committed. Nothing is rolled back; the caller or ops
// tooling reconciles from here.
type SagaError struct {
	Kind           domain.SagaKind
	NotificationID string
	FailedStep     domain.SagaStep
	Completed      domain.SagaStep
	Err            error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("loan %s saga for notification %s failed at %s (last committed %s): %v",
		e.Kind, e.NotificationID, e.FailedStep, e.Completed, e.Err)
}

func (e *SagaError) Unwrap() []error {
	return []error{errors.ErrPartialSaga, e.Err}
}

// run tracks one saga execution and its persisted progress marker.
type run struct {
	engine         *Engine
	kind           domain.SagaKind
	notificationID string
	completed      domain.SagaStep
}

// begin persists the start marker. Nothing has committed yet, so a
// failure here aborts cleanly without a SagaError.
func (r *run) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.persist(); err != nil {
		return fmt.Errorf("start %s saga for %s: %w", r.kind, r.notificationID, err)
	}
	return nil
}

// step executes one saga step after the previous one was acknowledged.
// On failure it stops the run and surfaces a SagaError; the marker
// keeps the last committed step for reconciliation.
func (r *run) step(ctx context.Context, step domain.SagaStep, do func() error) error {
	if err := ctx.Err(); err != nil {
		return r.fail(step, err)
	}
	r.engine.log.Debug("saga step", "kind", r.kind, "notification", r.notificationID, "step", step.String())
	if err := do(); err != nil {
		return r.fail(step, err)
	}
	r.completed = step
	r.persist()
	return nil
}

func (r *run) fail(step domain.SagaStep, err error) error {
	sagaErr := &SagaError{
		Kind:           r.kind,
		NotificationID: r.notificationID,
		FailedStep:     step,
		Completed:      r.completed,
		Err:            err,
	}
	r.engine.log.Error("saga stopped", "kind", r.kind, "notification", r.notificationID,
		"failedStep", step.String(), "completed", r.completed.String(), "error", err)
	return sagaErr
}

// persist records the furthest committed step. The marker is
// bookkeeping for reconciliation, so its own write failure is logged
// and does not stop a saga whose real step already committed.
func (r *run) persist() error {
	doc := docFromSaga(domain.LoanSaga{
		NotificationID: r.notificationID,
		Kind:           r.kind,
		Step:           r.completed,
		UpdatedAt:      r.engine.now().UTC(),
	})
	err := r.engine.store.Set(CollectionLoanSagas, r.notificationID, doc, false)
	if err != nil && r.completed > domain.StepNone {
		r.engine.log.Warn("saga marker write failed", "notification", r.notificationID, "error", err)
		return nil
	}
	return err
}

// finish drops the marker: the saga completed, there is nothing left to
// reconcile. A failed cleanup only leaves a stale completed marker.
func (r *run) finish() {
	if err := r.engine.store.Delete(CollectionLoanSagas, r.notificationID); err != nil {
		r.engine.log.Warn("saga marker cleanup failed", "notification", r.notificationID, "error", err)
	}
}

const (
	fieldNotificationID = "notificationId"
	fieldKind           = "kind"
	fieldStep           = "step"
	fieldUpdatedAt      = "updatedAt"

	fieldIsAvailable = "isAvailable"
	fieldBookID      = "bookId"
	fieldOwnerID     = "ownerId"
	fieldBorrowerID  = "borrowerId"
	fieldBorrowDate  = "borrowDate"
	fieldStatus      = "status"
)

func docFromSaga(s domain.LoanSaga) store.Document {
	return store.Document{
		fieldNotificationID: s.NotificationID,
		fieldKind:           string(s.Kind),
		fieldStep:           int64(s.Step),
		fieldUpdatedAt:      s.UpdatedAt.UnixNano(),
	}
}

func sagaFromDoc(doc store.Document) domain.LoanSaga {
	return domain.LoanSaga{
		NotificationID: store.String(doc, fieldNotificationID),
		Kind:           domain.SagaKind(store.String(doc, fieldKind)),
		Step:           domain.SagaStep(store.Int64(doc, fieldStep)),
		UpdatedAt:      store.Time(doc, fieldUpdatedAt),
	}
}

func docFromBorrow(b domain.BorrowRecord) store.Document {
	return store.Document{
		"id":            b.ID,
		fieldBookID:     b.BookID,
		fieldOwnerID:    b.OwnerID,
		fieldBorrowerID: b.BorrowerID,
		fieldBorrowDate: b.BorrowDate.UnixNano(),
		fieldStatus:     b.Status,
	}
}

// BorrowFromDoc converts a borrows document; exported for the CLI viewer.
func BorrowFromDoc(doc store.Document) domain.BorrowRecord {
	return domain.BorrowRecord{
		ID:         store.String(doc, "id"),
		BookID:     store.String(doc, fieldBookID),
		OwnerID:    store.String(doc, fieldOwnerID),
		BorrowerID: store.String(doc, fieldBorrowerID),
		BorrowDate: store.Time(doc, fieldBorrowDate),
		Status:     store.String(doc, fieldStatus),
	}
}

// DocFromBook writes the book slice the workflow knows about; used by
// seeding and tests.
func DocFromBook(b domain.Book) store.Document {
	return store.Document{
		"id":             b.ID,
		"title":          b.Title,
		fieldOwnerID:     b.OwnerID,
		fieldIsAvailable: b.IsAvailable,
	}
}

// BookFromDoc reads the book slice back.
func BookFromDoc(doc store.Document) domain.Book {
	return domain.Book{
		ID:          store.String(doc, "id"),
		Title:       store.String(doc, "title"),
		OwnerID:     store.String(doc, fieldOwnerID),
		IsAvailable: store.Bool(doc, fieldIsAvailable),
	}
}
