package domain

import "time"

// Book carries the slice of the externally-owned book entity the loan
// workflow is allowed to touch: the availability flag.
type Book struct {
	ID          string
	Title       string
	OwnerID     string
	IsAvailable bool
}

const BorrowStatusAccepted = "accepted"

// BorrowRecord is created when an owner accepts a loan request.
// The core never mutates or deletes it afterwards.
type BorrowRecord struct {
	ID         string
	BookID     string
	OwnerID    string
	BorrowerID string
	BorrowDate time.Time
	Status     string
}

// SagaKind names the two loan decision workflows.
type SagaKind string

const (
	SagaAccept SagaKind = "accept"
	SagaReject SagaKind = "reject"
)

// SagaStep numbers the committed steps of a loan saga. Zero means no
// step has committed yet.
type SagaStep int

const (
	StepNone SagaStep = iota
	StepNotificationDeleted
	StepBookUnavailable
	StepBorrowCreated
	StepConfirmationSent
)

func (s SagaStep) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepNotificationDeleted:
		return "notification_deleted"
	case StepBookUnavailable:
		return "book_unavailable"
	case StepBorrowCreated:
		return "borrow_created"
	case StepConfirmationSent:
		return "confirmation_sent"
	default:
		return "unknown"
	}
}

// LoanSaga is the persisted progress marker of one loan decision,
// keyed by the originating notification id. It survives partial
// failures so operators can reconcile manually.
type LoanSaga struct {
	NotificationID string
	Kind           SagaKind
	Step           SagaStep
	UpdatedAt      time.Time
}
