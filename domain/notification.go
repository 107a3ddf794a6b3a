package domain

import "time"

type NotificationType string

const (
	NotificationLoanRequest  NotificationType = "LOAN_REQUEST"
	NotificationLoanAccepted NotificationType = "LOAN_ACCEPTED"
	NotificationLoanRejected NotificationType = "LOAN_REJECTED"
	NotificationGeneric      NotificationType = "GENERIC"
)

// Notification is an in-app notification row. Loan requests are consumed
// (deleted, not archived) by the workflow engine when the owner decides.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    string
	Message     string
	Timestamp   time.Time
	IsRead      bool
	Type        NotificationType
	BookID      string
	Title       string
}
