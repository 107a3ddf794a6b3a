// Package domain contains core concepts of the book-swap system:
// messages, conversations, notifications and loan records.
// Types here are pure data validated by the layers that create them.
package domain

import (
	"time"
)

// Message represents one chat message between two users.
// Content is mutable through the edit path; everything else is fixed at send time.
type Message struct {
	ID         string
	SenderID   string
	SenderName string
	ReceiverID string
	Content    string
	Timestamp  time.Time
	Read       bool
	Edited     bool

	// ReplyToMessageID points at the quoted message, if any. The quoted
	// content is a snapshot taken at reply time and is never re-synced
	// when the original is edited later.
	ReplyToMessageID      string
	ReplyToMessageContent string
}

// IsReply reports whether the message quotes another one.
func (m Message) IsReply() bool {
	return m.ReplyToMessageID != ""
}
