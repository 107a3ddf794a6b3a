package domain

import (
	"time"

	"github.com/samber/lo"
)

// ChatAggregate is the per-conversation summary document, keyed by
// ConversationKey. Participants never change; DeletedFor grows one
// entry per user who hid the conversation from their own view.
type ChatAggregate struct {
	Key                  string
	Participants         []string
	LastMessage          string
	LastMessageTimestamp time.Time
	LastMessageSenderID  string
	DeletedFor           []string
}

// VisibleTo reports whether the conversation appears in userID's chat list.
func (c ChatAggregate) VisibleTo(userID string) bool {
	return lo.Contains(c.Participants, userID) && !lo.Contains(c.DeletedFor, userID)
}

// Partner returns the other participant, or "" if userID is not a participant.
func (c ChatAggregate) Partner(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationSummary is one row of a user's chat list.
type ConversationSummary struct {
	PartnerID            string
	PartnerName          string
	ProfilePictureURL    string
	LastMessage          string
	LastMessageTimestamp time.Time
	UnreadMessages       int
}
