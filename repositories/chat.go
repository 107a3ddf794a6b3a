package repositories

import (
	"fmt"

	"bookswap/domain"
	"bookswap/store"

	"github.com/samber/lo"
)

// Read-side queries over the chats and messages collections, consumed
// by the chat-list projection.

// VisibleChats returns the aggregates userID participates in and has
// not soft-deleted.
func (r *MessageRepository) VisibleChats(userID string) ([]domain.ChatAggregate, error) {
	docs, err := r.store.Query(CollectionChats, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	chats := lo.Map(docs, func(doc store.Document, _ int) domain.ChatAggregate {
		return chatFromDoc(doc)
	})
	return lo.Filter(chats, func(c domain.ChatAggregate, _ int) bool {
		return c.VisibleTo(userID)
	}), nil
}

// UnreadCountsByPartner counts userID's unread messages grouped by the
// sender, so each conversation row reports only its own partner's
// messages and never a global total.
func (r *MessageRepository) UnreadCountsByPartner(userID string) (map[string]int, error) {
	unread, err := r.store.Query(CollectionMessages, func(doc store.Document) bool {
		return store.String(doc, fieldReceiverID) == userID && !store.Bool(doc, fieldRead)
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	counts := make(map[string]int, len(unread))
	for _, doc := range unread {
		counts[store.String(doc, fieldSenderID)]++
	}
	return counts, nil
}
