// Package projection builds read-side views from the raw message and
// chat collections. It owns ordering and filtering rules for what the
// user actually sees; it never writes back.
package projection

import (
	"fmt"
	"log/slog"
	"sort"

	"bookswap/domain"
	"bookswap/errors"
)

type ChatReader interface {
	VisibleChats(userID string) ([]domain.ChatAggregate, error)
	UnreadCountsByPartner(userID string) (map[string]int, error)
}

type ProfileResolver interface {
	Get(userID string) (domain.Profile, error)
}

// ChatListAggregator assembles a user's conversation list: partner
// identity, last message and a per-partner unread count.
type ChatListAggregator struct {
	chats    ChatReader
	profiles ProfileResolver
	log      *slog.Logger
}

func NewChatListAggregator(chats ChatReader, profiles ProfileResolver, log *slog.Logger) *ChatListAggregator {
	return &ChatListAggregator{chats: chats, profiles: profiles, log: log}
}

// ListConversations returns the visible conversations of userID, most
// recent first. A conversation without any message yet is excluded, and
// a failed partner profile lookup drops only that row, never the whole
// listing.
func (a *ChatListAggregator) ListConversations(userID string) ([]domain.ConversationSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required: %w", errors.ErrInvalidArgument)
	}
	chats, err := a.chats.VisibleChats(userID)
	if err != nil {
		return nil, err
	}
	unreadByPartner, err := a.chats.UnreadCountsByPartner(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ConversationSummary, 0, len(chats))
	for _, chat := range chats {
		if chat.LastMessageTimestamp.IsZero() {
			continue
		}
		partnerID := chat.Partner(userID)
		if partnerID == "" {
			continue
		}
		profile, err := a.profiles.Get(partnerID)
		if err != nil {
			a.log.Warn("partner profile lookup failed, skipping conversation",
				"partner", partnerID, "error", err)
			continue
		}
		summaries = append(summaries, domain.ConversationSummary{
			PartnerID:            partnerID,
			PartnerName:          profile.Name,
			ProfilePictureURL:    profile.ProfilePictureURL,
			LastMessage:          chat.LastMessage,
			LastMessageTimestamp: chat.LastMessageTimestamp,
			UnreadMessages:       unreadByPartner[partnerID],
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTimestamp.After(summaries[j].LastMessageTimestamp)
	})
	return summaries, nil
}
