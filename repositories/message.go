package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookswap/domain"
	"bookswap/errors"
	"bookswap/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	CollectionMessages = "messages"
	CollectionChats    = "chats"
)

type IMessageRepository interface {
	Send(req SendRequest) (domain.Message, error)
	Subscribe(ctx context.Context, userA, userB string) (<-chan []domain.Message, error)
	Delete(message domain.Message) error
	MarkRead(recipientID, senderID string) error
	SoftDeleteConversation(conversationKey, userID string) error
}

// MessageRepository owns every write to the messages and chats
// collections. It never retries on its own: a transient store failure
// is surfaced and the caller decides.
type MessageRepository struct {
	store store.DocumentStore
	log   *slog.Logger
	now   func() time.Time
}

func NewMessageRepository(documents store.DocumentStore, log *slog.Logger) *MessageRepository {
	return &MessageRepository{store: documents, log: log, now: time.Now}
}

// SendRequest covers the three send shapes: a plain message, a reply
// (ReplyTo set) and an in-place edit (EditOf set). EditOf wins when
// both are set.
type SendRequest struct {
	SenderID   string `validate:"required,nefield=ReceiverID"`
	SenderName string
	ReceiverID string `validate:"required"`
	Content    string `validate:"required"`
	ReplyTo    string
	EditOf     string
}

// Send validates the request and either creates a message or edits one
// in place, then merge-upserts the conversation aggregate. The upsert
// never touches deletedFor, so a soft-deleted side stays hidden.
func (r *MessageRepository) Send(req SendRequest) (domain.Message, error) {
	if err := ValidateSend(req); err != nil {
		return domain.Message{}, err
	}

	var message domain.Message
	var err error
	switch {
	case req.EditOf != "":
		message, err = r.edit(req)
	case req.ReplyTo != "":
		message, err = r.create(req, r.quotedContent)
	default:
		message, err = r.create(req, nil)
	}
	if err != nil {
		return domain.Message{}, err
	}

	if err = r.upsertChat(message); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (r *MessageRepository) create(req SendRequest, quote func(string) (string, error)) (domain.Message, error) {
	message := domain.Message{
		ID:         uuid.New().String(),
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		Timestamp:  r.now().UTC(),
	}
	if quote != nil {
		content, err := quote(req.ReplyTo)
		if err != nil {
			return domain.Message{}, err
		}
		message.ReplyToMessageID = req.ReplyTo
		message.ReplyToMessageContent = content
	}
	if err := r.store.Set(CollectionMessages, message.ID, docFromMessage(message), false); err != nil {
		return domain.Message{}, fmt.Errorf("store message: %w", err)
	}
	return message, nil
}

// quotedContent snapshots the replied-to text at reply time. Later
// edits of the original do not propagate into this copy.
func (r *MessageRepository) quotedContent(messageID string) (string, error) {
	doc, err := r.store.Get(CollectionMessages, messageID)
	if err != nil {
		return "", fmt.Errorf("replied-to message: %w", err)
	}
	return store.String(doc, fieldContent), nil
}

// edit rewrites content in place. ID, sender and receiver are fixed;
// the timestamp is refreshed and the edited flag raised.
func (r *MessageRepository) edit(req SendRequest) (domain.Message, error) {
	doc, err := r.store.Get(CollectionMessages, req.EditOf)
	if err != nil {
		return domain.Message{}, fmt.Errorf("edited message: %w", err)
	}
	message := messageFromDoc(doc)
	message.Content = req.Content
	message.Edited = true
	message.Timestamp = r.now().UTC()

	update := store.Document{
		fieldContent:   message.Content,
		fieldEdited:    true,
		fieldTimestamp: message.Timestamp.UnixNano(),
	}
	if err = r.store.Set(CollectionMessages, message.ID, update, true); err != nil {
		return domain.Message{}, fmt.Errorf("store edit: %w", err)
	}
	return message, nil
}

func (r *MessageRepository) upsertChat(message domain.Message) error {
	conversationKey, err := domain.ConversationKey(message.SenderID, message.ReceiverID)
	if err != nil {
		return err
	}
	update := store.Document{
		fieldChatKey:              conversationKey,
		fieldParticipants:         []string{message.SenderID, message.ReceiverID},
		fieldLastMessage:          message.Content,
		fieldLastMessageTimestamp: message.Timestamp.UnixNano(),
		fieldLastMessageSenderID:  message.SenderID,
	}
	if err = r.store.Set(CollectionChats, conversationKey, update, true); err != nil {
		return fmt.Errorf("upsert chat %s: %w", conversationKey, err)
	}
	return nil
}

// Subscribe streams the full message history between two users, oldest
// first, redelivered on every change. Cancelling ctx closes the channel
// and releases the store listener.
func (r *MessageRepository) Subscribe(ctx context.Context, userA, userB string) (<-chan []domain.Message, error) {
	if _, err := domain.ConversationKey(userA, userB); err != nil {
		return nil, err
	}
	pred := func(doc store.Document) bool {
		sender := store.String(doc, fieldSenderID)
		receiver := store.String(doc, fieldReceiverID)
		return (sender == userA && receiver == userB) || (sender == userB && receiver == userA)
	}
	order := &store.OrderBy{Field: fieldTimestamp}
	snapshots, err := r.store.Subscribe(ctx, CollectionMessages, pred, order)
	if err != nil {
		return nil, fmt.Errorf("subscribe messages: %w", err)
	}

	out := make(chan []domain.Message, 1)
	go func() {
		defer close(out)
		for snap := range snapshots {
			messages := lo.Map(snap.Docs, func(doc store.Document, _ int) domain.Message {
				return messageFromDoc(doc)
			})
			select {
			case out <- messages:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Delete removes a message by id together with its direct replies, in
// one batch. If the message itself is gone nothing is committed.
func (r *MessageRepository) Delete(message domain.Message) error {
	if message.ID == "" {
		return fmt.Errorf("delete needs a message id: %w", errors.ErrInvalidArgument)
	}
	if _, err := r.store.Get(CollectionMessages, message.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	replies, err := r.store.Query(CollectionMessages, func(doc store.Document) bool {
		return store.String(doc, fieldReplyToMessageID) == message.ID
	}, nil)
	if err != nil {
		return fmt.Errorf("lookup replies: %w", err)
	}

	batch := r.store.Batch()
	batch.Delete(CollectionMessages, message.ID)
	for _, reply := range replies {
		batch.Delete(CollectionMessages, store.String(reply, fieldID))
	}
	if err = batch.Commit(); err != nil {
		return fmt.Errorf("delete message %s: %w", message.ID, err)
	}
	r.log.Debug("message deleted", "id", message.ID, "cascadedReplies", len(replies))
	return nil
}

// MarkRead flips read on every unread message from senderID addressed
// to recipientID. Calling it again once everything is read is a no-op.
func (r *MessageRepository) MarkRead(recipientID, senderID string) error {
	unread, err := r.store.Query(CollectionMessages, func(doc store.Document) bool {
		return store.String(doc, fieldReceiverID) == recipientID &&
			store.String(doc, fieldSenderID) == senderID &&
			!store.Bool(doc, fieldRead)
	}, nil)
	if err != nil {
		return fmt.Errorf("lookup unread: %w", err)
	}
	if len(unread) == 0 {
		return nil
	}

	batch := r.store.Batch()
	for _, doc := range unread {
		batch.Set(CollectionMessages, store.String(doc, fieldID), store.Document{fieldRead: true}, true)
	}
	if err = batch.Commit(); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// SoftDeleteConversation hides the conversation from one user's view.
// Message history and the other side's visibility are untouched.
func (r *MessageRepository) SoftDeleteConversation(conversationKey, userID string) error {
	if conversationKey == "" || userID == "" {
		return fmt.Errorf("conversation key and user id required: %w", errors.ErrInvalidArgument)
	}
	doc, err := r.store.Get(CollectionChats, conversationKey)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", conversationKey, err)
	}
	deletedFor := store.Strings(doc, fieldDeletedFor)
	if lo.Contains(deletedFor, userID) {
		return nil
	}
	update := store.Document{fieldDeletedFor: append(deletedFor, userID)}
	if err = r.store.Set(CollectionChats, conversationKey, update, true); err != nil {
		return fmt.Errorf("soft delete %s: %w", conversationKey, err)
	}
	return nil
}
