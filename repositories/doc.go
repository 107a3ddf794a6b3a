package repositories

import (
	"bookswap/domain"
	"bookswap/store"
)

// Document field names shared by the messaging collections.
const (
	fieldID                    = "id"
	fieldSenderID              = "senderId"
	fieldSenderName            = "senderName"
	fieldReceiverID            = "receiverId"
	fieldContent               = "content"
	fieldTimestamp             = "timestamp"
	fieldRead                  = "read"
	fieldEdited                = "edited"
	fieldReplyToMessageID      = "replyToMessageId"
	fieldReplyToMessageContent = "replyToMessageContent"

	fieldChatKey              = "key"
	fieldParticipants         = "participants"
	fieldLastMessage          = "lastMessage"
	fieldLastMessageTimestamp = "lastMessageTimestamp"
	fieldLastMessageSenderID  = "lastMessageSenderId"
	fieldDeletedFor           = "deletedFor"
)

func docFromMessage(m domain.Message) store.Document {
	return store.Document{
		fieldID:                    m.ID,
		fieldSenderID:              m.SenderID,
		fieldSenderName:            m.SenderName,
		fieldReceiverID:            m.ReceiverID,
		fieldContent:               m.Content,
		fieldTimestamp:             m.Timestamp.UnixNano(),
		fieldRead:                  m.Read,
		fieldEdited:                m.Edited,
		fieldReplyToMessageID:      m.ReplyToMessageID,
		fieldReplyToMessageContent: m.ReplyToMessageContent,
	}
}

func messageFromDoc(doc store.Document) domain.Message {
	return domain.Message{
		ID:                    store.String(doc, fieldID),
		SenderID:              store.String(doc, fieldSenderID),
		SenderName:            store.String(doc, fieldSenderName),
		ReceiverID:            store.String(doc, fieldReceiverID),
		Content:               store.String(doc, fieldContent),
		Timestamp:             store.Time(doc, fieldTimestamp),
		Read:                  store.Bool(doc, fieldRead),
		Edited:                store.Bool(doc, fieldEdited),
		ReplyToMessageID:      store.String(doc, fieldReplyToMessageID),
		ReplyToMessageContent: store.String(doc, fieldReplyToMessageContent),
	}
}

func chatFromDoc(doc store.Document) domain.ChatAggregate {
	return domain.ChatAggregate{
		Key:                  store.String(doc, fieldChatKey),
		Participants:         store.Strings(doc, fieldParticipants),
		LastMessage:          store.String(doc, fieldLastMessage),
		LastMessageTimestamp: store.Time(doc, fieldLastMessageTimestamp),
		LastMessageSenderID:  store.String(doc, fieldLastMessageSenderID),
		DeletedFor:           store.Strings(doc, fieldDeletedFor),
	}
}
