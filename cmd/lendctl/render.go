package main

import (
	"fmt"
	"os"
	"time"

	"bookswap/domain"
	"bookswap/internal"
	"bookswap/projection"
	"bookswap/repositories"
	"bookswap/store/badgerstore"
	"bookswap/workflow"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type cli struct {
	config        internal.Config
	documents     *badgerstore.Store
	profiles      *repositories.ProfileRepository
	messages      *repositories.MessageRepository
	notifications *repositories.NotificationRepository
	chatList      *projection.ChatListAggregator
	engine        *workflow.Engine
}

func renderMessages(history []domain.Message) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "From", "Content", "Read", "Edited", "Quotes"})
	for _, m := range history {
		quote := ""
		if m.IsReply() {
			quote = m.ReplyToMessageContent
		}
		table.Append([]string{
			m.Timestamp.Format(time.TimeOnly),
			m.SenderName,
			m.Content,
			mark(m.Read),
			mark(m.Edited),
			quote,
		})
	}
	table.Render()
}

func renderChats(summaries []domain.ConversationSummary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Partner", "Last message", "When", "Unread"})
	for _, s := range summaries {
		table.Append([]string{
			s.PartnerName,
			s.LastMessage,
			s.LastMessageTimestamp.Format(time.DateTime),
			fmt.Sprintf("%d", s.UnreadMessages),
		})
	}
	table.Render()
}

func renderNotifications(list repositories.NotificationList) {
	color.Cyan.Printf("%d unread\n", list.Unread)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Type", "From", "Book", "Message", "Read"})
	for _, n := range list.Notifications {
		table.Append([]string{
			n.ID,
			string(n.Type),
			n.SenderID,
			n.Title,
			n.Message,
			mark(n.IsRead),
		})
	}
	table.Render()
}

func (a *cli) sagas() error {
	pending, err := a.engine.PendingSagas()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		color.Green.Println("no unfinished sagas")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Notification", "Kind", "Last committed step", "Updated"})
	for _, s := range pending {
		table.Append([]string{
			s.NotificationID,
			string(s.Kind),
			s.Step.String(),
			s.UpdatedAt.Format(time.DateTime),
		})
	}
	table.Render()
	return nil
}

// seed loads a small demo dataset: two readers and one available book,
// enough to walk the whole message-and-loan flow by hand.
func (a *cli) seed() error {
	profiles := []domain.Profile{
		{ID: "alice", Name: "Alice", ProfilePictureURL: "https://pics.example/alice.png"},
		{ID: "bob", Name: "Bob", ProfilePictureURL: "https://pics.example/bob.png"},
	}
	for _, p := range profiles {
		if err := a.profiles.Put(p); err != nil {
			return err
		}
	}
	book := domain.Book{ID: "book-1", Title: "The Go Programming Language", OwnerID: "alice", IsAvailable: true}
	if err := a.documents.Set(workflow.CollectionBooks, book.ID, workflow.DocFromBook(book), false); err != nil {
		return err
	}
	color.Green.Println("seeded: users alice, bob; book book-1 owned by alice")
	return nil
}

func mark(b bool) string {
	if b {
		return "x"
	}
	return ""
}
