package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bookswap/auth"
	"bookswap/internal"
	"bookswap/projection"
	"bookswap/repositories"
	"bookswap/store/badgerstore"
	"bookswap/workflow"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the whole core against a local Badger store and executes
// one operator command. Keeping the wiring here, not in init or
// globals, means tests and other binaries build their own instances.
func run(args []string) error {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	if len(args) == 0 {
		usage()
		return nil
	}

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	documents := badgerstore.New(db, log)
	profiles := repositories.NewProfileRepository(documents)
	messages := repositories.NewMessageRepository(documents, log)
	notifications := repositories.NewNotificationRepository(documents, log)
	chatList := projection.NewChatListAggregator(messages, profiles, log)
	engine := workflow.NewEngine(documents, notifications, log)

	app := &cli{
		config:        config,
		documents:     documents,
		profiles:      profiles,
		messages:      messages,
		notifications: notifications,
		chatList:      chatList,
		engine:        engine,
	}

	switch args[0] {
	case "seed":
		return app.seed()
	case "token":
		return app.token(args[1:])
	case "send":
		return app.send(args[1:])
	case "chats":
		return app.chats(args[1:])
	case "messages":
		return app.listMessages(args[1:])
	case "notifications":
		return app.listNotifications(args[1:])
	case "request":
		return app.request(args[1:])
	case "accept":
		return app.decide(args[1:], true)
	case "reject":
		return app.decide(args[1:], false)
	case "sagas":
		return app.sagas()
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	color.Cyan.Println("lendctl: bookswap core operator tool")
	fmt.Println(`Commands:
  seed                                  create demo users and books
  token <userID>                        issue a session token
  send <token> <to> <content> [-reply id] [-edit id]
  chats <token>                         list conversations
  messages <token> <partnerID>          show a conversation
  notifications <token>                 list notifications
  request <token> <bookID>              request a loan
  accept <token> <notificationID>       accept a loan request
  reject <token> <notificationID>       reject a loan request
  sagas                                 list unfinished loan sagas`)
}

// currentUser resolves the acting user from a session token, the same
// opaque identity the mobile app would carry.
func currentUser(token string) (string, error) {
	userID, err := auth.CurrentUser(token)
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	return userID, nil
}

func (a *cli) token(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: token <userID>")
	}
	token, err := auth.GenerateToken(args[0], a.config.AuthTokenDuration)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func (a *cli) send(args []string) error {
	flags := flag.NewFlagSet("send", flag.ContinueOnError)
	replyTo := flags.String("reply", "", "message id to quote")
	editOf := flags.String("edit", "", "message id to edit in place")
	if len(args) < 3 {
		return fmt.Errorf("usage: send <token> <to> <content> [-reply id] [-edit id]")
	}
	if err := flags.Parse(args[3:]); err != nil {
		return err
	}
	userID, err := currentUser(args[0])
	if err != nil {
		return err
	}
	profile, err := a.profiles.Get(userID)
	if err != nil {
		return err
	}
	message, err := a.messages.Send(repositories.SendRequest{
		SenderID:   userID,
		SenderName: profile.Name,
		ReceiverID: args[1],
		Content:    args[2],
		ReplyTo:    *replyTo,
		EditOf:     *editOf,
	})
	if err != nil {
		return err
	}
	color.Green.Printf("sent %s at %s\n", message.ID, message.Timestamp.Format(time.RFC3339))
	return nil
}

// listMessages takes the first live snapshot of the conversation, which
// is exactly what a chat screen renders on open.
func (a *cli) listMessages(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: messages <token> <partnerID>")
	}
	userID, err := currentUser(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.config.SnapshotTimeout)
	defer cancel()
	snapshots, err := a.messages.Subscribe(ctx, userID, args[1])
	if err != nil {
		return err
	}
	select {
	case history := <-snapshots:
		renderMessages(history)
	case <-ctx.Done():
		return fmt.Errorf("no snapshot within %s", a.config.SnapshotTimeout)
	}
	if err = a.messages.MarkRead(userID, args[1]); err != nil {
		return err
	}
	return nil
}

func (a *cli) chats(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chats <token>")
	}
	userID, err := currentUser(args[0])
	if err != nil {
		return err
	}
	summaries, err := a.chatList.ListConversations(userID)
	if err != nil {
		return err
	}
	renderChats(summaries)
	return nil
}

func (a *cli) listNotifications(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: notifications <token>")
	}
	userID, err := currentUser(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.config.SnapshotTimeout)
	defer cancel()
	snapshots, err := a.notifications.Subscribe(ctx, userID)
	if err != nil {
		return err
	}
	select {
	case list := <-snapshots:
		renderNotifications(list)
	case <-ctx.Done():
		return fmt.Errorf("no snapshot within %s", a.config.SnapshotTimeout)
	}
	return nil
}

func (a *cli) request(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: request <token> <bookID>")
	}
	userID, err := currentUser(args[0])
	if err != nil {
		return err
	}
	doc, err := a.documents.Get(workflow.CollectionBooks, args[1])
	if err != nil {
		return err
	}
	notification, err := a.engine.RequestLoan(userID, workflow.BookFromDoc(doc))
	if err != nil {
		return err
	}
	color.Green.Printf("loan request %s sent to %s\n", notification.ID, notification.RecipientID)
	return nil
}

func (a *cli) decide(args []string, accept bool) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: accept|reject <token> <notificationID>")
	}
	userID, err := currentUser(args[0])
	if err != nil {
		return err
	}
	notification, err := a.notifications.Get(args[1])
	if err != nil {
		return err
	}
	ctx := context.Background()
	if accept {
		if err = a.engine.Accept(ctx, userID, notification); err != nil {
			return err
		}
		color.Green.Println("loan accepted")
		return nil
	}
	if err = a.engine.Reject(ctx, userID, notification); err != nil {
		return err
	}
	color.Yellow.Println("loan rejected")
	return nil
}
