package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookswap/domain"
	"bookswap/errors"
	"bookswap/store"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
)

const CollectionNotifications = "notifications"

const (
	fieldRecipientID = "recipientId"
	fieldMessage     = "message"
	fieldIsRead      = "isRead"
	fieldType        = "type"
	fieldBookID      = "bookId"
	fieldTitle       = "title"
)

// NotificationList is one live delivery: the recipient's notifications,
// newest first, with the unread count precomputed.
type NotificationList struct {
	Notifications []domain.Notification
	Unread        int
}

type INotificationRepository interface {
	Get(notificationID string) (domain.Notification, error)
	Subscribe(ctx context.Context, recipientID string) (<-chan NotificationList, error)
	MarkAllRead(ctx context.Context, recipientID string) error
	RemoveLocally(notificationID string)
	Create(notification domain.Notification) (domain.Notification, error)
	Delete(notificationID string) error
}

// NotificationRepository owns the notifications collection. The loan
// workflow engine holds it as its capability to consume loan requests
// and emit decisions; nothing else writes notifications.
type NotificationRepository struct {
	store store.DocumentStore
	log   *slog.Logger
	now   func() time.Time

	mu   sync.Mutex
	subs map[*notificationSub]struct{}
}

type notificationSub struct {
	recipientID string
	out         chan NotificationList
	last        []domain.Notification
}

func NewNotificationRepository(documents store.DocumentStore, log *slog.Logger) *NotificationRepository {
	return &NotificationRepository{
		store: documents,
		log:   log,
		now:   time.Now,
		subs:  make(map[*notificationSub]struct{}),
	}
}

func (r *NotificationRepository) Get(notificationID string) (domain.Notification, error) {
	doc, err := r.store.Get(CollectionNotifications, notificationID)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("notification %s: %w", notificationID, err)
	}
	return notificationFromDoc(doc), nil
}

// Subscribe streams the recipient's notification list, timestamp
// descending, refreshed on every change to the collection.
func (r *NotificationRepository) Subscribe(ctx context.Context, recipientID string) (<-chan NotificationList, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("recipient id required: %w", errors.ErrInvalidArgument)
	}
	pred := func(doc store.Document) bool {
		return store.String(doc, fieldRecipientID) == recipientID
	}
	order := &store.OrderBy{Field: fieldTimestamp, Desc: true}
	snapshots, err := r.store.Subscribe(ctx, CollectionNotifications, pred, order)
	if err != nil {
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}

	sub := &notificationSub{recipientID: recipientID, out: make(chan NotificationList, 1)}
	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.subs, sub)
			r.mu.Unlock()
			close(sub.out)
		}()
		for snap := range snapshots {
			notifications := lo.Map(snap.Docs, func(doc store.Document, _ int) domain.Notification {
				return notificationFromDoc(doc)
			})
			r.mu.Lock()
			sub.last = notifications
			r.mu.Unlock()
			if !send(ctx, sub.out, toList(notifications)) {
				return
			}
		}
	}()
	return sub.out, nil
}

// RemoveLocally drops one notification from every live projection ahead
// of the next server push. It is an optimistic UI convergence aid only:
// the next authoritative snapshot overwrites it, and if the store still
// holds the notification it reappears.
func (r *NotificationRepository) RemoveLocally(notificationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		trimmed := lo.Reject(sub.last, func(n domain.Notification, _ int) bool {
			return n.ID == notificationID
		})
		if len(trimmed) == len(sub.last) {
			continue
		}
		select {
		case sub.out <- toList(trimmed):
		default:
			// a fresh authoritative snapshot is already pending, it wins
		}
	}
}

// MarkAllRead flips isRead on every unread notification of the
// recipient in one batch. Idempotent, so a transient store failure is
// retried with backoff here instead of being pushed to the caller.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.markAllRead(recipientID)
		if err != nil && errors.Is(err, errors.ErrTransientStore) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *NotificationRepository) markAllRead(recipientID string) error {
	unread, err := r.store.Query(CollectionNotifications, func(doc store.Document) bool {
		return store.String(doc, fieldRecipientID) == recipientID && !store.Bool(doc, fieldIsRead)
	}, nil)
	if err != nil {
		return fmt.Errorf("lookup unread notifications: %w", err)
	}
	if len(unread) == 0 {
		return nil
	}
	batch := r.store.Batch()
	for _, doc := range unread {
		batch.Set(CollectionNotifications, store.String(doc, fieldID), store.Document{fieldIsRead: true}, true)
	}
	if err = batch.Commit(); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// Create persists a notification, assigning id and timestamp when absent.
func (r *NotificationRepository) Create(notification domain.Notification) (domain.Notification, error) {
	if notification.RecipientID == "" {
		return domain.Notification{}, fmt.Errorf("notification recipient required: %w", errors.ErrInvalidArgument)
	}
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = r.now().UTC()
	}
	if notification.Type == "" {
		notification.Type = domain.NotificationGeneric
	}
	if err := r.store.Set(CollectionNotifications, notification.ID, docFromNotification(notification), false); err != nil {
		return domain.Notification{}, fmt.Errorf("store notification: %w", err)
	}
	return notification, nil
}

// Delete removes a notification for good; loan requests are consumed
// this way, not archived.
func (r *NotificationRepository) Delete(notificationID string) error {
	if notificationID == "" {
		return fmt.Errorf("notification id required: %w", errors.ErrInvalidArgument)
	}
	if err := r.store.Delete(CollectionNotifications, notificationID); err != nil {
		return fmt.Errorf("delete notification %s: %w", notificationID, err)
	}
	return nil
}

func toList(notifications []domain.Notification) NotificationList {
	return NotificationList{
		Notifications: notifications,
		Unread:        lo.CountBy(notifications, func(n domain.Notification) bool { return !n.IsRead }),
	}
}

func send(ctx context.Context, out chan NotificationList, list NotificationList) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case out <- list:
			return true
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}

func docFromNotification(n domain.Notification) store.Document {
	return store.Document{
		fieldID:          n.ID,
		fieldRecipientID: n.RecipientID,
		fieldSenderID:    n.SenderID,
		fieldMessage:     n.Message,
		fieldTimestamp:   n.Timestamp.UnixNano(),
		fieldIsRead:      n.IsRead,
		fieldType:        string(n.Type),
		fieldBookID:      n.BookID,
		fieldTitle:       n.Title,
	}
}

func notificationFromDoc(doc store.Document) domain.Notification {
	return domain.Notification{
		ID:          store.String(doc, fieldID),
		RecipientID: store.String(doc, fieldRecipientID),
		SenderID:    store.String(doc, fieldSenderID),
		Message:     store.String(doc, fieldMessage),
		Timestamp:   store.Time(doc, fieldTimestamp),
		IsRead:      store.Bool(doc, fieldIsRead),
		Type:        domain.NotificationType(store.String(doc, fieldType)),
		BookID:      store.String(doc, fieldBookID),
		Title:       store.String(doc, fieldTitle),
	}
}
