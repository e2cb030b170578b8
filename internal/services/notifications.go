package services

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"dormsync-backend-go/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type NotificationStore interface {
	InsertNotifications(ctx context.Context, items []models.Notification) error
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	FindNotification(ctx context.Context, id string) (models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
}

// Notifier is what other services use to tell people about changes. Failures
// are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, message string, kind models.NotificationType, related Related)
}

// Related points a notification at the record it is about.
type Related struct {
	ID    string
	Model string
}

type NotificationService struct {
	store NotificationStore
	hub   *NotificationHub
	now   func() time.Time
}

func NewNotificationService(store NotificationStore, hub *NotificationHub) *NotificationService {
	return &NotificationService{store: store, hub: hub, now: time.Now}
}

type NotificationPage struct {
	Items  []models.Notification
	Unread int
}

func (s *NotificationService) ListMine(ctx context.Context, principal Principal, limit int) (NotificationPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.store.ListNotifications(ctx, principal.ID, limit)
	if err != nil {
		return NotificationPage{}, WrapError(err, "list notifications")
	}
	unread, err := s.store.CountUnread(ctx, principal.ID)
	if err != nil {
		return NotificationPage{}, WrapError(err, "count unread")
	}
	return NotificationPage{Items: items, Unread: unread}, nil
}

// MarkRead reports other people's notifications as missing.
func (s *NotificationService) MarkRead(ctx context.Context, principal Principal, id string) (models.Notification, error) {
	if !validID(id) {
		return models.Notification{}, ErrNotFound("Notification not found")
	}
	item, err := s.store.FindNotification(ctx, id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !OwnsResource(principal, item.RecipientID)) {
		return models.Notification{}, ErrNotFound("Notification not found")
	}
	if err != nil {
		return models.Notification{}, WrapError(err, "find notification")
	}
	if !item.Read {
		if err := s.store.MarkNotificationRead(ctx, id); err != nil {
			return models.Notification{}, WrapError(err, "mark read")
		}
		item.Read = true
	}
	return item, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, principal Principal) (int, error) {
	count, err := s.store.MarkAllNotificationsRead(ctx, principal.ID)
	if err != nil {
		return 0, WrapError(err, "mark all read")
	}
	return count, nil
}

func (s *NotificationService) Notify(ctx context.Context, recipients []string, message string, kind models.NotificationType, related Related) {
	if len(recipients) == 0 {
		return
	}
	now := s.now().UTC()
	items := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		items = append(items, models.Notification{
			ID:          uuid.NewString(),
			RecipientID: recipient,
			Message:     message,
			Type:        kind,
			RelatedID:   optionalString(related.ID),
			OnModel:     optionalString(related.Model),
			CreatedAt:   now,
		})
	}
	if err := s.store.InsertNotifications(ctx, items); err != nil {
		log.Printf("notifications insert failed (%d recipients): %v", len(items), err)
		return
	}
	if s.hub != nil {
		for _, item := range items {
			s.hub.Publish(item)
		}
	}
}

// NotificationHub fans new notifications out to the recipient's open
// websocket connections.
type NotificationHub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]bool
	ch      chan models.Notification
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{
		clients: map[string]map[*websocket.Conn]bool{},
		ch:      make(chan models.Notification, 64),
	}
}

func (h *NotificationHub) Run(ctx context.Context) {
	for {
		select {
		case item := <-h.ch:
			h.deliver(item)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// Publish drops the push when the hub is saturated; the notification is
// still stored and shows up on the next listing.
func (h *NotificationHub) Publish(item models.Notification) {
	select {
	case h.ch <- item:
	default:
	}
}

func (h *NotificationHub) Add(accountID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = map[*websocket.Conn]bool{}
	}
	h.clients[accountID][conn] = true
}

func (h *NotificationHub) Remove(accountID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[accountID], conn)
	if len(h.clients[accountID]) == 0 {
		delete(h.clients, accountID)
	}
}

func (h *NotificationHub) Connections(accountID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[accountID])
}

func (h *NotificationHub) deliver(item models.Notification) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients[item.RecipientID]))
	for conn := range h.clients[item.RecipientID] {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(item); err != nil {
			h.Remove(item.RecipientID, conn)
			_ = conn.Close()
		}
	}
}

func (h *NotificationHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for accountID, conns := range h.clients {
		for conn := range conns {
			_ = conn.Close()
		}
		delete(h.clients, accountID)
	}
}
