package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type NotificationListResponse struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

type MarkAllResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
}

func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	page, err := s.Notifications.ListMine(r.Context(), CurrentPrincipal(r), parseInt(r.URL.Query().Get("limit"), 50))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, NotificationListResponse{Items: page.Items, Unread: page.Unread})
}

func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	item, err := s.Notifications.MarkRead(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, item)
}

func (s *Server) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.Notifications.MarkAllRead(r.Context(), CurrentPrincipal(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, MarkAllResponse{Message: "All notifications marked as read", Updated: updated})
}

// NotificationSocket pushes new notifications to the caller. Browsers cannot
// set headers on websocket requests, so the token travels as ?token=.
func (s *Server) NotificationSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Not authorized, no token", Code: services.CodeUnauthorized})
		return
	}
	account, err := s.Accounts.Authenticate(r.Context(), token, false)
	if mapServiceError(w, r, err) {
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Hub.Add(account.ID, conn)
	defer func() {
		s.Hub.Remove(account.ID, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
