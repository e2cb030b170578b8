package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type AnnouncementRequest struct {
	Title    string                      `json:"title"`
	Content  string                      `json:"content"`
	Priority models.AnnouncementPriority `json:"priority"`
}

func (s *Server) ListAnnouncements(w http.ResponseWriter, r *http.Request) {
	items, err := s.Announcements.List(r.Context(), parseInt(r.URL.Query().Get("limit"), 0))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req AnnouncementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.Announcements.Create(r.Context(), CurrentPrincipal(r), services.AnnouncementInput{
		Title:    req.Title,
		Content:  req.Content,
		Priority: req.Priority,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, item)
}

func (s *Server) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if mapServiceError(w, r, s.Announcements.Delete(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), requestMeta(r))) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Announcement removed"})
}
