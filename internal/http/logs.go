package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/services"
)

func (s *Server) ListLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := services.AuditFilter{
		Action:   query.Get("action"),
		ActorID:  query.Get("actorId"),
		Page:     parseInt(query.Get("page"), 1),
		PageSize: parseInt(query.Get("pageSize"), 20),
	}
	items, total, err := s.Audit.List(r.Context(), filter)
	if mapServiceError(w, r, err) {
		return
	}
	page, pageSize := services.NormalizePage(filter.Page, filter.PageSize)
	WriteJSON(w, http.StatusOK, PagedResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}
