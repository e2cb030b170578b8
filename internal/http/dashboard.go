package httpapi

import "net/http"

func (s *Server) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Dashboard.Admin(r.Context())
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (s *Server) StudentDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Dashboard.Student(r.Context(), CurrentPrincipal(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
