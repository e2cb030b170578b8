package httpapi

import (
	"net/http"
	"time"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type AttendanceRequest struct {
	StudentID string                  `json:"studentId"`
	Date      time.Time               `json:"date"`
	Status    models.AttendanceStatus `json:"status"`
	CheckIn   *time.Time              `json:"checkIn"`
	CheckOut  *time.Time              `json:"checkOut"`
	Notes     *string                 `json:"notes"`
}

type AttendanceUpdateRequest struct {
	Status   *models.AttendanceStatus `json:"status"`
	CheckIn  *time.Time               `json:"checkIn"`
	CheckOut *time.Time               `json:"checkOut"`
	Notes    *string                  `json:"notes"`
}

func (s *Server) ListAttendance(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid date", Code: services.CodeValidation})
			return
		}
		date = &parsed
	}
	items, err := s.Attendance.List(r.Context(), r.URL.Query().Get("studentId"), date)
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.Attendance.Create(r.Context(), CurrentPrincipal(r), services.AttendanceInput{
		StudentID: req.StudentID,
		Date:      req.Date,
		Status:    req.Status,
		CheckIn:   req.CheckIn,
		CheckOut:  req.CheckOut,
		Notes:     req.Notes,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

func (s *Server) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	var req AttendanceUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := s.Attendance.Update(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), services.AttendanceUpdateInput{
		Status:   req.Status,
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Notes:    req.Notes,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}
