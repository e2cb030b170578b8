package httpapi

import (
	"net/http"
	"time"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type TaskRequest struct {
	Title        *string            `json:"title"`
	Type         *models.TaskType   `json:"type"`
	Area         *string            `json:"area"`
	AssignedRoom *string            `json:"assignedRoom"`
	DueDate      *time.Time         `json:"dueDate"`
	Status       *models.TaskStatus `json:"status"`
	Notes        *string            `json:"notes"`
}

func (req TaskRequest) input() services.TaskInput {
	return services.TaskInput{
		Title:        req.Title,
		Type:         req.Type,
		Area:         req.Area,
		AssignedRoom: req.AssignedRoom,
		DueDate:      req.DueDate,
		Status:       req.Status,
		Notes:        req.Notes,
	}
}

func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	items, err := s.Tasks.List(r.Context())
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := s.Tasks.Create(r.Context(), CurrentPrincipal(r), req.input(), requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, task)
}

func (s *Server) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := s.Tasks.Update(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), req.input(), requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, task)
}

func (s *Server) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if mapServiceError(w, r, s.Tasks.Delete(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), requestMeta(r))) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Task removed"})
}
