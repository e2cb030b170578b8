package httpapi

import (
	"net/http"
	"time"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type StudentCreateRequest struct {
	StudentID     string               `json:"studentId"`
	Name          string               `json:"name"`
	FirstName     string               `json:"firstName"`
	LastName      string               `json:"lastName"`
	MiddleInitial string               `json:"middleInitial"`
	Email         string               `json:"email"`
	Password      string               `json:"password"`
	RoomID        string               `json:"roomId"`
	Phone         string               `json:"phone"`
	Status        models.ProfileStatus `json:"status"`
}

type StudentUpdateRequest struct {
	FirstName             *string               `json:"firstName"`
	LastName              *string               `json:"lastName"`
	MiddleInitial         *string               `json:"middleInitial"`
	Email                 *string               `json:"email"`
	StudentID             *string               `json:"studentId"`
	RoomID                *string               `json:"roomId"`
	Phone                 *string               `json:"phone"`
	EmergencyContactName  *string               `json:"emergencyContactName"`
	EmergencyContactPhone *string               `json:"emergencyContactPhone"`
	EnrollmentDate        *time.Time            `json:"enrollmentDate"`
	Status                *models.ProfileStatus `json:"status"`
}

func (s *Server) ListStudents(w http.ResponseWriter, r *http.Request) {
	items, err := s.Accounts.ListStudents(r.Context(), r.URL.Query().Get("search"))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTOs(items))
}

func (s *Server) GetStudent(w http.ResponseWriter, r *http.Request) {
	account, err := s.Accounts.GetStudent(r.Context(), chi.URLParam(r, "id"))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := models.PersonName{First: req.FirstName, Last: req.LastName, Middle: req.MiddleInitial}
	if name.First == "" && name.Last == "" {
		name = models.ParsePersonName(req.Name)
	}
	account, err := s.Accounts.CreateStudent(r.Context(), CurrentPrincipal(r), services.StudentInput{
		StudentID:     req.StudentID,
		FirstName:     name.First,
		LastName:      name.Last,
		MiddleInitial: name.Middle,
		Email:         req.Email,
		Password:      req.Password,
		RoomID:        req.RoomID,
		Phone:         req.Phone,
		Status:        req.Status,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, toAccountDTO(account))
}

func (s *Server) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.Accounts.UpdateStudent(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), services.StudentUpdateInput{
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		MiddleInitial:         req.MiddleInitial,
		Email:                 req.Email,
		StudentID:             req.StudentID,
		RoomID:                req.RoomID,
		Phone:                 req.Phone,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		EnrollmentDate:        req.EnrollmentDate,
		Status:                req.Status,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if mapServiceError(w, r, s.Accounts.DeleteStudent(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), requestMeta(r))) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Student removed"})
}
