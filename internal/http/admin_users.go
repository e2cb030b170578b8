package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type RejectRequest struct {
	Reason string `json:"reason"`
}

type RoleRequest struct {
	Role models.Role `json:"role"`
}

type StaffRequest struct {
	Name          string `json:"name"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	MiddleInitial string `json:"middleInitial"`
	Email         string `json:"email"`
	Password      string `json:"password"`
}

func (s *Server) ListPending(w http.ResponseWriter, r *http.Request) {
	items, err := s.Accounts.ListPending(r.Context())
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTOs(items))
}

func (s *Server) ApproveUser(w http.ResponseWriter, r *http.Request) {
	account, err := s.Accounts.ApproveAccount(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) RejectUser(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.Accounts.RejectAccount(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), req.Reason, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.Accounts.UpdateRole(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), req.Role, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) ListStaff(w http.ResponseWriter, r *http.Request) {
	items, err := s.Accounts.ListStaff(r.Context())
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTOs(items))
}

func (s *Server) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req StaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := models.PersonName{First: req.FirstName, Last: req.LastName, Middle: req.MiddleInitial}
	if name.First == "" && name.Last == "" {
		name = models.ParsePersonName(req.Name)
	}
	account, err := s.Accounts.CreateStaff(r.Context(), CurrentPrincipal(r), services.StaffInput{
		FirstName:     name.First,
		LastName:      name.Last,
		MiddleInitial: name.Middle,
		Email:         req.Email,
		Password:      req.Password,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, toAccountDTO(account))
}
