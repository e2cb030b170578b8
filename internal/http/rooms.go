package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type RoomRequest struct {
	RoomNumber *string            `json:"roomNumber"`
	Floor      *int               `json:"floor"`
	Capacity   *int               `json:"capacity"`
	Type       *string            `json:"type"`
	Status     *models.RoomStatus `json:"status"`
}

func (req RoomRequest) input() services.RoomInput {
	return services.RoomInput{
		RoomNumber: req.RoomNumber,
		Floor:      req.Floor,
		Capacity:   req.Capacity,
		Type:       req.Type,
		Status:     req.Status,
	}
}

type RoomDetailResponse struct {
	models.Room
	Occupants []AccountDTO `json:"occupants"`
}

func (s *Server) ListRooms(w http.ResponseWriter, r *http.Request) {
	items, err := s.Rooms.List(r.Context())
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

func (s *Server) GetRoom(w http.ResponseWriter, r *http.Request) {
	detail, err := s.Rooms.Get(r.Context(), chi.URLParam(r, "id"))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, RoomDetailResponse{Room: detail.Room, Occupants: toAccountDTOs(detail.Occupants)})
}

func (s *Server) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	room, err := s.Rooms.Create(r.Context(), CurrentPrincipal(r), req.input(), requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, room)
}

func (s *Server) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	room, err := s.Rooms.Update(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), req.input(), requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, room)
}

func (s *Server) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if mapServiceError(w, r, s.Rooms.Delete(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), requestMeta(r))) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Room removed"})
}
