package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/services"
)

func (s *Server) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(services.MaxImageBytes + 1<<20); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "The file is empty", Code: services.CodeValidation})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "The file is empty", Code: services.CodeValidation})
		return
	}
	defer file.Close()
	account, err := s.Accounts.UpdateAvatar(r.Context(), CurrentPrincipal(r), services.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}
