package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

// MediaContent streams an uploaded file to its owner or to resident
// administrators.
func (s *Server) MediaContent(w http.ResponseWriter, r *http.Request) {
	principal := CurrentPrincipal(r)
	s.streamAsset(w, r, chi.URLParam(r, "assetId"), func(asset models.MediaAsset) error {
		if services.OwnsResource(principal, asset.OwnerID) || services.ResidentAdminRoles.Contains(principal.Role) {
			return nil
		}
		return services.ErrForbidden("Not allowed")
	})
}

// serveAsset streams an asset the caller was already authorized for.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, assetID string) {
	s.streamAsset(w, r, assetID, nil)
}

func (s *Server) streamAsset(w http.ResponseWriter, r *http.Request, assetID string, check func(models.MediaAsset) error) {
	asset, file, err := s.Media.Open(r.Context(), assetID)
	if mapServiceError(w, r, err) {
		return
	}
	defer file.Close()
	if check != nil && mapServiceError(w, r, check(asset)) {
		return
	}
	if asset.Filename != "" {
		w.Header().Set("Content-Disposition", "inline; filename=\""+asset.Filename+"\"")
	}
	if asset.ContentType != "" {
		w.Header().Set("Content-Type", asset.ContentType)
	}
	http.ServeContent(w, r, asset.Filename, asset.CreatedAt, file)
}
