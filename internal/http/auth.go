package httpapi

import (
	"context"
	"net/http"
	"strings"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

type contextKey string

const (
	ctxPrincipal contextKey = "principal"
	ctxAccount   contextKey = "account"
)

// Authenticator resolves a session token to a usable account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string, allowPending bool) (models.Account, error)
}

// WithAuth reloads the account behind the bearer token on every request.
// allowPending admits accounts still waiting for approval.
func WithAuth(auth Authenticator, allowPending bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				WriteJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Not authorized, no token", Code: services.CodeUnauthorized})
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			account, err := auth.Authenticate(r.Context(), token, allowPending)
			if mapServiceError(w, r, err) {
				return
			}
			next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
		})
	}
}

func withAccount(ctx context.Context, account models.Account) context.Context {
	ctx = context.WithValue(ctx, ctxAccount, account)
	return context.WithValue(ctx, ctxPrincipal, services.PrincipalOf(account))
}

func CurrentPrincipal(r *http.Request) services.Principal {
	if value, ok := r.Context().Value(ctxPrincipal).(services.Principal); ok {
		return value
	}
	return services.Principal{}
}

func CurrentAccount(r *http.Request) (models.Account, bool) {
	value, ok := r.Context().Value(ctxAccount).(models.Account)
	return value, ok
}

func CurrentUserID(r *http.Request) string {
	return CurrentPrincipal(r).ID
}

// RequireAnyRole admits principals whose role is listed in allowed.
func RequireAnyRole(allowed services.RoleSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !services.Allowed(CurrentPrincipal(r).Role, allowed) {
				WriteJSON(w, http.StatusForbidden, ErrorResponse{
					Message: "Role is not authorized to access this route",
					Code:    services.CodeForbidden,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
