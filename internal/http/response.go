package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"dormsync-backend-go/internal/services"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Message: message})
}

// mapServiceError writes err and reports whether anything was written.
// Unknown errors are logged and answered with a generic 500.
func mapServiceError(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil {
		return false
	}
	var svcErr services.ServiceError
	if errors.As(err, &svcErr) {
		WriteJSON(w, svcErr.Status, ErrorResponse{Message: svcErr.Message, Code: svcErr.Code})
		return true
	}
	log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "Internal server error", Code: "INTERNAL"})
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid payload", Code: services.CodeValidation})
		return false
	}
	return true
}

func requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IP:        resolveClientIP(r),
		UserAgent: trimString(r.UserAgent(), 512),
	}
}

// resolveClientIP returns the peer host. Forwarding headers are only
// honoured through middleware.RealIP when the proxy is trusted.
func resolveClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func trimString(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= maxLen {
		return trimmed
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
		cut--
	}
	return strings.ToValidUTF8(trimmed[:cut], "")
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
