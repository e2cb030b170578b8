package httpapi

import (
	"time"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

type AccountDTO struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	FirstName      string                 `json:"firstName"`
	LastName       string                 `json:"lastName"`
	MiddleInitial  string                 `json:"middleInitial,omitempty"`
	Email          string                 `json:"email"`
	Role           models.Role            `json:"role"`
	Status         models.AccountStatus   `json:"status"`
	StudentID      *string                `json:"studentId,omitempty"`
	AvatarURL      *string                `json:"avatarUrl,omitempty"`
	StudentProfile *models.StudentProfile `json:"studentProfile,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func toAccountDTO(account models.Account) AccountDTO {
	return AccountDTO{
		ID:             account.ID,
		Name:           account.FullName(),
		FirstName:      account.FirstName,
		LastName:       account.LastName,
		MiddleInitial:  account.MiddleInitial,
		Email:          account.Email,
		Role:           account.Role,
		Status:         account.Status,
		StudentID:      account.StudentID,
		AvatarURL:      account.AvatarURL,
		StudentProfile: account.StudentProfile,
		CreatedAt:      account.CreatedAt,
		UpdatedAt:      account.UpdatedAt,
	}
}

func toAccountDTOs(accounts []models.Account) []AccountDTO {
	items := make([]AccountDTO, 0, len(accounts))
	for _, account := range accounts {
		items = append(items, toAccountDTO(account))
	}
	return items
}

// AuthResponse is returned by every endpoint that issues a session token.
type AuthResponse struct {
	AccountDTO
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Message   string    `json:"message,omitempty"`
}

func toAuthResponse(result services.AuthResult, message string) AuthResponse {
	return AuthResponse{
		AccountDTO: toAccountDTO(result.Account),
		Token:      result.Token,
		ExpiresAt:  result.ExpiresAt,
		Message:    message,
	}
}

type PaymentDTO struct {
	models.PaymentView
	StudentName string `json:"studentName"`
}

func toPaymentDTOs(views []models.PaymentView) []PaymentDTO {
	items := make([]PaymentDTO, 0, len(views))
	for _, view := range views {
		items = append(items, PaymentDTO{PaymentView: view, StudentName: view.StudentName()})
	}
	return items
}

type ListResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
}

type PagedResponse struct {
	Items    []models.AuditLogEntry `json:"items"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"pageSize"`
}
