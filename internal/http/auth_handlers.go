package httpapi

import (
	"net/http"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"
)

type RegisterProfile struct {
	Phone                 string `json:"phone"`
	EmergencyContactName  string `json:"emergencyContactName"`
	EmergencyContactPhone string `json:"emergencyContactPhone"`
}

type RegisterRequest struct {
	Name           string           `json:"name"`
	FirstName      string           `json:"firstName"`
	LastName       string           `json:"lastName"`
	MiddleInitial  string           `json:"middleInitial"`
	Email          string           `json:"email"`
	Password       string           `json:"password"`
	Role           models.Role      `json:"role"`
	StudentID      string           `json:"studentId"`
	StudentProfile *RegisterProfile `json:"studentProfile"`
}

type RegisterResponse struct {
	Message       string               `json:"message"`
	Email         string               `json:"email"`
	Status        models.AccountStatus `json:"status"`
	CodeDelivered *bool                `json:"codeDelivered,omitempty"`
	Account       *AccountDTO          `json:"user,omitempty"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type GoogleLoginRequest struct {
	Token string `json:"token"`
}

type PendingResponse struct {
	Message string               `json:"message"`
	Status  models.AccountStatus `json:"status"`
	Pending bool                 `json:"pending"`
}

type ProfileRequest struct {
	FirstName             *string `json:"firstName"`
	LastName              *string `json:"lastName"`
	MiddleInitial         *string `json:"middleInitial"`
	Email                 *string `json:"email"`
	Password              *string `json:"password"`
	Phone                 *string `json:"phone"`
	EmergencyContactName  *string `json:"emergencyContactName"`
	EmergencyContactPhone *string `json:"emergencyContactPhone"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	OTP      string `json:"otp"`
	Password string `json:"password"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := services.RegisterInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		MiddleInitial: req.MiddleInitial,
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		StudentID:     req.StudentID,
	}
	if req.StudentProfile != nil {
		in.Phone = req.StudentProfile.Phone
		in.EmergencyContactName = req.StudentProfile.EmergencyContactName
		in.EmergencyContactPhone = req.StudentProfile.EmergencyContactPhone
	}
	result, err := s.Accounts.Register(r.Context(), in, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	account := result.Account
	if account.Status != models.StatusUnverified {
		dto := toAccountDTO(account)
		WriteJSON(w, http.StatusCreated, RegisterResponse{
			Message: "Admin registered successfully.",
			Email:   account.Email,
			Status:  account.Status,
			Account: &dto,
		})
		return
	}
	delivered := result.CodeDelivered
	resp := RegisterResponse{
		Message:       "Registration successful. OTP sent to email.",
		Email:         account.Email,
		Status:        account.Status,
		CodeDelivered: &delivered,
	}
	status := http.StatusCreated
	if result.Resent {
		resp.Message = "Account exists but unverified. New OTP sent."
		status = http.StatusOK
	}
	if !delivered {
		resp.Message = "Registration saved but the verification email could not be sent. Register again to resend."
	}
	WriteJSON(w, status, resp)
}

func (s *Server) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Accounts.VerifyOTP(r.Context(), req.Email, req.OTP, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAuthResponse(result, "Email verified successfully"))
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Accounts.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAuthResponse(result, ""))
}

func (s *Server) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req GoogleLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := s.Accounts.FederatedLogin(r.Context(), req.Token, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	if result.Pending {
		WriteJSON(w, http.StatusCreated, PendingResponse{
			Message: "Registration successful. Please wait for admin approval.",
			Status:  models.StatusPending,
			Pending: true,
		})
		return
	}
	WriteJSON(w, http.StatusOK, toAuthResponse(result.AuthResult, ""))
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	account, err := s.Accounts.Me(r.Context(), CurrentUserID(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := s.Accounts.UpdateProfile(r.Context(), CurrentPrincipal(r), services.ProfileUpdateInput{
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		MiddleInitial:         req.MiddleInitial,
		Email:                 req.Email,
		Password:              req.Password,
		Phone:                 req.Phone,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toAccountDTO(account))
}

func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if mapServiceError(w, r, s.Accounts.ForgotPassword(r.Context(), req.Email)) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "If that email is registered, a reset code has been sent."})
}

func (s *Server) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if mapServiceError(w, r, s.Accounts.VerifyResetCode(r.Context(), req.Email, req.OTP)) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Code verified"})
}

func (s *Server) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if mapServiceError(w, r, s.Accounts.ResetPassword(r.Context(), req.Email, req.OTP, req.Password, requestMeta(r))) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset. You can now log in."})
}
