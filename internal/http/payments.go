package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"dormsync-backend-go/internal/models"
	"dormsync-backend-go/internal/services"

	"github.com/go-chi/chi/v5"
)

type PaymentRequest struct {
	StudentID string    `json:"studentId"`
	Amount    float64   `json:"amount"`
	Type      string    `json:"type"`
	DueDate   time.Time `json:"dueDate"`
	Notes     string    `json:"notes"`
}

type BulkPaymentRequest struct {
	StudentIDs []string  `json:"studentIds"`
	Amount     float64   `json:"amount"`
	Type       string    `json:"type"`
	DueDate    time.Time `json:"dueDate"`
	Notes      string    `json:"notes"`
}

type PaymentUpdateRequest struct {
	Status    *models.PaymentStatus `json:"status"`
	Amount    *float64              `json:"amount"`
	Type      *string               `json:"type"`
	DueDate   *time.Time            `json:"dueDate"`
	Notes     *string               `json:"notes"`
	StudentID *string               `json:"studentId"`
}

type BulkPaymentResponse struct {
	Message string           `json:"message"`
	Count   int              `json:"count"`
	Items   []models.Payment `json:"items"`
}

const receiptField = "receipt_image"

func (s *Server) ListPayments(w http.ResponseWriter, r *http.Request) {
	items, err := s.Payments.List(r.Context(), models.PaymentStatus(r.URL.Query().Get("status")))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toPaymentDTOs(items))
}

func (s *Server) MyPayments(w http.ResponseWriter, r *http.Request) {
	items, err := s.Payments.MyHistory(r.Context(), CurrentPrincipal(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, toPaymentDTOs(items))
}

func (s *Server) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := s.Payments.Create(r.Context(), CurrentPrincipal(r), services.PaymentInput{
		StudentID: req.StudentID,
		Amount:    req.Amount,
		Type:      req.Type,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, payment)
}

func (s *Server) BulkCreatePayments(w http.ResponseWriter, r *http.Request) {
	var req BulkPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := s.Payments.BulkCreate(r.Context(), CurrentPrincipal(r), services.BulkPaymentInput{
		StudentIDs: req.StudentIDs,
		Amount:     req.Amount,
		Type:       req.Type,
		DueDate:    req.DueDate,
		Notes:      req.Notes,
	}, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusCreated, BulkPaymentResponse{
		Message: "Created " + strconv.Itoa(len(items)) + " payments",
		Count:   len(items),
		Items:   items,
	})
}

// UpdatePayment accepts either JSON or a multipart form carrying the
// receipt image next to the editable fields.
func (s *Server) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var (
		req     PaymentUpdateRequest
		receipt *services.Upload
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(services.MaxImageBytes + 1<<20); err != nil {
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid multipart payload", Code: services.CodeValidation})
			return
		}
		parsed, ok := paymentFormFields(w, r)
		if !ok {
			return
		}
		req = parsed
		file, header, err := r.FormFile(receiptField)
		if err == nil {
			defer file.Close()
			receipt = &services.Upload{Filename: header.Filename, Size: header.Size, Body: file}
		} else if err != http.ErrMissingFile {
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid receipt upload", Code: services.CodeValidation})
			return
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}
	payment, err := s.Payments.Update(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), services.PaymentUpdateInput{
		Status:    req.Status,
		Amount:    req.Amount,
		Type:      req.Type,
		DueDate:   req.DueDate,
		Notes:     req.Notes,
		StudentID: req.StudentID,
	}, receipt, requestMeta(r))
	if mapServiceError(w, r, err) {
		return
	}
	WriteJSON(w, http.StatusOK, payment)
}

func paymentFormFields(w http.ResponseWriter, r *http.Request) (PaymentUpdateRequest, bool) {
	var req PaymentUpdateRequest
	invalid := func(field string) (PaymentUpdateRequest, bool) {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Message: "Invalid " + field, Code: services.CodeValidation})
		return PaymentUpdateRequest{}, false
	}
	if value := formValue(r, "status"); value != nil {
		status := models.PaymentStatus(*value)
		req.Status = &status
	}
	if value := formValue(r, "amount"); value != nil {
		amount, err := strconv.ParseFloat(*value, 64)
		if err != nil {
			return invalid("amount")
		}
		req.Amount = &amount
	}
	if value := formValue(r, "dueDate"); value != nil {
		due, err := parseDate(*value)
		if err != nil {
			return invalid("dueDate")
		}
		req.DueDate = &due
	}
	req.Type = formValue(r, "type")
	req.Notes = formValue(r, "notes")
	req.StudentID = formValue(r, "studentId")
	return req, true
}

func formValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	value := strings.TrimSpace(values[0])
	if value == "" {
		return nil
	}
	return &value
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (s *Server) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if mapServiceError(w, r, s.Payments.Delete(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"), requestMeta(r))) {
		return
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Payment removed"})
}

func (s *Server) PaymentReceipt(w http.ResponseWriter, r *http.Request) {
	assetID, err := s.Payments.Receipt(r.Context(), CurrentPrincipal(r), chi.URLParam(r, "id"))
	if mapServiceError(w, r, err) {
		return
	}
	s.serveAsset(w, r, assetID)
}
