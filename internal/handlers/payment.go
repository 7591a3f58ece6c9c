package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// PaymentRouter registers payment routes on the given router.
func PaymentRouter(r chi.Router, payments *services.PaymentService, auth *Authenticator) {
	handler := NewPaymentHandler(payments)

	r.Use(auth.RequireAuth)
	r.Post("/", handler.Submit)
	r.Get("/{id}", handler.Get)
	r.With(RequireRole(types.RoleAdmin)).Patch("/{id}/status", handler.Review)
}

type SubmitPaymentRequest struct {
	Amount        int64     `json:"amount"`
	TransactionID string    `json:"transactionId"`
	PaymentDate   time.Time `json:"paymentDate"`
}

type ReviewPaymentRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
	AdminID    int    `json:"adminId"`
}

type PaymentResponse struct {
	Success bool                `json:"success"`
	Payment types.PaymentRecord `json:"payment"`
}

type PaymentListResponse struct {
	Success bool                  `json:"success"`
	Items   []types.PaymentRecord `json:"items"`
}

// Submit records a payment made by the caller.
func (h *PaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	var req SubmitPaymentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.payments.Submit(r.Context(), services.SubmitPaymentInput{
		UserID:        user.ID,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		PaymentDate:   req.PaymentDate,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{Success: true, Payment: payment})
}

func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payment, err := h.payments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !canAccessUser(r.Context(), payment.UserID) {
		writeError(w, http.StatusForbidden, "cannot view another user's payment")
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{Success: true, Payment: payment})
}

// Review verifies or rejects a pending payment.
func (h *PaymentHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ReviewPaymentRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adminID, err := actorID(r.Context(), req.AdminID)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	status := types.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	payment, err := h.payments.Review(r.Context(), id, status, adminID, req.AdminNotes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{Success: true, Payment: payment})
}

func (h *PaymentHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r)
	if !ok {
		return
	}
	items, err := h.payments.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentListResponse{Success: true, Items: items})
}
