package handlers

import (
	"net/http"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type EligibilityHandler struct {
	eligibility *services.EligibilityService
}

func NewEligibilityHandler(eligibility *services.EligibilityService) *EligibilityHandler {
	return &EligibilityHandler{eligibility: eligibility}
}

// EligibilityRouter registers eligibility routes on the given router.
func EligibilityRouter(r chi.Router, eligibility *services.EligibilityService, auth *Authenticator) {
	handler := NewEligibilityHandler(eligibility)
	r.With(auth.RequireAuth).Get("/{userId}", handler.Get)
}

// EligibilityResponse mirrors types.Eligibility with the success flag the
// UI expects.
type EligibilityResponse struct {
	Success         bool                    `json:"success"`
	Eligible        bool                    `json:"eligible"`
	Status          types.EligibilityStatus `json:"status"`
	Reason          string                  `json:"reason"`
	License         *types.License          `json:"license,omitempty"`
	PaymentVerified bool                    `json:"paymentVerified"`
	TheoryPassed    bool                    `json:"theoryPassed"`
	PracticalPassed bool                    `json:"practicalPassed"`
}

func (h *EligibilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !canAccessUser(r.Context(), userID) {
		writeError(w, http.StatusForbidden, "cannot view another user's eligibility")
		return
	}

	verdict, err := h.eligibility.Evaluate(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EligibilityResponse{
		Success:         true,
		Eligible:        verdict.Eligible,
		Status:          verdict.Status,
		Reason:          verdict.Reason,
		License:         verdict.License,
		PaymentVerified: verdict.PaymentVerified,
		TheoryPassed:    verdict.TheoryPassed,
		PracticalPassed: verdict.PracticalPassed,
	})
}
