package handlers

import (
	"net/http"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type ViolationHandler struct {
	violations *services.ViolationService
}

func NewViolationHandler(violations *services.ViolationService) *ViolationHandler {
	return &ViolationHandler{violations: violations}
}

// ViolationRouter registers violation routes on the given router.
func ViolationRouter(r chi.Router, violations *services.ViolationService, auth *Authenticator) {
	handler := NewViolationHandler(violations)
	r.With(auth.RequireAuth, RequireRole(types.RoleTrafficPolice)).Post("/", handler.Record)
}

type RecordViolationRequest struct {
	LicenseNumber string `json:"licenseNumber"`
	Offense       string `json:"offense"`
	Points        int    `json:"points"`
	FineAmount    int64  `json:"fineAmount"`
	Location      string `json:"location"`
}

type ViolationResponse struct {
	Success   bool            `json:"success"`
	Violation types.Violation `json:"violation"`
	License   types.License   `json:"license"`
}

type ViolationListResponse struct {
	Success bool              `json:"success"`
	Items   []types.Violation `json:"items"`
}

func (h *ViolationHandler) Record(w http.ResponseWriter, r *http.Request) {
	officer, _ := currentUser(r.Context())

	var req RecordViolationRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.violations.Record(r.Context(), services.RecordViolationInput{
		LicenseNumber: req.LicenseNumber,
		Offense:       req.Offense,
		Points:        req.Points,
		FineAmount:    req.FineAmount,
		Location:      req.Location,
		OfficerID:     officer.ID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ViolationResponse{Success: true, Violation: res.Violation, License: res.License})
}

func (h *ViolationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r, types.RoleTrafficPolice)
	if !ok {
		return
	}
	items, err := h.violations.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ViolationListResponse{Success: true, Items: items})
}
