package handlers

import (
	"net/http"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type LicenseHandler struct {
	licenses *services.LicenseService
}

func NewLicenseHandler(licenses *services.LicenseService) *LicenseHandler {
	return &LicenseHandler{licenses: licenses}
}

// LicenseRouter registers license routes on the given router.
func LicenseRouter(r chi.Router, licenses *services.LicenseService, auth *Authenticator) {
	handler := NewLicenseHandler(licenses)

	r.Use(auth.RequireAuth)
	r.With(RequireRole(types.RoleAdmin)).Post("/issue/{paymentId}", handler.Issue)
	r.Get("/{userId}", handler.GetCurrent)
}

type IssueLicenseRequest struct {
	AdminID      int    `json:"adminId"`
	AdminNotes   string `json:"adminNotes"`
	LicenseClass string `json:"licenseClass"`
}

type IssueLicenseResponse struct {
	Success       bool          `json:"success"`
	AlreadyIssued bool          `json:"alreadyIssued"`
	License       types.License `json:"license"`
}

type LicenseResponse struct {
	Success bool          `json:"success"`
	License types.License `json:"license"`
}

// Issue issues a license to the user behind a payment. Repeating the call
// returns the existing license with alreadyIssued set.
func (h *LicenseHandler) Issue(w http.ResponseWriter, r *http.Request) {
	paymentID, err := parseIDParam(r, "paymentId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req IssueLicenseRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adminID, err := actorID(r.Context(), req.AdminID)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	res, err := h.licenses.IssueForPayment(r.Context(), paymentID, services.IssueInput{
		Class:      types.LicenseClass(req.LicenseClass),
		AdminID:    adminID,
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.AlreadyIssued {
		status = http.StatusOK
	}
	writeJSON(w, status, IssueLicenseResponse{
		Success:       true,
		AlreadyIssued: res.AlreadyIssued,
		License:       res.License,
	})
}

// GetCurrent returns a user's current license. Traffic police may look up
// any holder.
func (h *LicenseHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !canAccessUser(r.Context(), userID, types.RoleTrafficPolice) {
		writeError(w, http.StatusForbidden, "cannot view another user's license")
		return
	}

	license, err := h.licenses.GetCurrent(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LicenseResponse{Success: true, License: license})
}
