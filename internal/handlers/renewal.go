package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/go-chi/chi/v5"
)

const (
	maxMultipartMemory = 8 << 20
	maxDocumentBytes   = 10 << 20

	formFieldReason      = "reason"
	formFieldDocument    = "document"
	formFieldDocumentRef = "current_license_document"
)

type RenewalHandler struct {
	renewals *services.RenewalService
	licenses *services.LicenseService
}

func NewRenewalHandler(renewals *services.RenewalService, licenses *services.LicenseService) *RenewalHandler {
	return &RenewalHandler{renewals: renewals, licenses: licenses}
}

// RenewalRouter registers renewal routes on the given router.
func RenewalRouter(r chi.Router, renewals *services.RenewalService, licenses *services.LicenseService, auth *Authenticator) {
	handler := NewRenewalHandler(renewals, licenses)
	admin := RequireRole(types.RoleAdmin)

	r.Use(auth.RequireAuth)
	r.Post("/", handler.Submit)
	r.With(admin).Get("/", handler.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.Get("/document", handler.Document)
		r.With(admin).Patch("/status", handler.UpdateStatus)
		r.With(admin).Post("/issue", handler.Issue)
	})
}

type SubmitRenewalRequest struct {
	Reason                 string `json:"reason"`
	CurrentLicenseDocument string `json:"currentLicenseDocument"`
}

type UpdateRenewalStatusRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
	AdminID    int    `json:"adminId"`
}

type IssueRenewalRequest struct {
	AdminID int `json:"adminId"`
}

type RenewalResponse struct {
	Success bool                     `json:"success"`
	Renewal types.RenewalApplication `json:"renewal"`
}

type RenewalListResponse struct {
	Success bool                       `json:"success"`
	Items   []types.RenewalApplication `json:"items"`
	Page    int                        `json:"page"`
	Limit   int                        `json:"limit"`
}

type IssueRenewalResponse struct {
	Success       bool                      `json:"success"`
	AlreadyIssued bool                      `json:"alreadyIssued"`
	License       types.License             `json:"license"`
	Renewal       *types.RenewalApplication `json:"renewal,omitempty"`
}

// Submit accepts either a multipart form with an optional document file or
// a JSON body carrying a document reference.
func (h *RenewalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r.Context())

	in, err := parseRenewalSubmission(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.UserID = user.ID

	renewal, err := h.renewals.Submit(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RenewalResponse{Success: true, Renewal: renewal})
}

func (h *RenewalHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := types.RenewalStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	items, err := h.renewals.ListByStatus(r.Context(), status, offset, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RenewalListResponse{Success: true, Items: items, Page: page, Limit: limit})
}

func (h *RenewalHandler) Get(w http.ResponseWriter, r *http.Request) {
	renewal, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, RenewalResponse{Success: true, Renewal: renewal})
}

// Document streams the uploaded license scan.
func (h *RenewalHandler) Document(w http.ResponseWriter, r *http.Request) {
	renewal, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	rc, name, err := h.renewals.OpenDocument(r.Context(), renewal.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

// UpdateStatus moves a renewal to under_review, approved or rejected.
func (h *RenewalHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateRenewalStatusRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adminID, err := actorID(r.Context(), req.AdminID)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	var renewal types.RenewalApplication
	switch types.RenewalStatus(strings.ToLower(strings.TrimSpace(req.Status))) {
	case types.RenewalUnderReview:
		renewal, err = h.renewals.MarkUnderReview(r.Context(), id, adminID, req.AdminNotes)
	case types.RenewalApproved:
		renewal, err = h.renewals.Review(r.Context(), services.ReviewInput{
			RenewalID: id, AdminID: adminID, Decision: services.DecisionApprove, Notes: req.AdminNotes,
		})
	case types.RenewalRejected:
		renewal, err = h.renewals.Review(r.Context(), services.ReviewInput{
			RenewalID: id, AdminID: adminID, Decision: services.DecisionReject, Notes: req.AdminNotes,
		})
	default:
		writeError(w, http.StatusBadRequest, "status must be under_review, approved or rejected")
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RenewalResponse{Success: true, Renewal: renewal})
}

// Issue reissues the license for an approved renewal. A repeated call is
// answered with the current license and alreadyIssued set; the license is
// not touched again.
func (h *RenewalHandler) Issue(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req IssueRenewalRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adminID, err := actorID(r.Context(), req.AdminID)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	res, err := h.renewals.IssueRenewed(r.Context(), id, adminID)
	if errors.Is(err, services.ErrAlreadyIssued) {
		h.writeAlreadyIssued(w, r, id)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IssueRenewalResponse{Success: true, License: res.License, Renewal: &res.Renewal})
}

func (h *RenewalHandler) writeAlreadyIssued(w http.ResponseWriter, r *http.Request, id int) {
	renewal, err := h.renewals.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	license, err := h.licenses.GetCurrent(r.Context(), renewal.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, IssueRenewalResponse{
		Success:       true,
		AlreadyIssued: true,
		License:       license,
		Renewal:       &renewal,
	})
}

// loadOwned fetches the renewal named in the URL and checks the caller may
// see it. It writes the error response itself.
func (h *RenewalHandler) loadOwned(w http.ResponseWriter, r *http.Request) (types.RenewalApplication, bool) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return types.RenewalApplication{}, false
	}
	renewal, err := h.renewals.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return types.RenewalApplication{}, false
	}
	if !canAccessUser(r.Context(), renewal.UserID) {
		writeError(w, http.StatusForbidden, "cannot view another user's renewal")
		return types.RenewalApplication{}, false
	}
	return renewal, true
}

func parseRenewalSubmission(w http.ResponseWriter, r *http.Request) (services.SubmitRenewalInput, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req SubmitRenewalRequest
		if err := decodeJSON(w, r, &req, false); err != nil {
			return services.SubmitRenewalInput{}, err
		}
		return services.SubmitRenewalInput{Reason: req.Reason, DocumentRef: req.CurrentLicenseDocument}, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.SubmitRenewalInput{}, errors.New("invalid multipart form")
	}

	in := services.SubmitRenewalInput{
		Reason:      r.FormValue(formFieldReason),
		DocumentRef: r.FormValue(formFieldDocumentRef),
	}
	doc, err := parseDocumentFile(r.MultipartForm)
	if err != nil {
		return services.SubmitRenewalInput{}, err
	}
	in.Document = doc
	return in, nil
}

func parseDocumentFile(form *multipart.Form) (*services.Document, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}
	files := form.File[formFieldDocument]
	switch len(files) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, errors.New("only one document file is allowed")
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	data, err := readFileLimited(file, maxDocumentBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &services.Document{Filename: header.Filename, ContentType: contentType, Data: data}, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}

type RenewalUserListResponse struct {
	Success bool                       `json:"success"`
	Items   []types.RenewalApplication `json:"items"`
}

func (h *RenewalHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r)
	if !ok {
		return
	}
	items, err := h.renewals.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RenewalUserListResponse{Success: true, Items: items})
}
