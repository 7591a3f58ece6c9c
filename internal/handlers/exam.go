package handlers

import (
	"net/http"
	"time"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/dlms-org/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type ExamHandler struct {
	exams *services.ExamService
}

func NewExamHandler(exams *services.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// ExamRouter registers exam routes on the given router.
func ExamRouter(r chi.Router, exams *services.ExamService, auth *Authenticator) {
	handler := NewExamHandler(exams)
	r.With(auth.RequireAuth, RequireRole(types.RoleExaminer)).Post("/", handler.Record)
}

type RecordExamRequest struct {
	UserID    int       `json:"userId"`
	ExamType  string    `json:"examType"`
	Score     int       `json:"score"`
	DateTaken time.Time `json:"dateTaken"`
	Notes     string    `json:"notes"`
}

type ExamResponse struct {
	Success bool             `json:"success"`
	Result  types.ExamResult `json:"result"`
}

type ExamListResponse struct {
	Success bool               `json:"success"`
	Items   []types.ExamResult `json:"items"`
}

// Record stores a graded attempt. The caller is recorded as examiner.
func (h *ExamHandler) Record(w http.ResponseWriter, r *http.Request) {
	examiner, _ := currentUser(r.Context())

	var req RecordExamRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.exams.Record(r.Context(), services.RecordExamInput{
		UserID:     req.UserID,
		ExamType:   types.ExamType(req.ExamType),
		Score:      req.Score,
		DateTaken:  req.DateTaken,
		ExaminerID: examiner.ID,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ExamResponse{Success: true, Result: result})
}

func (h *ExamHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := ownedUserID(w, r, types.RoleExaminer)
	if !ok {
		return
	}
	items, err := h.exams.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExamListResponse{Success: true, Items: items})
}
