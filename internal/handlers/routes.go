package handlers

import (
	"net/http"

	"github.com/dlms-org/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// Services groups the use-cases exposed over HTTP.
type Services struct {
	Users       *services.UserService
	Exams       *services.ExamService
	Payments    *services.PaymentService
	Eligibility *services.EligibilityService
	Licenses    *services.LicenseService
	Renewals    *services.RenewalService
	Violations  *services.ViolationService
}

// Mount registers every API route on r.
func Mount(r chi.Router, svc Services, jwtSecret string) {
	auth := NewAuthenticator(svc.Users, jwtSecret)

	r.Get("/healthz", Healthz)
	r.With(auth.RequireAuth).Get("/me", auth.Me)

	r.Route("/eligibility", func(r chi.Router) {
		EligibilityRouter(r, svc.Eligibility, auth)
	})
	r.Route("/license", func(r chi.Router) {
		LicenseRouter(r, svc.Licenses, auth)
	})
	r.Route("/renewals", func(r chi.Router) {
		RenewalRouter(r, svc.Renewals, svc.Licenses, auth)
	})
	r.Route("/payments", func(r chi.Router) {
		PaymentRouter(r, svc.Payments, auth)
	})
	r.Route("/exams", func(r chi.Router) {
		ExamRouter(r, svc.Exams, auth)
	})
	r.Route("/violations", func(r chi.Router) {
		ViolationRouter(r, svc.Violations, auth)
	})
	r.Route("/users/{userId}", func(r chi.Router) {
		UserRouter(r, svc, auth)
	})
}

// UserRouter registers the per-user history routes.
func UserRouter(r chi.Router, svc Services, auth *Authenticator) {
	r.Use(auth.RequireAuth)
	r.Get("/payments", NewPaymentHandler(svc.Payments).ListByUser)
	r.Get("/exams", NewExamHandler(svc.Exams).ListByUser)
	r.Get("/violations", NewViolationHandler(svc.Violations).ListByUser)
	r.Get("/renewals", NewRenewalHandler(svc.Renewals, svc.Licenses).ListByUser)
}

// Healthz reports that the process is serving requests.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownedUserID parses {userId} and checks the caller may read that user's
// records. It writes the error response itself.
func ownedUserID(w http.ResponseWriter, r *http.Request, staff ...string) (int, bool) {
	userID, err := parseIDParam(r, "userId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if !canAccessUser(r.Context(), userID, staff...) {
		writeError(w, http.StatusForbidden, "cannot view another user's records")
		return 0, false
	}
	return userID, true
}
