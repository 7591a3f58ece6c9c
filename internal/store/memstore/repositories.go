package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dlms-org/apiserver/internal/store"
	"github.com/dlms-org/apiserver/types"
)

type UserRepository struct{ s *Store }

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.User{}, err
	}
	user, ok := r.s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.User{}, err
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return types.User{}, store.ErrConflict
		}
	}
	now := r.s.now()
	user.ID = r.s.nextID()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = user
	return user, nil
}

type ExamRepository struct{ s *Store }

func (r *ExamRepository) Create(_ context.Context, result types.ExamResult) (types.ExamResult, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.ExamResult{}, err
	}
	if _, ok := r.s.users[result.UserID]; !ok {
		return types.ExamResult{}, store.ErrNotFound
	}
	result.ID = r.s.nextID()
	result.CreatedAt = r.s.now()
	r.s.exams[result.ID] = result
	return result, nil
}

func (r *ExamRepository) ListByUser(_ context.Context, userID int) ([]types.ExamResult, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.list(userID, func(types.ExamResult) bool { return true }), nil
}

func (r *ExamRepository) LatestPassed(_ context.Context, userID int, examType types.ExamType) (types.ExamResult, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.ExamResult{}, err
	}
	results := r.list(userID, func(e types.ExamResult) bool { return e.Passed && e.ExamType == examType })
	if len(results) == 0 {
		return types.ExamResult{}, store.ErrNotFound
	}
	return results[0], nil
}

func (r *ExamRepository) list(userID int, keep func(types.ExamResult) bool) []types.ExamResult {
	return sortedValues(r.s.exams,
		func(e types.ExamResult) bool { return e.UserID == userID && keep(e) },
		func(a, b types.ExamResult) bool { return newestFirst(a.DateTaken, b.DateTaken, a.ID, b.ID) },
	)
}

type PaymentRepository struct{ s *Store }

func (r *PaymentRepository) Create(_ context.Context, payment types.PaymentRecord) (types.PaymentRecord, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.PaymentRecord{}, err
	}
	if _, ok := r.s.users[payment.UserID]; !ok {
		return types.PaymentRecord{}, store.ErrNotFound
	}
	for _, existing := range r.s.payments {
		if existing.TransactionID == payment.TransactionID {
			return types.PaymentRecord{}, store.ErrConflict
		}
	}
	payment.ID = r.s.nextID()
	r.s.payments[payment.ID] = payment
	return payment, nil
}

func (r *PaymentRepository) Get(_ context.Context, id int) (types.PaymentRecord, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.PaymentRecord{}, err
	}
	payment, ok := r.s.payments[id]
	if !ok {
		return types.PaymentRecord{}, store.ErrNotFound
	}
	return payment, nil
}

func (r *PaymentRepository) ListByUser(_ context.Context, userID int) ([]types.PaymentRecord, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.list(userID, func(types.PaymentRecord) bool { return true }), nil
}

func (r *PaymentRepository) LatestVerified(_ context.Context, userID int) (types.PaymentRecord, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.PaymentRecord{}, err
	}
	payments := r.list(userID, func(p types.PaymentRecord) bool { return p.Status == types.PaymentVerified })
	if len(payments) == 0 {
		return types.PaymentRecord{}, store.ErrNotFound
	}
	return payments[0], nil
}

func (r *PaymentRepository) Review(_ context.Context, id int, status types.PaymentStatus, adminID int, notes string, at time.Time) (types.PaymentRecord, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.PaymentRecord{}, err
	}
	payment, ok := r.s.payments[id]
	if !ok {
		return types.PaymentRecord{}, store.ErrNotFound
	}
	if payment.Status != types.PaymentPending {
		return types.PaymentRecord{}, store.ErrStaleState
	}
	payment.Status = status
	payment.ReviewedBy = adminID
	payment.AdminNotes = notes
	payment.ReviewedAt = &at
	r.s.payments[id] = payment
	return payment, nil
}

func (r *PaymentRepository) list(userID int, keep func(types.PaymentRecord) bool) []types.PaymentRecord {
	return sortedValues(r.s.payments,
		func(p types.PaymentRecord) bool { return p.UserID == userID && keep(p) },
		func(a, b types.PaymentRecord) bool { return newestFirst(a.PaymentDate, b.PaymentDate, a.ID, b.ID) },
	)
}

type LicenseRepository struct{ s *Store }

func (r *LicenseRepository) Create(_ context.Context, license types.License) (types.License, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.License{}, err
	}
	if r.s.numberTaken(license.Number, 0) {
		return types.License{}, store.ErrDuplicateNumber
	}
	if license.Status != types.LicenseRevoked {
		if _, ok := r.s.currentLicense(license.UserID); ok {
			return types.License{}, store.ErrConflict
		}
	}
	now := r.s.now()
	license.ID = r.s.nextID()
	license.CreatedAt, license.UpdatedAt = now, now
	license = cloneLicense(license)
	r.s.licenses[license.ID] = license
	return cloneLicense(license), nil
}

func (r *LicenseRepository) GetCurrentByUserID(_ context.Context, userID int) (types.License, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.License{}, err
	}
	license, ok := r.s.currentLicense(userID)
	if !ok {
		return types.License{}, store.ErrNotFound
	}
	return cloneLicense(license), nil
}

func (r *LicenseRepository) GetByNumber(_ context.Context, number string) (types.License, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.License{}, err
	}
	for _, license := range r.s.licenses {
		if license.Number == number {
			return cloneLicense(license), nil
		}
	}
	return types.License{}, store.ErrNotFound
}

type RenewalRepository struct{ s *Store }

func (r *RenewalRepository) Create(_ context.Context, renewal types.RenewalApplication) (types.RenewalApplication, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.RenewalApplication{}, err
	}
	if _, ok := r.s.licenses[renewal.LicenseID]; !ok {
		return types.RenewalApplication{}, store.ErrNotFound
	}
	renewal.ID = r.s.nextID()
	r.s.renewals[renewal.ID] = renewal
	return renewal, nil
}

func (r *RenewalRepository) Get(_ context.Context, id int) (types.RenewalApplication, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.RenewalApplication{}, err
	}
	renewal, ok := r.s.renewals[id]
	if !ok {
		return types.RenewalApplication{}, store.ErrNotFound
	}
	return renewal, nil
}

func (r *RenewalRepository) ListByUser(_ context.Context, userID int) ([]types.RenewalApplication, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.list(func(a types.RenewalApplication) bool { return a.UserID == userID }), nil
}

func (r *RenewalRepository) ListByStatus(_ context.Context, status types.RenewalStatus, offset, limit int) ([]types.RenewalApplication, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	all := r.list(func(a types.RenewalApplication) bool { return status == "" || a.Status == status })
	if offset >= len(all) {
		return []types.RenewalApplication{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *RenewalRepository) Transition(
	_ context.Context,
	id int,
	from []types.RenewalStatus,
	to types.RenewalStatus,
	adminID int,
	notes string,
	at time.Time,
) (types.RenewalApplication, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.RenewalApplication{}, err
	}
	renewal, ok := r.s.renewals[id]
	if !ok {
		return types.RenewalApplication{}, store.ErrNotFound
	}
	if !slices.Contains(from, renewal.Status) {
		return types.RenewalApplication{}, store.ErrStaleState
	}
	renewal.Status = to
	renewal.ReviewedBy = adminID
	renewal.AdminNotes = notes
	renewal.ReviewedAt = &at
	r.s.renewals[id] = renewal
	return renewal, nil
}

func (r *RenewalRepository) Reissue(_ context.Context, id int, params store.ReissueParams) (types.RenewalApplication, types.License, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.RenewalApplication{}, types.License{}, err
	}
	renewal, ok := r.s.renewals[id]
	if !ok || renewal.Status != types.RenewalApproved || renewal.NewLicenseIssued {
		return types.RenewalApplication{}, types.License{}, store.ErrStaleState
	}
	license, ok := r.s.currentLicense(renewal.UserID)
	if !ok {
		return types.RenewalApplication{}, types.License{}, store.ErrNotFound
	}
	if r.s.numberTaken(params.Number, license.ID) {
		return types.RenewalApplication{}, types.License{}, store.ErrDuplicateNumber
	}

	license.Number = params.Number
	license.IssueDate = params.IssueDate
	license.ExpiryDate = params.ExpiryDate
	license.Status = types.LicenseValid
	license.IssuedBy = params.AdminID
	license.RenewalCount++
	license.UpdatedAt = params.IssueDate
	r.s.licenses[license.ID] = license

	issuedAt := params.IssueDate
	renewal.Status = types.RenewalIssued
	renewal.NewLicenseIssued = true
	renewal.IssuedAt = &issuedAt
	r.s.renewals[id] = renewal
	return renewal, cloneLicense(license), nil
}

func (r *RenewalRepository) list(keep func(types.RenewalApplication) bool) []types.RenewalApplication {
	return sortedValues(r.s.renewals, keep, func(a, b types.RenewalApplication) bool {
		return newestFirst(a.SubmissionDate, b.SubmissionDate, a.ID, b.ID)
	})
}

type ViolationRepository struct{ s *Store }

func (r *ViolationRepository) Create(_ context.Context, violation types.Violation) (types.Violation, types.License, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return types.Violation{}, types.License{}, err
	}
	license, ok := r.s.licenses[violation.LicenseID]
	if !ok || license.Status == types.LicenseRevoked {
		return types.Violation{}, types.License{}, store.ErrNotFound
	}
	license.Points += violation.Points
	license.UpdatedAt = r.s.now()
	r.s.licenses[license.ID] = license

	violation.ID = r.s.nextID()
	violation.UserID = license.UserID
	violation.CreatedAt = license.UpdatedAt
	r.s.violations[violation.ID] = violation
	return violation, cloneLicense(license), nil
}

func (r *ViolationRepository) ListByUser(_ context.Context, userID int) ([]types.Violation, error) {
	err := r.s.lock()
	defer r.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return sortedValues(r.s.violations,
		func(v types.Violation) bool { return v.UserID == userID },
		func(a, b types.Violation) bool { return newestFirst(a.OccurredAt, b.OccurredAt, a.ID, b.ID) },
	), nil
}
