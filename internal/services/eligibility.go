package services

import (
	"context"
	"strings"

	"github.com/dlms-org/apiserver/types"
)

const reasonAlreadyLicensed = "already licensed"

// EligibilityService evaluates whether a user may be issued a license.
//
// A user is eligible once a payment has been verified and both the theory
// and practical exams have a passing result. When several attempts exist the
// latest passing result is the one that counts. A user who already holds a
// current license is always reported as eligible, together with that license.
type EligibilityService struct {
	users    UserRepository
	exams    ExamRepository
	payments PaymentRepository
	licenses LicenseRepository
	opts     options
}

func NewEligibilityService(
	users UserRepository,
	exams ExamRepository,
	payments PaymentRepository,
	licenses LicenseRepository,
	opts ...Option,
) *EligibilityService {
	o := newOptions(opts)
	o.logger = o.logger.With().Str("service", "eligibility").Logger()
	return &EligibilityService{
		users:    users,
		exams:    exams,
		payments: payments,
		licenses: licenses,
		opts:     o,
	}
}

// Evaluate computes the eligibility verdict for userID. It has no side effects.
func (s *EligibilityService) Evaluate(ctx context.Context, userID int) (types.Eligibility, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return types.Eligibility{}, storeErr("load user", err)
	}

	verdict := types.Eligibility{UserID: userID}

	license, err := s.licenses.GetCurrentByUserID(ctx, userID)
	licensed, err := found("load current license", err)
	if err != nil {
		return types.Eligibility{}, err
	}
	if licensed {
		verdict.Eligible = true
		verdict.Status = types.EligibilityAlreadyLicensed
		verdict.Reason = reasonAlreadyLicensed
		verdict.License = &license
		verdict.PaymentVerified = true
		verdict.TheoryPassed = true
		verdict.PracticalPassed = true
		s.opts.metrics.RecordEligibility(string(verdict.Status))
		return verdict, nil
	}

	_, err = s.payments.LatestVerified(ctx, userID)
	if verdict.PaymentVerified, err = found("load verified payment", err); err != nil {
		return types.Eligibility{}, err
	}
	_, err = s.exams.LatestPassed(ctx, userID, types.ExamTheory)
	if verdict.TheoryPassed, err = found("load theory result", err); err != nil {
		return types.Eligibility{}, err
	}
	_, err = s.exams.LatestPassed(ctx, userID, types.ExamPractical)
	if verdict.PracticalPassed, err = found("load practical result", err); err != nil {
		return types.Eligibility{}, err
	}

	var unmet []string
	if !verdict.PaymentVerified {
		unmet = append(unmet, "payment not verified")
	}
	if !verdict.TheoryPassed {
		unmet = append(unmet, "theory exam not passed")
	}
	if !verdict.PracticalPassed {
		unmet = append(unmet, "practical exam not passed")
	}

	if len(unmet) == 0 {
		verdict.Eligible = true
		verdict.Status = types.EligibilityEligible
		verdict.Reason = "all requirements met"
	} else {
		verdict.Status = types.EligibilityIneligible
		verdict.Reason = strings.Join(unmet, "; ")
	}

	s.opts.metrics.RecordEligibility(string(verdict.Status))
	s.opts.logger.Debug().
		Int("user_id", userID).
		Str("status", string(verdict.Status)).
		Str("reason", verdict.Reason).
		Msg("eligibility evaluated")
	return verdict, nil
}

