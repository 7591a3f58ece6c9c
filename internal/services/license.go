package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dlms-org/apiserver/internal/store"
	"github.com/dlms-org/apiserver/types"
)

// LicenseRepository defines persistence operations for licenses.
type LicenseRepository interface {
	Create(ctx context.Context, license types.License) (types.License, error)
	GetCurrentByUserID(ctx context.Context, userID int) (types.License, error)
	GetByNumber(ctx context.Context, number string) (types.License, error)
}

// IssueInput is an admin request to issue a license to a user.
type IssueInput struct {
	UserID     int
	Class      types.LicenseClass
	AdminID    int
	AdminNotes string
}

// IssueResult reports the license a user holds after an issuance request.
// AlreadyIssued is true when the license existed before the request.
type IssueResult struct {
	License       types.License
	AlreadyIssued bool
}

// LicenseService issues licenses. Issuance is exactly-once per user: repeated
// or concurrent requests for the same user all resolve to the same license.
type LicenseService struct {
	licenses      LicenseRepository
	payments      PaymentRepository
	eligibility   *EligibilityService
	validityYears int
	opts          options
}

func NewLicenseService(
	licenses LicenseRepository,
	payments PaymentRepository,
	eligibility *EligibilityService,
	validityYears int,
	opts ...Option,
) *LicenseService {
	o := newOptions(opts)
	o.logger = o.logger.With().Str("service", "license").Logger()
	if validityYears < 1 {
		validityYears = 5
	}
	return &LicenseService{
		licenses:      licenses,
		payments:      payments,
		eligibility:   eligibility,
		validityYears: validityYears,
		opts:          o,
	}
}

// GetCurrent returns the user's current license.
func (s *LicenseService) GetCurrent(ctx context.Context, userID int) (types.License, error) {
	license, err := s.licenses.GetCurrentByUserID(ctx, userID)
	if err != nil {
		return types.License{}, storeErr("load current license", err)
	}
	return license, nil
}

// IssueForPayment issues a license to the user who made the payment.
func (s *LicenseService) IssueForPayment(ctx context.Context, paymentID int, in IssueInput) (IssueResult, error) {
	payment, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		return IssueResult{}, storeErr("load payment", err)
	}
	in.UserID = payment.UserID
	return s.Issue(ctx, in)
}

// Issue creates the user's license, or returns the existing one unchanged.
//
// Eligibility is re-evaluated here rather than trusted from the caller. The
// storage layer rejects a second current license for the same user, so when
// two requests race the loser returns the winner's license.
func (s *LicenseService) Issue(ctx context.Context, in IssueInput) (IssueResult, error) {
	class := types.LicenseClass(strings.ToUpper(strings.TrimSpace(string(in.Class))))
	if class == "" {
		class = types.DefaultLicenseClass
	}
	if !class.Valid() {
		return IssueResult{}, invalidInput("unknown license class " + string(in.Class))
	}

	verdict, err := s.eligibility.Evaluate(ctx, in.UserID)
	if err != nil {
		return IssueResult{}, err
	}
	if verdict.License != nil {
		s.opts.metrics.RecordIssuance("already_issued")
		return IssueResult{License: *verdict.License, AlreadyIssued: true}, nil
	}
	if !verdict.Eligible {
		s.opts.metrics.RecordIssuance("ineligible")
		return IssueResult{}, fmt.Errorf("%w: %s", ErrIneligibleUser, verdict.Reason)
	}

	now := s.opts.now().UTC()
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.opts.newNumber(now)
		if err != nil {
			return IssueResult{}, err
		}

		license, err := s.licenses.Create(ctx, types.License{
			Number:       number,
			UserID:       in.UserID,
			Class:        class,
			Status:       types.LicenseValid,
			IssueDate:    now,
			ExpiryDate:   now.AddDate(s.validityYears, 0, 0),
			Restrictions: class.DefaultRestrictions(),
			IssuedBy:     in.AdminID,
			AdminNotes:   strings.TrimSpace(in.AdminNotes),
		})
		switch {
		case err == nil:
			s.opts.metrics.RecordIssuance("issued")
			s.opts.logger.Info().
				Int("user_id", license.UserID).
				Int("license_id", license.ID).
				Str("number", license.Number).
				Int("admin_id", in.AdminID).
				Msg("license issued")
			s.opts.publish(ctx, types.ChannelLicenseIssued, types.LicenseEvent{
				UserID:     license.UserID,
				LicenseID:  license.ID,
				Number:     license.Number,
				ExpiryDate: license.ExpiryDate,
				ActorID:    in.AdminID,
				OccurredAt: now,
			})
			return IssueResult{License: license}, nil
		case errors.Is(err, store.ErrDuplicateNumber):
			s.opts.logger.Warn().Str("number", number).Msg("license number collision, retrying")
			continue
		case errors.Is(err, store.ErrConflict):
			existing, getErr := s.licenses.GetCurrentByUserID(ctx, in.UserID)
			if getErr != nil {
				return IssueResult{}, storeErr("load current license", getErr)
			}
			s.opts.metrics.RecordIssuance("already_issued")
			return IssueResult{License: existing, AlreadyIssued: true}, nil
		default:
			return IssueResult{}, storeErr("create license", err)
		}
	}

	return IssueResult{}, fmt.Errorf("allocate license number after %d attempts: %w", maxNumberAttempts, ErrUnavailable)
}
