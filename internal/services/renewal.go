package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dlms-org/apiserver/internal/store"
	"github.com/dlms-org/apiserver/types"
	"github.com/google/uuid"
)

// RenewalRepository defines persistence operations for renewal applications.
type RenewalRepository interface {
	Create(ctx context.Context, renewal types.RenewalApplication) (types.RenewalApplication, error)
	Get(ctx context.Context, id int) (types.RenewalApplication, error)
	ListByUser(ctx context.Context, userID int) ([]types.RenewalApplication, error)
	ListByStatus(ctx context.Context, status types.RenewalStatus, offset, limit int) ([]types.RenewalApplication, error)
	Transition(ctx context.Context, id int, from []types.RenewalStatus, to types.RenewalStatus, adminID int, notes string, at time.Time) (types.RenewalApplication, error)
	Reissue(ctx context.Context, id int, params store.ReissueParams) (types.RenewalApplication, types.License, error)
}

// DocumentStore keeps uploaded license scans.
type DocumentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Review decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Document is an uploaded file attached to a renewal application.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmitRenewalInput is a user's renewal request. Either Document or
// DocumentRef identifies the current license document.
type SubmitRenewalInput struct {
	UserID      int
	Reason      string
	DocumentRef string
	Document    *Document
}

// ReviewInput is an admin decision on a renewal application.
type ReviewInput struct {
	RenewalID int
	AdminID   int
	Decision  string
	Notes     string
}

// RenewalResult pairs an issued renewal with the license it rewrote.
type RenewalResult struct {
	Renewal types.RenewalApplication
	License types.License
}

// RenewalService drives the renewal workflow:
//
//	pending -> under_review -> approved|rejected
//	pending -> approved|rejected
//	approved -> issued
//
// Issuing rewrites the holder's current license in place with a new number
// and validity window, and happens at most once per application.
type RenewalService struct {
	renewals      RenewalRepository
	licenses      LicenseRepository
	documents     DocumentStore
	validityYears int
	opts          options
}

func NewRenewalService(
	renewals RenewalRepository,
	licenses LicenseRepository,
	documents DocumentStore,
	validityYears int,
	opts ...Option,
) *RenewalService {
	o := newOptions(opts)
	o.logger = o.logger.With().Str("service", "renewal").Logger()
	if validityYears < 1 {
		validityYears = 5
	}
	return &RenewalService{
		renewals:      renewals,
		licenses:      licenses,
		documents:     documents,
		validityYears: validityYears,
		opts:          o,
	}
}

// Submit creates a pending renewal application for a user who holds a license.
func (s *RenewalService) Submit(ctx context.Context, in SubmitRenewalInput) (types.RenewalApplication, error) {
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return types.RenewalApplication{}, invalidInput("renewal reason is required")
	}
	if in.Document != nil && s.documents == nil {
		return types.RenewalApplication{}, invalidInput("document uploads are not enabled")
	}

	license, err := s.licenses.GetCurrentByUserID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.RenewalApplication{}, fmt.Errorf("user %d: %w", in.UserID, ErrNoExistingLicense)
		}
		return types.RenewalApplication{}, storeErr("load current license", err)
	}

	docRef := strings.TrimSpace(in.DocumentRef)
	uploaded := false
	if in.Document != nil {
		docRef = documentKey(in.UserID, in.Document.Filename)
		size := int64(len(in.Document.Data))
		if err := s.documents.Put(ctx, docRef, bytes.NewReader(in.Document.Data), size, in.Document.ContentType); err != nil {
			return types.RenewalApplication{}, fmt.Errorf("store renewal document: %w: %w", ErrUnavailable, err)
		}
		uploaded = true
	}

	renewal, err := s.renewals.Create(ctx, types.RenewalApplication{
		UserID:                 in.UserID,
		LicenseID:              license.ID,
		CurrentLicenseDocument: docRef,
		RenewalReason:          reason,
		Status:                 types.RenewalPending,
		SubmissionDate:         s.opts.now().UTC(),
	})
	if err != nil {
		if uploaded {
			if delErr := s.documents.Delete(ctx, docRef); delErr != nil {
				s.opts.logger.Warn().Err(delErr).Str("key", docRef).Msg("failed to remove orphaned renewal document")
			}
		}
		return types.RenewalApplication{}, storeErr("create renewal", err)
	}

	s.opts.metrics.RecordRenewalTransition(string(types.RenewalPending))
	s.opts.logger.Info().
		Int("renewal_id", renewal.ID).
		Int("user_id", renewal.UserID).
		Int("license_id", renewal.LicenseID).
		Msg("renewal submitted")
	return renewal, nil
}

func (s *RenewalService) Get(ctx context.Context, id int) (types.RenewalApplication, error) {
	renewal, err := s.renewals.Get(ctx, id)
	if err != nil {
		return types.RenewalApplication{}, storeErr("load renewal", err)
	}
	return renewal, nil
}

func (s *RenewalService) ListByUser(ctx context.Context, userID int) ([]types.RenewalApplication, error) {
	renewals, err := s.renewals.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list renewals", err)
	}
	return renewals, nil
}

// ListByStatus lists renewals in a status; an empty status lists all of them.
func (s *RenewalService) ListByStatus(ctx context.Context, status types.RenewalStatus, offset, limit int) ([]types.RenewalApplication, error) {
	renewals, err := s.renewals.ListByStatus(ctx, status, offset, limit)
	if err != nil {
		return nil, storeErr("list renewals", err)
	}
	return renewals, nil
}

// MarkUnderReview records that an admin has picked up a pending renewal.
func (s *RenewalService) MarkUnderReview(ctx context.Context, id, adminID int, notes string) (types.RenewalApplication, error) {
	return s.transition(ctx, id, []types.RenewalStatus{types.RenewalPending}, types.RenewalUnderReview, adminID, notes)
}

// Review approves or rejects a renewal that is awaiting a decision.
func (s *RenewalService) Review(ctx context.Context, in ReviewInput) (types.RenewalApplication, error) {
	var to types.RenewalStatus
	switch strings.ToLower(strings.TrimSpace(in.Decision)) {
	case DecisionApprove:
		to = types.RenewalApproved
	case DecisionReject:
		to = types.RenewalRejected
	default:
		return types.RenewalApplication{}, invalidInput("decision must be approve or reject")
	}

	from := []types.RenewalStatus{types.RenewalPending, types.RenewalUnderReview}
	return s.transition(ctx, in.RenewalID, from, to, in.AdminID, in.Notes)
}

func (s *RenewalService) transition(
	ctx context.Context,
	id int,
	from []types.RenewalStatus,
	to types.RenewalStatus,
	adminID int,
	notes string,
) (types.RenewalApplication, error) {
	renewal, err := s.renewals.Transition(ctx, id, from, to, adminID, strings.TrimSpace(notes), s.opts.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrStaleState) {
			return types.RenewalApplication{}, fmt.Errorf("renewal %d cannot move to %s: %w", id, to, ErrInvalidTransition)
		}
		return types.RenewalApplication{}, storeErr("update renewal", err)
	}

	s.opts.metrics.RecordRenewalTransition(string(to))
	s.opts.logger.Info().
		Int("renewal_id", renewal.ID).
		Int("admin_id", adminID).
		Str("status", string(renewal.Status)).
		Msg("renewal status changed")
	return renewal, nil
}

// IssueRenewed reissues the holder's license for an approved renewal.
// A renewal that was already issued fails with ErrAlreadyIssued and leaves
// the license untouched.
func (s *RenewalService) IssueRenewed(ctx context.Context, id, adminID int) (RenewalResult, error) {
	renewal, err := s.renewals.Get(ctx, id)
	if err != nil {
		return RenewalResult{}, storeErr("load renewal", err)
	}
	if err := checkIssuable(renewal); err != nil {
		return RenewalResult{}, err
	}

	now := s.opts.now().UTC()
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := s.opts.newNumber(now)
		if err != nil {
			return RenewalResult{}, err
		}

		updated, license, err := s.renewals.Reissue(ctx, id, store.ReissueParams{
			Number:     number,
			IssueDate:  now,
			ExpiryDate: now.AddDate(s.validityYears, 0, 0),
			AdminID:    adminID,
		})
		switch {
		case err == nil:
			s.opts.metrics.RecordRenewalTransition(string(types.RenewalIssued))
			s.opts.logger.Info().
				Int("renewal_id", updated.ID).
				Int("user_id", license.UserID).
				Str("number", license.Number).
				Int("admin_id", adminID).
				Msg("renewed license issued")
			s.opts.publish(ctx, types.ChannelLicenseRenewed, types.LicenseEvent{
				UserID:     license.UserID,
				LicenseID:  license.ID,
				Number:     license.Number,
				ExpiryDate: license.ExpiryDate,
				ActorID:    adminID,
				RenewalID:  updated.ID,
				OccurredAt: now,
			})
			return RenewalResult{Renewal: updated, License: license}, nil
		case errors.Is(err, store.ErrDuplicateNumber):
			continue
		case errors.Is(err, store.ErrStaleState):
			// Lost a race with another admin; report what happened to the row.
			current, getErr := s.renewals.Get(ctx, id)
			if getErr != nil {
				return RenewalResult{}, storeErr("load renewal", getErr)
			}
			if err := checkIssuable(current); err != nil {
				return RenewalResult{}, err
			}
			return RenewalResult{}, fmt.Errorf("renewal %d changed concurrently: %w", id, ErrInvalidTransition)
		case errors.Is(err, store.ErrNotFound):
			return RenewalResult{}, fmt.Errorf("renewal %d: %w", id, ErrNoExistingLicense)
		default:
			return RenewalResult{}, storeErr("reissue license", err)
		}
	}

	return RenewalResult{}, fmt.Errorf("allocate license number after %d attempts: %w", maxNumberAttempts, ErrUnavailable)
}

// OpenDocument streams the document uploaded with a renewal.
func (s *RenewalService) OpenDocument(ctx context.Context, id int) (io.ReadCloser, string, error) {
	if s.documents == nil {
		return nil, "", fmt.Errorf("document storage disabled: %w", ErrNotFound)
	}
	renewal, err := s.renewals.Get(ctx, id)
	if err != nil {
		return nil, "", storeErr("load renewal", err)
	}
	if !strings.HasPrefix(renewal.CurrentLicenseDocument, documentPrefix) {
		return nil, "", fmt.Errorf("renewal %d has no uploaded document: %w", id, ErrNotFound)
	}
	rc, err := s.documents.Get(ctx, renewal.CurrentLicenseDocument)
	if err != nil {
		return nil, "", fmt.Errorf("open renewal document: %w: %w", ErrUnavailable, err)
	}
	return rc, path.Base(renewal.CurrentLicenseDocument), nil
}

func checkIssuable(renewal types.RenewalApplication) error {
	switch {
	case renewal.NewLicenseIssued || renewal.Status == types.RenewalIssued:
		return fmt.Errorf("renewal %d: %w", renewal.ID, ErrAlreadyIssued)
	case renewal.Status.AwaitingDecision():
		return fmt.Errorf("renewal %d is still awaiting a decision: %w", renewal.ID, ErrInvalidTransition)
	case renewal.Status != types.RenewalApproved:
		return fmt.Errorf("renewal %d is %s, not approved: %w", renewal.ID, renewal.Status, ErrInvalidTransition)
	default:
		return nil
	}
}

const documentPrefix = "renewals/"

func documentKey(userID int, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, `\`, "/"))))
	return fmt.Sprintf("%s%d/%s%s", documentPrefix, userID, uuid.NewString(), ext)
}
