package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dlms-org/apiserver/internal/store"
	"github.com/dlms-org/apiserver/types"
)

// ViolationRepository defines persistence operations for traffic violations.
type ViolationRepository interface {
	Create(ctx context.Context, violation types.Violation) (types.Violation, types.License, error)
	ListByUser(ctx context.Context, userID int) ([]types.Violation, error)
}

type RecordViolationInput struct {
	LicenseNumber string
	Offense       string
	Points        int
	FineAmount    int64
	Location      string
	OfficerID     int
}

// ViolationResult is a recorded violation and the license it was charged to.
type ViolationResult struct {
	Violation types.Violation
	License   types.License
}

type ViolationService struct {
	violations ViolationRepository
	licenses   LicenseRepository
	opts       options
}

func NewViolationService(violations ViolationRepository, licenses LicenseRepository, opts ...Option) *ViolationService {
	o := newOptions(opts)
	o.logger = o.logger.With().Str("service", "violation").Logger()
	return &ViolationService{violations: violations, licenses: licenses, opts: o}
}

// Record charges a violation against the license with the given number.
func (s *ViolationService) Record(ctx context.Context, in RecordViolationInput) (ViolationResult, error) {
	number := strings.TrimSpace(in.LicenseNumber)
	offense := strings.TrimSpace(in.Offense)
	switch {
	case number == "":
		return ViolationResult{}, invalidInput("license number is required")
	case offense == "":
		return ViolationResult{}, invalidInput("offense is required")
	case in.Points < 0 || in.Points > 12:
		return ViolationResult{}, invalidInput("points must be between 0 and 12")
	case in.FineAmount < 0:
		return ViolationResult{}, invalidInput("fine amount must not be negative")
	}

	license, err := s.licenses.GetByNumber(ctx, number)
	if err != nil {
		return ViolationResult{}, storeErr("load license", err)
	}
	if license.Status == types.LicenseRevoked {
		return ViolationResult{}, fmt.Errorf("license %s is revoked: %w", number, ErrInvalidTransition)
	}

	now := s.opts.now().UTC()
	violation, updated, err := s.violations.Create(ctx, types.Violation{
		LicenseID:  license.ID,
		UserID:     license.UserID,
		Offense:    offense,
		Points:     in.Points,
		FineAmount: in.FineAmount,
		Location:   strings.TrimSpace(in.Location),
		OfficerID:  in.OfficerID,
		OccurredAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Revoked between the lookup and the update.
			return ViolationResult{}, fmt.Errorf("license %s is no longer current: %w", number, ErrInvalidTransition)
		}
		return ViolationResult{}, storeErr("record violation", err)
	}

	s.opts.metrics.RecordViolation()
	s.opts.logger.Info().
		Int("violation_id", violation.ID).
		Int("license_id", updated.ID).
		Int("points", violation.Points).
		Int("total_points", updated.Points).
		Msg("violation recorded")
	s.opts.publish(ctx, types.ChannelViolationRecorded, types.LicenseEvent{
		UserID:      updated.UserID,
		LicenseID:   updated.ID,
		Number:      updated.Number,
		ExpiryDate:  updated.ExpiryDate,
		ActorID:     in.OfficerID,
		ViolationID: violation.ID,
		Points:      updated.Points,
		OccurredAt:  now,
	})
	return ViolationResult{Violation: violation, License: updated}, nil
}

func (s *ViolationService) ListByUser(ctx context.Context, userID int) ([]types.Violation, error) {
	violations, err := s.violations.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list violations", err)
	}
	return violations, nil
}
