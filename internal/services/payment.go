package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlms-org/apiserver/internal/store"
	"github.com/dlms-org/apiserver/types"
)

// PaymentRepository defines persistence operations for payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment types.PaymentRecord) (types.PaymentRecord, error)
	Get(ctx context.Context, id int) (types.PaymentRecord, error)
	ListByUser(ctx context.Context, userID int) ([]types.PaymentRecord, error)
	LatestVerified(ctx context.Context, userID int) (types.PaymentRecord, error)
	Review(ctx context.Context, id int, status types.PaymentStatus, adminID int, notes string, at time.Time) (types.PaymentRecord, error)
}

// SubmitPaymentInput is a license fee payment reported by a user.
type SubmitPaymentInput struct {
	UserID        int
	Amount        int64
	TransactionID string
	PaymentDate   time.Time
}

// PaymentService handles payment submission and admin review.
type PaymentService struct {
	payments PaymentRepository
	users    UserRepository
	opts     options
}

func NewPaymentService(payments PaymentRepository, users UserRepository, opts ...Option) *PaymentService {
	o := newOptions(opts)
	o.logger = o.logger.With().Str("service", "payment").Logger()
	return &PaymentService{
		payments: payments,
		users:    users,
		opts:     o,
	}
}

func (s *PaymentService) Submit(ctx context.Context, in SubmitPaymentInput) (types.PaymentRecord, error) {
	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		return types.PaymentRecord{}, invalidInput("transaction id is required")
	}
	if in.Amount <= 0 {
		return types.PaymentRecord{}, invalidInput("amount must be positive")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return types.PaymentRecord{}, storeErr("load user", err)
	}

	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.opts.now()
	}

	payment, err := s.payments.Create(ctx, types.PaymentRecord{
		UserID:        in.UserID,
		Amount:        in.Amount,
		Status:        types.PaymentPending,
		TransactionID: txID,
		PaymentDate:   paymentDate.UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.PaymentRecord{}, fmt.Errorf("transaction %s already submitted: %w", txID, ErrConflict)
		}
		return types.PaymentRecord{}, storeErr("create payment", err)
	}

	s.opts.logger.Info().
		Int("payment_id", payment.ID).
		Int("user_id", payment.UserID).
		Int64("amount", payment.Amount).
		Msg("payment submitted")
	return payment, nil
}

func (s *PaymentService) Get(ctx context.Context, id int) (types.PaymentRecord, error) {
	payment, err := s.payments.Get(ctx, id)
	if err != nil {
		return types.PaymentRecord{}, storeErr("load payment", err)
	}
	return payment, nil
}

func (s *PaymentService) ListByUser(ctx context.Context, userID int) ([]types.PaymentRecord, error) {
	payments, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list payments", err)
	}
	return payments, nil
}

// Review verifies or rejects a pending payment. Both outcomes are terminal.
func (s *PaymentService) Review(ctx context.Context, id int, status types.PaymentStatus, adminID int, notes string) (types.PaymentRecord, error) {
	if !status.Terminal() {
		return types.PaymentRecord{}, invalidInput("status must be verified or rejected")
	}

	payment, err := s.payments.Review(ctx, id, status, adminID, strings.TrimSpace(notes), s.opts.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrStaleState) {
			return types.PaymentRecord{}, fmt.Errorf("payment %d already reviewed: %w", id, ErrInvalidTransition)
		}
		return types.PaymentRecord{}, storeErr("review payment", err)
	}

	s.opts.logger.Info().
		Int("payment_id", payment.ID).
		Int("user_id", payment.UserID).
		Int("admin_id", adminID).
		Str("status", string(payment.Status)).
		Msg("payment reviewed")
	return payment, nil
}
