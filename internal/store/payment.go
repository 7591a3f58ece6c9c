package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dlms-org/apiserver/types"
)

const paymentColumns = `id, user_id, amount, status, transaction_id, payment_date, reviewed_by, admin_notes, reviewed_at`

// PaymentRepository handles persistence for payment records.
type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment types.PaymentRecord) (types.PaymentRecord, error) {
	const query = `
		INSERT INTO payments (user_id, amount, status, transaction_id, payment_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		payment.UserID,
		payment.Amount,
		payment.Status,
		payment.TransactionID,
		payment.PaymentDate,
	).Scan(&payment.ID); err != nil {
		return types.PaymentRecord{}, mapError(err)
	}
	return payment, nil
}

func (r *PaymentRepository) Get(ctx context.Context, id int) (types.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PaymentRecord{}, ErrNotFound
		}
		return types.PaymentRecord{}, err
	}
	return payment, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int) ([]types.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY payment_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]types.PaymentRecord, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// LatestVerified returns the most recent verified payment of a user.
func (r *PaymentRepository) LatestVerified(ctx context.Context, userID int) (types.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND status = 'verified'
		ORDER BY payment_date DESC, id DESC
		LIMIT 1`
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PaymentRecord{}, ErrNotFound
		}
		return types.PaymentRecord{}, err
	}
	return payment, nil
}

// Review moves a pending payment to a terminal status. It returns
// ErrStaleState if the payment was already reviewed.
func (r *PaymentRepository) Review(ctx context.Context, id int, status types.PaymentStatus, adminID int, notes string, at time.Time) (types.PaymentRecord, error) {
	query := `
		UPDATE payments
		SET status = $1,
			reviewed_by = $2,
			admin_notes = $3,
			reviewed_at = $4
		WHERE id = $5 AND status = 'pending'
		RETURNING ` + paymentColumns
	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, status, adminID, notes, at, id))
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.PaymentRecord{}, err
	}
	if _, err := r.Get(ctx, id); err != nil {
		return types.PaymentRecord{}, err
	}
	return types.PaymentRecord{}, ErrStaleState
}

func scanPayment(row rowScanner) (types.PaymentRecord, error) {
	var payment types.PaymentRecord
	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&payment.TransactionID,
		&payment.PaymentDate,
		&payment.ReviewedBy,
		&payment.AdminNotes,
		&payment.ReviewedAt,
	)
	return payment, err
}
