package types

import "time"

// PaymentStatus is the review state of a payment submission.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentRejected PaymentStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentVerified || s == PaymentRejected
}

// PaymentRecord is a license fee payment submitted by a user and reviewed by
// an admin.
type PaymentRecord struct {
	ID            int           `json:"id" db:"id"`
	UserID        int           `json:"user_id" db:"user_id"`
	Amount        int64         `json:"amount" db:"amount"`
	Status        PaymentStatus `json:"status" db:"status"`
	TransactionID string        `json:"transaction_id" db:"transaction_id"`
	PaymentDate   time.Time     `json:"payment_date" db:"payment_date"`

	// ReviewedBy is the admin who verified or rejected the payment.
	ReviewedBy int        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	AdminNotes string     `json:"admin_notes,omitempty" db:"admin_notes"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
}
