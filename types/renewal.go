package types

import "time"

// RenewalStatus is the state of a renewal application.
type RenewalStatus string

const (
	RenewalPending     RenewalStatus = "pending"
	RenewalUnderReview RenewalStatus = "under_review"
	RenewalApproved    RenewalStatus = "approved"
	RenewalRejected    RenewalStatus = "rejected"
	RenewalIssued      RenewalStatus = "issued"
)

func (s RenewalStatus) Valid() bool {
	switch s {
	case RenewalPending, RenewalUnderReview, RenewalApproved, RenewalRejected, RenewalIssued:
		return true
	}
	return false
}

// AwaitingDecision reports whether an admin may still approve or reject.
func (s RenewalStatus) AwaitingDecision() bool {
	return s == RenewalPending || s == RenewalUnderReview
}

// RenewalApplication is a user's request to reissue their current license.
type RenewalApplication struct {
	ID        int `json:"id" db:"id"`
	UserID    int `json:"user_id" db:"user_id"`
	LicenseID int `json:"license_id" db:"license_id"`

	// CurrentLicenseDocument is the object storage key of the uploaded scan
	// of the current license, or a free-form reference when nothing was uploaded.
	CurrentLicenseDocument string `json:"current_license_document" db:"current_license_document"`

	RenewalReason  string        `json:"renewal_reason" db:"renewal_reason"`
	Status         RenewalStatus `json:"status" db:"status"`
	SubmissionDate time.Time     `json:"submission_date" db:"submission_date"`

	ReviewedBy int        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	AdminNotes string     `json:"admin_notes,omitempty" db:"admin_notes"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`

	// NewLicenseIssued flips to true exactly once, when the renewed license is issued.
	NewLicenseIssued bool       `json:"new_license_issued" db:"new_license_issued"`
	IssuedAt         *time.Time `json:"issued_at,omitempty" db:"issued_at"`
}
