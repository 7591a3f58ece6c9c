package types

import "time"

// LicenseStatus is the administrative state of a driving license.
type LicenseStatus string

const (
	LicenseValid     LicenseStatus = "Valid"
	LicenseExpired   LicenseStatus = "Expired"
	LicenseSuspended LicenseStatus = "Suspended"
	LicenseRevoked   LicenseStatus = "Revoked"
)

// LicenseClass is the vehicle category a license entitles the holder to drive.
type LicenseClass string

const (
	ClassA LicenseClass = "A"
	ClassB LicenseClass = "B"
	ClassC LicenseClass = "C"
	ClassD LicenseClass = "D"
)

// DefaultLicenseClass is used when an issuance request names no class.
const DefaultLicenseClass = ClassB

// Valid reports whether c is a known license class.
func (c LicenseClass) Valid() bool {
	switch c {
	case ClassA, ClassB, ClassC, ClassD:
		return true
	default:
		return false
	}
}

// DefaultRestrictions returns the restrictions printed on a freshly issued
// license of class c.
func (c LicenseClass) DefaultRestrictions() []string {
	switch c {
	case ClassA:
		return []string{"motorcycles only"}
	case ClassC:
		return []string{"heavy goods vehicles", "no passenger transport"}
	case ClassD:
		return []string{"passenger transport", "medical certificate required"}
	default:
		return []string{}
	}
}

// License is a driving license issued to a user.
//
// A user holds at most one non-revoked license at a time. Renewal updates the
// record in place, so ID stays stable across renewals while Number, IssueDate
// and ExpiryDate change.
type License struct {
	// ID is the stable identifier of the license record.
	ID int `json:"id" db:"id"`

	// Number is the unique license number printed on the card.
	Number string `json:"number" db:"number"`

	// UserID identifies the license holder.
	UserID int `json:"user_id" db:"user_id"`

	Class  LicenseClass  `json:"class" db:"class"`
	Status LicenseStatus `json:"status" db:"status"`

	IssueDate  time.Time `json:"issue_date" db:"issue_date"`
	ExpiryDate time.Time `json:"expiry_date" db:"expiry_date"`

	Restrictions []string `json:"restrictions" db:"restrictions"`

	// Points accumulates penalty points from recorded violations.
	Points int `json:"points" db:"points"`

	// IssuedBy is the admin who issued or last renewed the license.
	IssuedBy   int    `json:"issued_by,omitempty" db:"issued_by"`
	AdminNotes string `json:"admin_notes,omitempty" db:"admin_notes"`

	// RenewalCount is the number of completed renewals.
	RenewalCount int `json:"renewal_count" db:"renewal_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
