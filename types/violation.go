package types

import "time"

// Violation is a traffic offense recorded against a license by traffic police.
type Violation struct {
	ID         int       `json:"id" db:"id"`
	LicenseID  int       `json:"license_id" db:"license_id"`
	UserID     int       `json:"user_id" db:"user_id"`
	Offense    string    `json:"offense" db:"offense"`
	Points     int       `json:"points" db:"points"`
	FineAmount int64     `json:"fine_amount" db:"fine_amount"`
	Location   string    `json:"location,omitempty" db:"location"`
	OfficerID  int       `json:"officer_id" db:"officer_id"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
