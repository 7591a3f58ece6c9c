package types

import "time"

// Event channels published by the API server.
const (
	ChannelLicenseIssued     = "license.issued"
	ChannelLicenseRenewed    = "license.renewed"
	ChannelViolationRecorded = "violation.recorded"
)

// LicenseEvent is the JSON payload published on the license channels.
type LicenseEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	UserID      int       `json:"user_id"`
	LicenseID   int       `json:"license_id"`
	Number      string    `json:"number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	ActorID     int       `json:"actor_id"`
	RenewalID   int       `json:"renewal_id,omitempty"`
	ViolationID int       `json:"violation_id,omitempty"`
	Points      int       `json:"points,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
