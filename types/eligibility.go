package types

// EligibilityStatus summarizes an eligibility verdict for clients.
type EligibilityStatus string

const (
	EligibilityAlreadyLicensed EligibilityStatus = "already_licensed"
	EligibilityEligible        EligibilityStatus = "eligible"
	EligibilityIneligible      EligibilityStatus = "ineligible"
)

// Eligibility is the verdict of evaluating a user's license preconditions.
type Eligibility struct {
	UserID   int               `json:"user_id"`
	Eligible bool              `json:"eligible"`
	Status   EligibilityStatus `json:"status"`
	Reason   string            `json:"reason"`

	// License is set when the user already holds a current license.
	License *License `json:"license,omitempty"`

	PaymentVerified bool `json:"payment_verified"`
	TheoryPassed    bool `json:"theory_passed"`
	PracticalPassed bool `json:"practical_passed"`
}
