package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dlms-org/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibility_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, f *fixture, userID int)
		wantStatus types.EligibilityStatus
		wantReason string
	}{
		{
			name:       "nothing recorded",
			setup:      func(*testing.T, *fixture, int) {},
			wantStatus: types.EligibilityIneligible,
			wantReason: "payment not verified; theory exam not passed; practical exam not passed",
		},
		{
			name: "practical exam missing",
			setup: func(t *testing.T, f *fixture, userID int) {
				f.verifiedPayment(t, userID, "tx-a")
				f.exam(t, userID, types.ExamTheory, 80, fixedNow)
			},
			wantStatus: types.EligibilityIneligible,
			wantReason: "practical exam not passed",
		},
		{
			name: "pending payment does not count",
			setup: func(t *testing.T, f *fixture, userID int) {
				_, err := f.payments.Submit(context.Background(), SubmitPaymentInput{UserID: userID, Amount: 10, TransactionID: "tx-p"})
				require.NoError(t, err)
				f.exam(t, userID, types.ExamTheory, 80, fixedNow)
				f.exam(t, userID, types.ExamPractical, 80, fixedNow)
			},
			wantStatus: types.EligibilityIneligible,
			wantReason: "payment not verified",
		},
		{
			name: "failing score",
			setup: func(t *testing.T, f *fixture, userID int) {
				f.verifiedPayment(t, userID, "tx-f")
				f.exam(t, userID, types.ExamTheory, 69, fixedNow)
				f.exam(t, userID, types.ExamPractical, 70, fixedNow)
			},
			wantStatus: types.EligibilityIneligible,
			wantReason: "theory exam not passed",
		},
		{
			name: "later failed attempt keeps earlier pass",
			setup: func(t *testing.T, f *fixture, userID int) {
				f.verifiedPayment(t, userID, "tx-l")
				f.exam(t, userID, types.ExamTheory, 90, fixedNow.AddDate(0, -1, 0))
				f.exam(t, userID, types.ExamTheory, 20, fixedNow)
				f.exam(t, userID, types.ExamPractical, 75, fixedNow)
			},
			wantStatus: types.EligibilityEligible,
			wantReason: "all requirements met",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			user := f.addUser(t, "ana")
			tt.setup(t, f, user.ID)

			verdict, err := f.eligibility.Evaluate(context.Background(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, verdict.Status)
			assert.Equal(t, tt.wantStatus == types.EligibilityEligible, verdict.Eligible)
			assert.Equal(t, tt.wantReason, verdict.Reason)
			assert.Nil(t, verdict.License)
		})
	}
}

func TestEligibility_IneligibleReasonMentionsPracticalExam(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "bo")
	f.verifiedPayment(t, user.ID, "tx-bo")
	f.exam(t, user.ID, types.ExamTheory, 88, fixedNow)
	f.exam(t, user.ID, types.ExamPractical, 40, fixedNow)

	verdict, err := f.eligibility.Evaluate(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, verdict.Eligible)
	assert.True(t, verdict.PaymentVerified)
	assert.True(t, verdict.TheoryPassed)
	assert.False(t, verdict.PracticalPassed)
	assert.Contains(t, verdict.Reason, "practical exam")
}

func TestEligibility_AlreadyLicensedIsAlwaysEligible(t *testing.T) {
	f := newFixture(t)
	user, license := f.licensedUser(t, "cy")

	verdict, err := f.eligibility.Evaluate(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Eligible)
	assert.Equal(t, types.EligibilityAlreadyLicensed, verdict.Status)
	require.NotNil(t, verdict.License)
	assert.Equal(t, license.Number, verdict.License.Number)
}

func TestEligibility_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.eligibility.Evaluate(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	user := f.addUser(t, "di")
	f.db.FailWith(errors.New("connection reset"))
	_, err = f.eligibility.Evaluate(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
}
