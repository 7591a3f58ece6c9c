package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/dlms-org/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitRenewal(t *testing.T, f *fixture, userID int) types.RenewalApplication {
	t.Helper()
	renewal, err := f.renewals.Submit(context.Background(), SubmitRenewalInput{
		UserID:      userID,
		Reason:      "expiring soon",
		DocumentRef: "scan-123",
	})
	require.NoError(t, err)
	return renewal
}

func approvedRenewal(t *testing.T, f *fixture, userID int) types.RenewalApplication {
	t.Helper()
	renewal := submitRenewal(t, f, userID)
	renewal, err := f.renewals.Review(context.Background(), ReviewInput{RenewalID: renewal.ID, AdminID: 1, Decision: DecisionApprove})
	require.NoError(t, err)
	return renewal
}

func TestRenewal_SubmitWithoutLicense(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "sam")

	_, err := f.renewals.Submit(context.Background(), SubmitRenewalInput{UserID: user.ID, Reason: "lost"})
	assert.ErrorIs(t, err, ErrNoExistingLicense)
}

func TestRenewal_Submit(t *testing.T) {
	f := newFixture(t)
	user, license := f.licensedUser(t, "tia")

	renewal := submitRenewal(t, f, user.ID)
	assert.Equal(t, types.RenewalPending, renewal.Status)
	assert.Equal(t, license.ID, renewal.LicenseID)
	assert.Equal(t, "scan-123", renewal.CurrentLicenseDocument)
	assert.Equal(t, fixedNow, renewal.SubmissionDate)
	assert.False(t, renewal.NewLicenseIssued)

	_, err := f.renewals.Submit(context.Background(), SubmitRenewalInput{UserID: user.ID, Reason: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRenewal_SubmitUploadsDocument(t *testing.T) {
	f := newFixture(t)
	user, _ := f.licensedUser(t, "uma")
	ctx := context.Background()

	renewal, err := f.renewals.Submit(ctx, SubmitRenewalInput{
		UserID: user.ID,
		Reason: "damaged card",
		Document: &Document{
			Filename:    "Scan.PDF",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.7"),
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(renewal.CurrentLicenseDocument, "renewals/"))
	assert.True(t, strings.HasSuffix(renewal.CurrentLicenseDocument, ".pdf"))

	rc, name, err := f.renewals.OpenDocument(ctx, renewal.ID)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	plain := submitRenewal(t, f, user.ID)
	_, _, err = f.renewals.OpenDocument(ctx, plain.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenewal_SubmitDocumentFailures(t *testing.T) {
	f := newFixture(t)
	user, _ := f.licensedUser(t, "vic")
	ctx := context.Background()
	doc := &Document{Filename: "a.png", Data: []byte("png")}

	f.docs.putErr = errors.New("bucket unreachable")
	_, err := f.renewals.Submit(ctx, SubmitRenewalInput{UserID: user.ID, Reason: "r", Document: doc})
	assert.ErrorIs(t, err, ErrUnavailable)

	noStorage := NewRenewalService(f.db.Renewals(), f.db.Licenses(), nil, 5)
	_, err = noStorage.Submit(ctx, SubmitRenewalInput{UserID: user.ID, Reason: "r", Document: doc})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRenewal_ReviewTransitions(t *testing.T) {
	f := newFixture(t)
	user, _ := f.licensedUser(t, "wes")
	ctx := context.Background()

	t.Run("reject is terminal", func(t *testing.T) {
		renewal := submitRenewal(t, f, user.ID)
		rejected, err := f.renewals.Review(ctx, ReviewInput{RenewalID: renewal.ID, AdminID: 2, Decision: DecisionReject, Notes: "blurry scan"})
		require.NoError(t, err)
		assert.Equal(t, types.RenewalRejected, rejected.Status)
		assert.Equal(t, 2, rejected.ReviewedBy)
		assert.Equal(t, "blurry scan", rejected.AdminNotes)
		require.NotNil(t, rejected.ReviewedAt)

		_, err = f.renewals.Review(ctx, ReviewInput{RenewalID: renewal.ID, AdminID: 2, Decision: DecisionApprove})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("under review then approve", func(t *testing.T) {
		renewal := submitRenewal(t, f, user.ID)
		inReview, err := f.renewals.MarkUnderReview(ctx, renewal.ID, 2, "")
		require.NoError(t, err)
		assert.Equal(t, types.RenewalUnderReview, inReview.Status)

		_, err = f.renewals.MarkUnderReview(ctx, renewal.ID, 2, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)

		approved, err := f.renewals.Review(ctx, ReviewInput{RenewalID: renewal.ID, AdminID: 2, Decision: "APPROVE"})
		require.NoError(t, err)
		assert.Equal(t, types.RenewalApproved, approved.Status)
	})

	t.Run("approved cannot be reviewed again", func(t *testing.T) {
		renewal := approvedRenewal(t, f, user.ID)
		_, err := f.renewals.Review(ctx, ReviewInput{RenewalID: renewal.ID, AdminID: 2, Decision: DecisionReject})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown decision", func(t *testing.T) {
		renewal := submitRenewal(t, f, user.ID)
		_, err := f.renewals.Review(ctx, ReviewInput{RenewalID: renewal.ID, Decision: "maybe"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown renewal", func(t *testing.T) {
		_, err := f.renewals.Review(ctx, ReviewInput{RenewalID: 9999, Decision: DecisionApprove})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRenewal_IssueRenewed(t *testing.T) {
	f := newFixture(t)
	user, original := f.licensedUser(t, "xia")
	renewal := approvedRenewal(t, f, user.ID)
	ctx := context.Background()

	res, err := f.renewals.IssueRenewed(ctx, renewal.ID, 4)
	require.NoError(t, err)

	assert.Equal(t, types.RenewalIssued, res.Renewal.Status)
	assert.True(t, res.Renewal.NewLicenseIssued)
	require.NotNil(t, res.Renewal.IssuedAt)
	assert.Equal(t, original.ID, res.License.ID)
	assert.NotEqual(t, original.Number, res.License.Number)
	assert.Equal(t, 1, res.License.RenewalCount)
	assert.Equal(t, types.LicenseValid, res.License.Status)
	assert.Equal(t, fixedNow.AddDate(5, 0, 0), res.License.ExpiryDate)
	assert.Equal(t, 4, res.License.IssuedBy)
	assert.Equal(t, 1, f.db.LicenseCount())
	assert.Equal(t, []string{types.ChannelLicenseIssued, types.ChannelLicenseRenewed}, f.events.channels())
}

func TestRenewal_IssueRenewedTwice(t *testing.T) {
	f := newFixture(t)
	user, _ := f.licensedUser(t, "yan")
	renewal := approvedRenewal(t, f, user.ID)
	ctx := context.Background()

	_, err := f.renewals.IssueRenewed(ctx, renewal.ID, 1)
	require.NoError(t, err)
	before, err := f.licenses.GetCurrent(ctx, user.ID)
	require.NoError(t, err)

	_, err = f.renewals.IssueRenewed(ctx, renewal.ID, 1)
	assert.ErrorIs(t, err, ErrAlreadyIssued)

	after, err := f.licenses.GetCurrent(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRenewal_IssueRequiresApproval(t *testing.T) {
	f := newFixture(t)
	user, original := f.licensedUser(t, "zed")
	ctx := context.Background()

	pending := submitRenewal(t, f, user.ID)
	_, err := f.renewals.IssueRenewed(ctx, pending.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	rejected := submitRenewal(t, f, user.ID)
	_, err = f.renewals.Review(ctx, ReviewInput{RenewalID: rejected.ID, AdminID: 1, Decision: DecisionReject})
	require.NoError(t, err)
	_, err = f.renewals.IssueRenewed(ctx, rejected.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.renewals.IssueRenewed(ctx, 9999, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	current, err := f.licenses.GetCurrent(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, original.Number, current.Number)
	assert.Zero(t, current.RenewalCount)
}

func TestRenewal_ConcurrentIssueRenewedReissuesOnce(t *testing.T) {
	f := newFixture(t)
	user, _ := f.licensedUser(t, "abe")
	renewal := approvedRenewal(t, f, user.ID)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.renewals.IssueRenewed(context.Background(), renewal.ID, 1)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyIssued)
	}
	assert.Equal(t, 1, succeeded)

	current, err := f.licenses.GetCurrent(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.RenewalCount)
}

func TestRenewal_List(t *testing.T) {
	f := newFixture(t)
	user, _ := f.licensedUser(t, "bea")
	ctx := context.Background()

	submitRenewal(t, f, user.ID)
	approvedRenewal(t, f, user.ID)

	mine, err := f.renewals.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := f.renewals.ListByStatus(ctx, types.RenewalPending, 0, 50)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, types.RenewalPending, pending[0].Status)

	all, err := f.renewals.ListByStatus(ctx, "", 0, 50)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
