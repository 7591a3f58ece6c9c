package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dlms-org/apiserver/internal/store/memstore"
	"github.com/dlms-org/apiserver/types"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type published struct {
	channel string
	event   types.LicenseEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, channel string, value any, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, published{channel: channel, event: value.(types.LicenseEvent)})
	return "id", nil
}

func (p *recordingPublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.channel)
	}
	return out
}

type memDocuments struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemDocuments() *memDocuments {
	return &memDocuments{objects: map[string][]byte{}}
}

func (d *memDocuments) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if d.putErr != nil {
		return d.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.objects[key] = data
	d.mu.Unlock()
	return nil
}

func (d *memDocuments) Get(_ context.Context, key string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (d *memDocuments) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	delete(d.objects, key)
	d.mu.Unlock()
	return nil
}

type fixture struct {
	db          *memstore.Store
	events      *recordingPublisher
	docs        *memDocuments
	users       *UserService
	exams       *ExamService
	payments    *PaymentService
	eligibility *EligibilityService
	licenses    *LicenseService
	renewals    *RenewalService
	violations  *ViolationService
}

func newFixture(t *testing.T, extra ...Option) *fixture {
	t.Helper()

	f := &fixture{
		db:     memstore.New(),
		events: &recordingPublisher{},
		docs:   newMemDocuments(),
	}
	opts := append([]Option{
		WithEvents(f.events),
		WithClock(func() time.Time { return fixedNow }),
	}, extra...)

	users := f.db.Users()
	exams := f.db.Exams()
	payments := f.db.Payments()
	licenses := f.db.Licenses()

	f.users = NewUserService(users)
	f.exams = NewExamService(exams, users, 70, opts...)
	f.payments = NewPaymentService(payments, users, opts...)
	f.eligibility = NewEligibilityService(users, exams, payments, licenses, opts...)
	f.licenses = NewLicenseService(licenses, payments, f.eligibility, 5, opts...)
	f.renewals = NewRenewalService(f.db.Renewals(), licenses, f.docs, 5, opts...)
	f.violations = NewViolationService(f.db.Violations(), licenses, opts...)
	return f
}

func (f *fixture) addUser(t *testing.T, name string) types.User {
	t.Helper()
	user, err := f.users.Create(context.Background(), types.User{Name: name, Email: name + "@example.com"})
	require.NoError(t, err)
	return user
}

func (f *fixture) verifiedPayment(t *testing.T, userID int, txID string) types.PaymentRecord {
	t.Helper()
	ctx := context.Background()
	payment, err := f.payments.Submit(ctx, SubmitPaymentInput{UserID: userID, Amount: 5000, TransactionID: txID})
	require.NoError(t, err)
	payment, err = f.payments.Review(ctx, payment.ID, types.PaymentVerified, 1, "")
	require.NoError(t, err)
	return payment
}

func (f *fixture) exam(t *testing.T, userID int, examType types.ExamType, score int, taken time.Time) {
	t.Helper()
	_, err := f.exams.Record(context.Background(), RecordExamInput{
		UserID:    userID,
		ExamType:  examType,
		Score:     score,
		DateTaken: taken,
	})
	require.NoError(t, err)
}

// eligibleUser creates a user who meets every precondition and returns the
// user with their verified payment.
func (f *fixture) eligibleUser(t *testing.T, name string) (types.User, types.PaymentRecord) {
	t.Helper()
	user := f.addUser(t, name)
	payment := f.verifiedPayment(t, user.ID, "tx-"+name)
	f.exam(t, user.ID, types.ExamTheory, 85, fixedNow.AddDate(0, 0, -10))
	f.exam(t, user.ID, types.ExamPractical, 90, fixedNow.AddDate(0, 0, -5))
	return user, payment
}

// licensedUser returns a user holding a freshly issued license.
func (f *fixture) licensedUser(t *testing.T, name string) (types.User, types.License) {
	t.Helper()
	user, _ := f.eligibleUser(t, name)
	res, err := f.licenses.Issue(context.Background(), IssueInput{UserID: user.ID, AdminID: 1})
	require.NoError(t, err)
	return user, res.License
}

// sequenceNumbers returns a generator that hands out numbers in order and then
// repeats the last one.
func sequenceNumbers(numbers ...string) NumberGenerator {
	var mu sync.Mutex
	i := 0
	return func(time.Time) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n := numbers[i]
		if i < len(numbers)-1 {
			i++
		}
		return n, nil
	}
}
