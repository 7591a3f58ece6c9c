// Package memstore is an in-memory implementation of the repositories used by
// the services. It is a test double: it enforces the same uniqueness and
// compare-and-set rules as the Postgres schema with a single mutex, and is
// never wired into the server.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/dlms-org/apiserver/types"
)

// Store holds every table. Repository views share the same lock.
type Store struct {
	mu   sync.Mutex
	seq  int
	fail error
	now  func() time.Time

	users      map[int]types.User
	exams      map[int]types.ExamResult
	payments   map[int]types.PaymentRecord
	licenses   map[int]types.License
	renewals   map[int]types.RenewalApplication
	violations map[int]types.Violation
}

func New() *Store {
	return &Store{
		now:        time.Now,
		users:      make(map[int]types.User),
		exams:      make(map[int]types.ExamResult),
		payments:   make(map[int]types.PaymentRecord),
		licenses:   make(map[int]types.License),
		renewals:   make(map[int]types.RenewalApplication),
		violations: make(map[int]types.Violation),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

func (s *Store) Users() *UserRepository           { return &UserRepository{s} }
func (s *Store) Exams() *ExamRepository           { return &ExamRepository{s} }
func (s *Store) Payments() *PaymentRepository     { return &PaymentRepository{s} }
func (s *Store) Licenses() *LicenseRepository     { return &LicenseRepository{s} }
func (s *Store) Renewals() *RenewalRepository     { return &RenewalRepository{s} }
func (s *Store) Violations() *ViolationRepository { return &ViolationRepository{s} }

// LicenseCount returns the number of license rows, revoked ones included.
func (s *Store) LicenseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.licenses)
}

// lock acquires the store mutex and reports the injected failure, if any.
// Callers unlock s.mu even when an error is returned.
func (s *Store) lock() error {
	s.mu.Lock()
	return s.fail
}

func (s *Store) nextID() int {
	s.seq++
	return s.seq
}

func (s *Store) currentLicense(userID int) (types.License, bool) {
	for _, license := range s.licenses {
		if license.UserID == userID && license.Status != types.LicenseRevoked {
			return license, true
		}
	}
	return types.License{}, false
}

func (s *Store) numberTaken(number string, exceptID int) bool {
	for _, license := range s.licenses {
		if license.Number == number && license.ID != exceptID {
			return true
		}
	}
	return false
}

func sortedValues[T any](m map[int]T, keep func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0)
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func newestFirst(aTime, bTime time.Time, aID, bID int) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}

func cloneLicense(l types.License) types.License {
	l.Restrictions = append([]string{}, l.Restrictions...)
	return l
}
