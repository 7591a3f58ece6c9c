package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dlms-org/apiserver/types"
	"github.com/lib/pq"
)

const licenseColumns = `id, number, user_id, class, status, issue_date, expiry_date, restrictions,
	points, issued_by, admin_notes, renewal_count, created_at, updated_at`

// LicenseRepository handles persistence for licenses.
//
// The licenses table carries a partial unique index on user_id for every
// non-revoked row, so at most one current license exists per user no matter
// how many requests race to create one.
type LicenseRepository struct {
	db *sql.DB
}

func NewLicenseRepository(db *sql.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// Create inserts a new license. It returns ErrConflict when the user already
// holds a current license and ErrDuplicateNumber when the number is taken.
func (r *LicenseRepository) Create(ctx context.Context, license types.License) (types.License, error) {
	now := time.Now()
	license.CreatedAt = now
	license.UpdatedAt = now
	if license.Restrictions == nil {
		license.Restrictions = []string{}
	}

	const query = `
		INSERT INTO licenses (
			number, user_id, class, status, issue_date, expiry_date, restrictions,
			points, issued_by, admin_notes, renewal_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		license.Number,
		license.UserID,
		license.Class,
		license.Status,
		license.IssueDate,
		license.ExpiryDate,
		pq.Array(license.Restrictions),
		license.Points,
		license.IssuedBy,
		license.AdminNotes,
		license.RenewalCount,
		license.CreatedAt,
		license.UpdatedAt,
	).Scan(&license.ID); err != nil {
		return types.License{}, mapError(err)
	}
	return license, nil
}

// GetCurrentByUserID returns the user's non-revoked license.
func (r *LicenseRepository) GetCurrentByUserID(ctx context.Context, userID int) (types.License, error) {
	query := `SELECT ` + licenseColumns + `
		FROM licenses
		WHERE user_id = $1 AND status <> 'Revoked'`
	return queryLicense(ctx, r.db, query, userID)
}

func (r *LicenseRepository) GetByNumber(ctx context.Context, number string) (types.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE number = $1`
	return queryLicense(ctx, r.db, query, number)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryLicense(ctx context.Context, q queryRower, query string, args ...any) (types.License, error) {
	license, err := scanLicense(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.License{}, ErrNotFound
		}
		return types.License{}, mapError(err)
	}
	return license, nil
}

func scanLicense(row rowScanner) (types.License, error) {
	var license types.License
	err := row.Scan(
		&license.ID,
		&license.Number,
		&license.UserID,
		&license.Class,
		&license.Status,
		&license.IssueDate,
		&license.ExpiryDate,
		pq.Array(&license.Restrictions),
		&license.Points,
		&license.IssuedBy,
		&license.AdminNotes,
		&license.RenewalCount,
		&license.CreatedAt,
		&license.UpdatedAt,
	)
	return license, err
}
