package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dlms-org/apiserver/types"
	"github.com/lib/pq"
)

const renewalColumns = `id, user_id, license_id, current_license_document, renewal_reason, status,
	submission_date, reviewed_by, admin_notes, reviewed_at, new_license_issued, issued_at`

// RenewalRepository handles persistence for renewal applications.
type RenewalRepository struct {
	db *sql.DB
}

func NewRenewalRepository(db *sql.DB) *RenewalRepository {
	return &RenewalRepository{db: db}
}

// ReissueParams describes the license fields replaced by a renewal.
type ReissueParams struct {
	Number     string
	IssueDate  time.Time
	ExpiryDate time.Time
	AdminID    int
}

func (r *RenewalRepository) Create(ctx context.Context, renewal types.RenewalApplication) (types.RenewalApplication, error) {
	const query = `
		INSERT INTO renewals (user_id, license_id, current_license_document, renewal_reason, status, submission_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		renewal.UserID,
		renewal.LicenseID,
		renewal.CurrentLicenseDocument,
		renewal.RenewalReason,
		renewal.Status,
		renewal.SubmissionDate,
	).Scan(&renewal.ID); err != nil {
		return types.RenewalApplication{}, mapError(err)
	}
	return renewal, nil
}

func (r *RenewalRepository) Get(ctx context.Context, id int) (types.RenewalApplication, error) {
	query := `SELECT ` + renewalColumns + ` FROM renewals WHERE id = $1`
	renewal, err := scanRenewal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RenewalApplication{}, ErrNotFound
		}
		return types.RenewalApplication{}, err
	}
	return renewal, nil
}

func (r *RenewalRepository) ListByUser(ctx context.Context, userID int) ([]types.RenewalApplication, error) {
	query := `SELECT ` + renewalColumns + `
		FROM renewals
		WHERE user_id = $1
		ORDER BY submission_date DESC, id DESC`
	return r.list(ctx, query, userID)
}

func (r *RenewalRepository) ListByStatus(ctx context.Context, status types.RenewalStatus, offset, limit int) ([]types.RenewalApplication, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	query := `SELECT ` + renewalColumns + `
		FROM renewals
		WHERE ($1 = '' OR status = $1)
		ORDER BY submission_date, id
		OFFSET $2 LIMIT $3`
	return r.list(ctx, query, string(status), offset, limit)
}

func (r *RenewalRepository) list(ctx context.Context, query string, args ...any) ([]types.RenewalApplication, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	renewals := make([]types.RenewalApplication, 0)
	for rows.Next() {
		renewal, err := scanRenewal(rows)
		if err != nil {
			return nil, err
		}
		renewals = append(renewals, renewal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return renewals, nil
}

// Transition moves a renewal to status `to` if its current status is one of
// `from`. It returns ErrStaleState when the renewal exists in another state.
func (r *RenewalRepository) Transition(
	ctx context.Context,
	id int,
	from []types.RenewalStatus,
	to types.RenewalStatus,
	adminID int,
	notes string,
	at time.Time,
) (types.RenewalApplication, error) {
	allowed := make([]string, 0, len(from))
	for _, status := range from {
		allowed = append(allowed, string(status))
	}

	query := `
		UPDATE renewals
		SET status = $1,
			reviewed_by = $2,
			admin_notes = $3,
			reviewed_at = $4
		WHERE id = $5 AND status = ANY($6)
		RETURNING ` + renewalColumns
	renewal, err := scanRenewal(r.db.QueryRowContext(ctx, query, to, adminID, notes, at, id, pq.Array(allowed)))
	if err == nil {
		return renewal, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.RenewalApplication{}, err
	}
	if _, err := r.Get(ctx, id); err != nil {
		return types.RenewalApplication{}, err
	}
	return types.RenewalApplication{}, ErrStaleState
}

// Reissue atomically marks an approved renewal as issued and rewrites the
// holder's current license with the new number and validity dates.
//
// The renewal row is claimed with a compare-and-swap on new_license_issued,
// so two concurrent calls cannot both succeed. ErrStaleState is returned when
// the renewal is missing, not approved or already issued; ErrNotFound when
// the holder has no current license; ErrDuplicateNumber when the new number
// collides. Nothing is written in any of those cases.
func (r *RenewalRepository) Reissue(ctx context.Context, id int, params ReissueParams) (types.RenewalApplication, types.License, error) {
	var (
		renewal types.RenewalApplication
		license types.License
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		claim := `
			UPDATE renewals
			SET status = 'issued',
				new_license_issued = TRUE,
				issued_at = $1
			WHERE id = $2 AND status = 'approved' AND NOT new_license_issued
			RETURNING ` + renewalColumns
		var err error
		renewal, err = scanRenewal(tx.QueryRowContext(ctx, claim, params.IssueDate, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrStaleState
			}
			return err
		}

		update := `
			UPDATE licenses
			SET number = $1,
				issue_date = $2,
				expiry_date = $3,
				status = 'Valid',
				issued_by = $4,
				renewal_count = renewal_count + 1,
				updated_at = $5
			WHERE user_id = $6 AND status <> 'Revoked'
			RETURNING ` + licenseColumns
		license, err = queryLicense(
			ctx,
			tx,
			update,
			params.Number,
			params.IssueDate,
			params.ExpiryDate,
			params.AdminID,
			time.Now(),
			renewal.UserID,
		)
		return err
	})
	if err != nil {
		return types.RenewalApplication{}, types.License{}, err
	}
	return renewal, license, nil
}

func scanRenewal(row rowScanner) (types.RenewalApplication, error) {
	var renewal types.RenewalApplication
	err := row.Scan(
		&renewal.ID,
		&renewal.UserID,
		&renewal.LicenseID,
		&renewal.CurrentLicenseDocument,
		&renewal.RenewalReason,
		&renewal.Status,
		&renewal.SubmissionDate,
		&renewal.ReviewedBy,
		&renewal.AdminNotes,
		&renewal.ReviewedAt,
		&renewal.NewLicenseIssued,
		&renewal.IssuedAt,
	)
	return renewal, err
}
