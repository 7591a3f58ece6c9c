package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/dlms-org/apiserver/types"
)

// ViolationRepository handles persistence for traffic violations.
type ViolationRepository struct {
	db *sql.DB
}

func NewViolationRepository(db *sql.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// Create records a violation and adds its points to the license in one
// transaction. The updated license is returned alongside the violation.
func (r *ViolationRepository) Create(ctx context.Context, violation types.Violation) (types.Violation, types.License, error) {
	var license types.License
	violation.CreatedAt = time.Now()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		update := `
			UPDATE licenses
			SET points = points + $1,
				updated_at = $2
			WHERE id = $3 AND status <> 'Revoked'
			RETURNING ` + licenseColumns
		var err error
		license, err = queryLicense(ctx, tx, update, violation.Points, violation.CreatedAt, violation.LicenseID)
		if err != nil {
			return err
		}
		violation.UserID = license.UserID

		const insert = `
			INSERT INTO violations (license_id, user_id, offense, points, fine_amount, location, officer_id, occurred_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insert,
			violation.LicenseID,
			violation.UserID,
			violation.Offense,
			violation.Points,
			violation.FineAmount,
			violation.Location,
			violation.OfficerID,
			violation.OccurredAt,
			violation.CreatedAt,
		).Scan(&violation.ID); err != nil {
			return mapError(err)
		}
		return nil
	})
	if err != nil {
		return types.Violation{}, types.License{}, err
	}
	return violation, license, nil
}

func (r *ViolationRepository) ListByUser(ctx context.Context, userID int) ([]types.Violation, error) {
	const query = `
		SELECT id, license_id, user_id, offense, points, fine_amount, location, officer_id, occurred_at, created_at
		FROM violations
		WHERE user_id = $1
		ORDER BY occurred_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	violations := make([]types.Violation, 0)
	for rows.Next() {
		var v types.Violation
		if err := rows.Scan(
			&v.ID,
			&v.LicenseID,
			&v.UserID,
			&v.Offense,
			&v.Points,
			&v.FineAmount,
			&v.Location,
			&v.OfficerID,
			&v.OccurredAt,
			&v.CreatedAt,
		); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return violations, nil
}
