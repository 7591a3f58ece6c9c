package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dlms-org/apiserver/types"
)

const examColumns = `id, user_id, exam_type, score, passed, date_taken, examiner_id, notes, created_at`

// ExamRepository handles persistence for exam results.
type ExamRepository struct {
	db *sql.DB
}

func NewExamRepository(db *sql.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

func (r *ExamRepository) Create(ctx context.Context, result types.ExamResult) (types.ExamResult, error) {
	result.CreatedAt = time.Now()

	const query = `
		INSERT INTO exam_results (user_id, exam_type, score, passed, date_taken, examiner_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		result.UserID,
		result.ExamType,
		result.Score,
		result.Passed,
		result.DateTaken,
		result.ExaminerID,
		result.Notes,
		result.CreatedAt,
	).Scan(&result.ID); err != nil {
		return types.ExamResult{}, mapError(err)
	}
	return result, nil
}

func (r *ExamRepository) ListByUser(ctx context.Context, userID int) ([]types.ExamResult, error) {
	query := `SELECT ` + examColumns + `
		FROM exam_results
		WHERE user_id = $1
		ORDER BY date_taken DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]types.ExamResult, 0)
	for rows.Next() {
		result, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// LatestPassed returns the most recent passing result of the given type.
func (r *ExamRepository) LatestPassed(ctx context.Context, userID int, examType types.ExamType) (types.ExamResult, error) {
	query := `SELECT ` + examColumns + `
		FROM exam_results
		WHERE user_id = $1 AND exam_type = $2 AND passed
		ORDER BY date_taken DESC, id DESC
		LIMIT 1`
	result, err := scanExam(r.db.QueryRowContext(ctx, query, userID, examType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ExamResult{}, ErrNotFound
		}
		return types.ExamResult{}, err
	}
	return result, nil
}

func scanExam(row rowScanner) (types.ExamResult, error) {
	var result types.ExamResult
	err := row.Scan(
		&result.ID,
		&result.UserID,
		&result.ExamType,
		&result.Score,
		&result.Passed,
		&result.DateTaken,
		&result.ExaminerID,
		&result.Notes,
		&result.CreatedAt,
	)
	return result, err
}
