package types

import "time"

// ExamType identifies which driving exam a result belongs to.
type ExamType string

const (
	ExamTheory    ExamType = "theory"
	ExamPractical ExamType = "practical"
)

// Valid reports whether t is a known exam type.
func (t ExamType) Valid() bool {
	return t == ExamTheory || t == ExamPractical
}

// ExamResult is a graded exam attempt. Results are immutable once recorded;
// a retake produces a new record.
type ExamResult struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	ExamType   ExamType  `json:"exam_type" db:"exam_type"`
	Score      int       `json:"score" db:"score"`
	Passed     bool      `json:"passed" db:"passed"`
	DateTaken  time.Time `json:"date_taken" db:"date_taken"`
	ExaminerID int       `json:"examiner_id,omitempty" db:"examiner_id"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
