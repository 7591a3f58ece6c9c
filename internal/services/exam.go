package services

import (
	"context"
	"strings"
	"time"

	"github.com/dlms-org/apiserver/types"
)

// ExamRepository defines persistence operations for exam results.
type ExamRepository interface {
	Create(ctx context.Context, result types.ExamResult) (types.ExamResult, error)
	ListByUser(ctx context.Context, userID int) ([]types.ExamResult, error)
	LatestPassed(ctx context.Context, userID int, examType types.ExamType) (types.ExamResult, error)
}

// RecordExamInput is a graded exam attempt submitted by an examiner.
type RecordExamInput struct {
	UserID     int
	ExamType   types.ExamType
	Score      int
	DateTaken  time.Time
	ExaminerID int
	Notes      string
}

// ExamService records exam results. A result passes when its score reaches
// the configured passing score.
type ExamService struct {
	exams        ExamRepository
	users        UserRepository
	passingScore int
	opts         options
}

func NewExamService(exams ExamRepository, users UserRepository, passingScore int, opts ...Option) *ExamService {
	o := newOptions(opts)
	o.logger = o.logger.With().Str("service", "exam").Logger()
	return &ExamService{
		exams:        exams,
		users:        users,
		passingScore: passingScore,
		opts:         o,
	}
}

func (s *ExamService) Record(ctx context.Context, in RecordExamInput) (types.ExamResult, error) {
	examType := types.ExamType(strings.ToLower(strings.TrimSpace(string(in.ExamType))))
	if !examType.Valid() {
		return types.ExamResult{}, invalidInput("exam type must be theory or practical")
	}
	if in.Score < 0 || in.Score > 100 {
		return types.ExamResult{}, invalidInput("score must be between 0 and 100")
	}
	if _, err := s.users.GetByID(ctx, in.UserID); err != nil {
		return types.ExamResult{}, storeErr("load user", err)
	}

	dateTaken := in.DateTaken
	if dateTaken.IsZero() {
		dateTaken = s.opts.now()
	}

	result, err := s.exams.Create(ctx, types.ExamResult{
		UserID:     in.UserID,
		ExamType:   examType,
		Score:      in.Score,
		Passed:     in.Score >= s.passingScore,
		DateTaken:  dateTaken.UTC(),
		ExaminerID: in.ExaminerID,
		Notes:      strings.TrimSpace(in.Notes),
	})
	if err != nil {
		return types.ExamResult{}, storeErr("create exam result", err)
	}

	s.opts.logger.Info().
		Int("user_id", result.UserID).
		Str("exam_type", string(result.ExamType)).
		Int("score", result.Score).
		Bool("passed", result.Passed).
		Msg("exam result recorded")
	return result, nil
}

func (s *ExamService) ListByUser(ctx context.Context, userID int) ([]types.ExamResult, error) {
	results, err := s.exams.ListByUser(ctx, userID)
	if err != nil {
		return nil, storeErr("list exam results", err)
	}
	return results, nil
}
