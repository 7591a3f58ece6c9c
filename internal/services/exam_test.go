package services

import (
	"context"
	"testing"

	"github.com/dlms-org/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExam_Record(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "fin")
	ctx := context.Background()

	passed, err := f.exams.Record(ctx, RecordExamInput{UserID: user.ID, ExamType: "Theory", Score: 70, ExaminerID: 5})
	require.NoError(t, err)
	assert.Equal(t, types.ExamTheory, passed.ExamType)
	assert.True(t, passed.Passed)
	assert.Equal(t, fixedNow, passed.DateTaken)
	assert.Equal(t, 5, passed.ExaminerID)

	failed, err := f.exams.Record(ctx, RecordExamInput{UserID: user.ID, ExamType: types.ExamPractical, Score: 69})
	require.NoError(t, err)
	assert.False(t, failed.Passed)

	results, err := f.exams.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestExam_RecordValidation(t *testing.T) {
	f := newFixture(t)
	user := f.addUser(t, "gia")
	ctx := context.Background()

	tests := []struct {
		name string
		in   RecordExamInput
		want error
	}{
		{name: "unknown type", in: RecordExamInput{UserID: user.ID, ExamType: "oral", Score: 80}, want: ErrInvalidInput},
		{name: "score too high", in: RecordExamInput{UserID: user.ID, ExamType: types.ExamTheory, Score: 101}, want: ErrInvalidInput},
		{name: "negative score", in: RecordExamInput{UserID: user.ID, ExamType: types.ExamTheory, Score: -1}, want: ErrInvalidInput},
		{name: "unknown user", in: RecordExamInput{UserID: 9999, ExamType: types.ExamTheory, Score: 50}, want: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.exams.Record(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
