package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staff-appraisal/pkg/apperr"
)

func TestApply(t *testing.T) {
	next, err := Apply(StaffPendingCount, "s1", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	next, err = Apply(StaffPendingCount, "s1", 1, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
}

func TestApplyBelowZero(t *testing.T) {
	next, err := Apply(TaskPendingCount, "t1", 0, -1)
	require.ErrorIs(t, err, apperr.ErrInvariantViolation)
	assert.Equal(t, 0, next, "current value is returned unchanged")
	assert.Contains(t, err.Error(), "pending_subtasks_count of t1")
	assert.True(t, apperr.IsDefect(err))
}

func TestCheckPendingBound(t *testing.T) {
	assert.NoError(t, CheckPendingBound("t1", 0, 0))
	assert.NoError(t, CheckPendingBound("t1", 3, 3))
	assert.ErrorIs(t, CheckPendingBound("t1", 4, 3), apperr.ErrInvariantViolation)
}

func TestCheckEfficiency(t *testing.T) {
	for _, v := range []int{0, 1, 70, 100} {
		assert.NoError(t, CheckEfficiency("s1", v), v)
	}
	for _, v := range []int{-1, 101, 1000} {
		assert.ErrorIs(t, CheckEfficiency("s1", v), apperr.ErrInvariantViolation, v)
	}
}

func TestSetOverallRejectsBeforeQuery(t *testing.T) {
	// A nil connection proves the range check happens before any statement.
	l := NewPgLedger(nil)
	err := l.SetStaffOverallEfficiency(t.Context(), "s1", 101)
	assert.ErrorIs(t, err, apperr.ErrInvariantViolation)
}
