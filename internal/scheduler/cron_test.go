package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronMatchesWildcard(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 5, 0, 0, time.UTC)
	matches, err := CronMatches("* * * * *", now)
	require.NoError(t, err)
	assert.True(t, matches)
}

func TestCronMatchesSpecificMinute(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 30, 0, 0, time.UTC)
	matches, err := CronMatches("30 14 * * *", now)
	require.NoError(t, err)
	assert.True(t, matches)

	notNow := time.Date(2026, 7, 31, 14, 31, 0, 0, time.UTC)
	matches, err = CronMatches("30 14 * * *", notNow)
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestCronMatchesStepExpression(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 20, 0, 0, time.UTC)
	matches, err := CronMatches("*/10 * * * *", now)
	require.NoError(t, err)
	assert.True(t, matches)

	now = time.Date(2026, 7, 31, 14, 21, 0, 0, time.UTC)
	matches, err = CronMatches("*/10 * * * *", now)
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestCronRejectsStepZero(t *testing.T) {
	_, err := CronMatches("*/0 * * * *", time.Now())
	assert.Error(t, err)
}
