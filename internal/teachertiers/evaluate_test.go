package teachertiers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/lessonledger/pkg/tiers"
)

func metricsOf(hours int64, unique, returning int) Metrics {
	return Metrics{HoursTaught: decimal.NewFromInt(hours), UniqueStudents: unique, ReturningStudents: returning}
}

func TestRetentionRateNeedsStudents(t *testing.T) {
	assert.Nil(t, metricsOf(10, 0, 0).RetentionRate())

	rate := metricsOf(10, 3, 2).RetentionRate()
	require.NotNil(t, rate)
	assert.Equal(t, "0.6667", rate.String())
}

func TestPromotionTarget(t *testing.T) {
	ladder := tiers.DefaultTeacherLadder()

	tests := []struct {
		name    string
		level   int
		metrics Metrics
		want    int
	}{
		{name: "too few students despite hours", level: 1, metrics: metricsOf(120, 3, 3), want: 0},
		{name: "certified at fifty hours", level: 1, metrics: metricsOf(50, 5, 3), want: 2},
		{name: "retention below certified floor", level: 1, metrics: metricsOf(60, 5, 2), want: 0},
		{name: "skips straight to senior", level: 1, metrics: metricsOf(120, 5, 4), want: 3},
		{name: "expert needs ten students", level: 3, metrics: metricsOf(300, 9, 9), want: 0},
		{name: "expert", level: 3, metrics: metricsOf(300, 10, 8), want: 4},
		{name: "master is never automatic", level: 4, metrics: metricsOf(900, 40, 40), want: 0},
		{name: "never demotes", level: 4, metrics: metricsOf(10, 1, 0), want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PromotionTarget(ladder, tc.level, tc.metrics)
			if tc.want == 0 {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tc.want, got.Level)
		})
	}
}

func TestEvaluateHidesRetentionBelowFloor(t *testing.T) {
	ladder := tiers.DefaultTeacherLadder()

	eval := Evaluate(ladder, 1, metricsOf(120, 3, 3))
	assert.Equal(t, "Apprentice", eval.Tier.Name)
	require.NotNil(t, eval.NextAutoTier)
	assert.Equal(t, "Expert", eval.NextAutoTier.Name)
	assert.Equal(t, "130", eval.HoursNeeded.String())
	assert.Nil(t, eval.RetentionRate)
	// Certified's hours are met; its student floor is what blocks.
	assert.Equal(t, 2, eval.StudentsNeeded)
	require.NotNil(t, eval.RetentionNeeded)
	assert.Equal(t, "0.6", eval.RetentionNeeded.String())
	assert.False(t, eval.Eligible)

	empty := Evaluate(ladder, 1, metricsOf(0, 0, 0))
	assert.Nil(t, empty.RetentionRate)
	require.NotNil(t, empty.NextAutoTier)
	assert.Equal(t, "Certified", empty.NextAutoTier.Name)
	assert.Equal(t, "50", empty.HoursNeeded.String())
	assert.Equal(t, 5, empty.StudentsNeeded)
}

func TestEvaluateNextAutoTierFollowsHours(t *testing.T) {
	ladder := tiers.DefaultTeacherLadder()

	tests := []struct {
		name   string
		level  int
		hours  int64
		next   string
		needed string
	}{
		{name: "fresh teacher", level: 1, hours: 0, next: "Certified", needed: "50"},
		{name: "exactly at certified floor", level: 1, hours: 50, next: "Senior", needed: "50"},
		{name: "past senior floor", level: 1, hours: 120, next: "Expert", needed: "130"},
		{name: "certified working to senior", level: 2, hours: 80, next: "Senior", needed: "20"},
		{name: "all automatic floors met", level: 1, hours: 300, next: "", needed: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eval := Evaluate(ladder, tc.level, metricsOf(tc.hours, 0, 0))
			if tc.next == "" {
				assert.Nil(t, eval.NextAutoTier)
			} else {
				require.NotNil(t, eval.NextAutoTier)
				assert.Equal(t, tc.next, eval.NextAutoTier.Name)
			}
			assert.Equal(t, tc.needed, eval.HoursNeeded.String())
		})
	}
}

func TestEvaluateReportsRetentionAtFloor(t *testing.T) {
	eval := Evaluate(tiers.DefaultTeacherLadder(), 1, metricsOf(120, 5, 4))
	require.NotNil(t, eval.RetentionRate)
	assert.Equal(t, "0.8", eval.RetentionRate.String())
	require.NotNil(t, eval.NextAutoTier)
	assert.Equal(t, "Expert", eval.NextAutoTier.Name)
	assert.Equal(t, 5, eval.StudentsNeeded)
	assert.Nil(t, eval.RetentionNeeded)
	assert.True(t, eval.Eligible)
}

func TestEvaluateAboveAutoLadder(t *testing.T) {
	eval := Evaluate(tiers.DefaultTeacherLadder(), 5, metricsOf(600, 20, 18))
	assert.Equal(t, "Master", eval.Tier.Name)
	assert.Nil(t, eval.NextAutoTier)
	assert.Nil(t, eval.RetentionNeeded)
	require.NotNil(t, eval.RetentionRate)
	assert.False(t, eval.Eligible)
}
