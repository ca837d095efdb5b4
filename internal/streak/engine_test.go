package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashHabitAPI/internal/types/contribution"
	"stashHabitAPI/internal/types/goal"
)

// Wednesday afternoon. 2025-06-15 is the Sunday starting this week.
var now = time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)

func dailyGoal(periodTarget int64) *goal.Goal {
	return &goal.Goal{
		Name:         "rainy day fund",
		TargetAmount: 100000,
		PeriodTarget: periodTarget,
		Cadence:      goal.CadenceDaily,
	}
}

func weeklyGoal(periodTarget int64) *goal.Goal {
	g := dailyGoal(periodTarget)
	g.Cadence = goal.CadenceWeekly
	return g
}

func contrib(amount int64, at time.Time) *contribution.Contribution {
	return &contribution.Contribution{Amount: amount, LoggedAt: at}
}

func daysAgo(n int) time.Time {
	return now.AddDate(0, 0, -n)
}

func TestPeriodKey(t *testing.T) {
	tests := []struct {
		name    string
		cadence goal.Cadence
		in      time.Time
		want    time.Time
	}{
		{"daily truncates to midnight", goal.CadenceDaily, now, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)},
		{"daily keeps midnight", goal.CadenceDaily, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)},
		{"weekly wednesday maps to sunday", goal.CadenceWeekly, now, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"weekly sunday maps to itself", goal.CadenceWeekly, time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"weekly saturday maps to preceding sunday", goal.CadenceWeekly, time.Date(2025, 6, 21, 1, 0, 0, 0, time.UTC), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, PeriodKey(tt.in, tt.cadence).Equal(tt.want))
		})
	}
}

func TestCurrentStreakNoContributions(t *testing.T) {
	assert.Equal(t, 0, CurrentStreak(dailyGoal(500), nil, now))
}

func TestCurrentStreakDailyConsecutive(t *testing.T) {
	// $5/day target, saved on D, D-1, D-2, nothing on D-3.
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(0)),
		contrib(700, daysAgo(1)),
		contrib(500, daysAgo(2)),
	}

	assert.Equal(t, 3, CurrentStreak(g, contribs, now))
	assert.True(t, HasSavedThisPeriod(g, contribs, now))
	assert.False(t, AtRisk(g, contribs, now))
}

func TestCurrentStreakGraceForToday(t *testing.T) {
	// Nothing today, but D-1..D-3 each met: grace keeps the streak at 3 and
	// flags it at risk.
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(1)),
		contrib(500, daysAgo(2)),
		contrib(600, daysAgo(3)),
	}

	assert.Equal(t, 3, CurrentStreak(g, contribs, now))
	assert.False(t, HasSavedThisPeriod(g, contribs, now))
	assert.True(t, AtRisk(g, contribs, now))
}

func TestTodayBelowTargetIsNotAtRisk(t *testing.T) {
	// The "saved today" check is existence-based on purpose: $2 logged today
	// against a $5 target doesn't extend the streak, but it does clear the
	// at-risk banner.
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(200, daysAgo(0)),
		contrib(500, daysAgo(1)),
	}

	assert.Equal(t, 1, CurrentStreak(g, contribs, now))
	assert.True(t, HasSavedThisPeriod(g, contribs, now))
	assert.False(t, AtRisk(g, contribs, now))
}

func TestContributionsSumWithinPeriod(t *testing.T) {
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(300, daysAgo(0)),
		contrib(250, now.Add(-2*time.Hour)),
	}

	assert.Equal(t, 1, CurrentStreak(g, contribs, now))
}

func TestBrokenStreakStopsAtPastPeriod(t *testing.T) {
	// D-1 only reached $3 of $5, so nothing counts even though D-2 was met.
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(300, daysAgo(1)),
		contrib(900, daysAgo(2)),
	}

	assert.Equal(t, 0, CurrentStreak(g, contribs, now))
	assert.False(t, AtRisk(g, contribs, now), "a zero streak has nothing to lose")
}

func TestWeeklySingleContribution(t *testing.T) {
	// $35/week target, one $40 save on Wednesday of the current week.
	g := weeklyGoal(3500)
	contribs := []*contribution.Contribution{
		contrib(4000, now),
	}

	assert.True(t, HasSavedThisPeriod(g, contribs, now))
	assert.Equal(t, 1, CurrentStreak(g, contribs, now))
}

func TestWeeklyConsecutiveWeeks(t *testing.T) {
	g := weeklyGoal(3500)
	contribs := []*contribution.Contribution{
		contrib(4000, daysAgo(1)),  // this week
		contrib(3500, daysAgo(8)),  // last week
		contrib(2000, daysAgo(15)), // two weeks back, split in two saves
		contrib(1500, daysAgo(16)),
	}

	assert.Equal(t, 3, CurrentStreak(g, contribs, now))

	// Three weeks back is empty, so the walk stopped there.
	contribs = append(contribs, contrib(100, daysAgo(22)))
	assert.Equal(t, 3, CurrentStreak(g, contribs, now))
}

func TestBackdatedContributionFillsGap(t *testing.T) {
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(0)),
		contrib(500, daysAgo(2)),
	}
	assert.Equal(t, 1, CurrentStreak(g, contribs, now))

	// Backdating a save into the D-1 hole reconnects the run.
	contribs = append(contribs, contrib(500, daysAgo(1)))
	assert.Equal(t, 3, CurrentStreak(g, contribs, now))
}

func TestZeroPeriodTargetIsCappedByLookback(t *testing.T) {
	// A non-positive target makes every period trivially met, so the scan
	// runs until the one-year floor and stops.
	g := dailyGoal(0)
	contribs := []*contribution.Contribution{
		contrib(100, daysAgo(3)),
	}

	floor := PeriodKey(now.Add(-MaxLookback), g.Cadence)
	expected := 0
	for cursor := PeriodKey(now, g.Cadence); !cursor.Before(floor); cursor = cursor.AddDate(0, 0, -1) {
		expected++
	}

	got := CurrentStreak(g, contribs, now)
	assert.Equal(t, expected, got)
	assert.LessOrEqual(t, got, 366)
}

func TestLongHistoryStopsAtLookbackCap(t *testing.T) {
	g := dailyGoal(500)
	var contribs []*contribution.Contribution
	for i := 0; i < 400; i++ {
		contribs = append(contribs, contrib(500, daysAgo(i)))
	}

	floor := PeriodKey(now.Add(-MaxLookback), g.Cadence)
	expected := 0
	for cursor := PeriodKey(now, g.Cadence); !cursor.Before(floor); cursor = cursor.AddDate(0, 0, -1) {
		expected++
	}

	assert.Equal(t, expected, CurrentStreak(g, contribs, now))
}

func TestCurrentStreakIsIdempotent(t *testing.T) {
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(0)),
		contrib(500, daysAgo(1)),
	}

	first := CurrentStreak(g, contribs, now)
	second := CurrentStreak(g, contribs, now)
	assert.Equal(t, first, second)
}

func TestMeetingTodayNeverDecreasesStreak(t *testing.T) {
	g := dailyGoal(500)
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(1)),
		contrib(500, daysAgo(2)),
	}
	before := CurrentStreak(g, contribs, now)

	contribs = append(contribs, contrib(500, daysAgo(0)))
	after := CurrentStreak(g, contribs, now)

	assert.GreaterOrEqual(t, after, before)
	assert.Equal(t, 3, after)
}

func TestRecompute(t *testing.T) {
	g := dailyGoal(500)
	g.LongestStreak = 10 // from an earlier, longer run

	latest := daysAgo(0)
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(1)),
		contrib(500, latest),
		contrib(500, daysAgo(2)),
	}

	res := Recompute(g, contribs, now)

	assert.Equal(t, 3, res.CurrentStreak)
	assert.Equal(t, 10, res.LongestStreak, "stored longest streak is never lowered")
	require.NotNil(t, res.LastContributionDate)
	assert.True(t, res.LastContributionDate.Equal(latest))
	assert.GreaterOrEqual(t, res.LongestStreak, res.CurrentStreak)
}

func TestRecomputeRaisesLongestStreak(t *testing.T) {
	g := dailyGoal(500)
	g.LongestStreak = 1

	var contribs []*contribution.Contribution
	for i := 0; i < 5; i++ {
		contribs = append(contribs, contrib(500, daysAgo(i)))
	}

	res := Recompute(g, contribs, now)
	assert.Equal(t, 5, res.CurrentStreak)
	assert.Equal(t, 5, res.LongestStreak)
}

func TestRecomputeEmptyHistory(t *testing.T) {
	res := Recompute(dailyGoal(500), nil, now)
	assert.Equal(t, 0, res.CurrentStreak)
	assert.Nil(t, res.LastContributionDate)
}

func TestRemainingContributions(t *testing.T) {
	tests := []struct {
		name         string
		targetAmount int64
		periodTarget int64
		totalSaved   int64
		want         int
	}{
		{"spec scenario $1000 target, $600 saved, $50 steps", 100000, 5000, 60000, 8},
		{"exact division", 100000, 5000, 50000, 10},
		{"rounds up", 100000, 3000, 0, 34},
		{"already met", 100000, 5000, 100000, 0},
		{"overshot", 100000, 5000, 120000, 0},
		{"zero period target", 100000, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := dailyGoal(tt.periodTarget)
			g.TargetAmount = tt.targetAmount
			assert.Equal(t, tt.want, RemainingContributions(g, tt.totalSaved))
		})
	}
}

func TestTotalSaved(t *testing.T) {
	contribs := []*contribution.Contribution{
		contrib(500, daysAgo(0)),
		contrib(1250, daysAgo(1)),
	}
	assert.Equal(t, int64(1750), TotalSaved(contribs))
	assert.Equal(t, int64(0), TotalSaved(nil))
}

func TestPeriodsSinceLastContribution(t *testing.T) {
	g := dailyGoal(500)
	_, ok := PeriodsSinceLastContribution(g, now)
	assert.False(t, ok, "never saved")

	last := daysAgo(3)
	g.LastContributionDate = &last
	n, ok := PeriodsSinceLastContribution(g, now)
	require.True(t, ok)
	assert.Equal(t, 3, n)

	w := weeklyGoal(3500)
	lastWeekly := daysAgo(14)
	w.LastContributionDate = &lastWeekly
	n, ok = PeriodsSinceLastContribution(w, now)
	require.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestEngineDoesNotMutateInputs(t *testing.T) {
	g := dailyGoal(500)
	g.CurrentStreak = 99
	g.LongestStreak = 99
	contribs := []*contribution.Contribution{contrib(500, daysAgo(0))}

	_ = Recompute(g, contribs, now)
	_ = AtRisk(g, contribs, now)

	assert.Equal(t, 99, g.CurrentStreak)
	assert.Equal(t, 99, g.LongestStreak)
	assert.Equal(t, int64(500), contribs[0].Amount)
}
