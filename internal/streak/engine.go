// Package streak derives streak state for a savings goal from its
// contribution history. Everything in here is pure: no I/O, no clocks, no
// mutation of inputs. Callers pass "now" explicitly and persist the returned
// values themselves, so two calls over the same snapshot always agree.
package streak

import (
	"time"

	"stashHabitAPI/internal/types/contribution"
	"stashHabitAPI/internal/types/goal"
)

const (
	// WeekStart is the fixed first day of a weekly period. Not derived from
	// locale.
	WeekStart = time.Sunday

	// MaxLookback caps how far CurrentStreak walks into the past. Bounds the
	// scan to at most ~366 daily or ~54 weekly periods regardless of history
	// length.
	MaxLookback = 365 * 24 * time.Hour
)

// Result is the snapshot a recomputation produces. The caller writes it back
// onto the goal's cached fields.
type Result struct {
	CurrentStreak        int
	LongestStreak        int
	LastContributionDate *time.Time
}

// PeriodKey maps a timestamp to the canonical start of the period containing
// it: midnight of the same day for daily cadence, midnight of the enclosing
// week's Sunday for weekly. The key keeps the timestamp's location, so all
// timestamps fed to one computation must share a location.
func PeriodKey(t time.Time, cadence goal.Cadence) time.Time {
	year, month, day := t.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	if cadence != goal.CadenceWeekly {
		return dayStart
	}
	offset := int(dayStart.Weekday() - WeekStart)
	if offset < 0 {
		offset += 7
	}
	return dayStart.AddDate(0, 0, -offset)
}

func previousPeriod(key time.Time, cadence goal.Cadence) time.Time {
	if cadence == goal.CadenceWeekly {
		return key.AddDate(0, 0, -7)
	}
	return key.AddDate(0, 0, -1)
}

func periodTotals(g *goal.Goal, contribs []*contribution.Contribution) map[time.Time]int64 {
	totals := make(map[time.Time]int64, len(contribs))
	for _, c := range contribs {
		totals[PeriodKey(c.LoggedAt, g.Cadence)] += c.Amount
	}
	return totals
}

// CurrentStreak counts consecutive periods whose contribution totals reached
// the goal's period target, walking backward from the period containing now.
// The current period gets grace: if it hasn't met the target yet it neither
// counts nor breaks the streak, because it isn't over. Any past period below
// target ends the walk. The walk never crosses the MaxLookback floor.
//
// A period target <= 0 makes every period trivially met; the scan then runs
// to the floor and returns the capped count. Degenerate, but defined.
func CurrentStreak(g *goal.Goal, contribs []*contribution.Contribution, now time.Time) int {
	if len(contribs) == 0 {
		return 0
	}

	totals := periodTotals(g, contribs)
	current := PeriodKey(now, g.Cadence)
	floor := PeriodKey(now.Add(-MaxLookback), g.Cadence)

	count := 0
	for cursor := current; !cursor.Before(floor); cursor = previousPeriod(cursor, g.Cadence) {
		if totals[cursor] >= g.PeriodTarget {
			count++
			continue
		}
		if cursor.Equal(current) {
			// Grace: the running period hasn't finished yet.
			continue
		}
		break
	}
	return count
}

// HasSavedThisPeriod reports whether any contribution falls in the period
// containing now. Intentionally an existence check, not a target check: a
// user who logs any amount today has "saved today" for UI and at-risk
// purposes even if the period target isn't reached yet.
func HasSavedThisPeriod(g *goal.Goal, contribs []*contribution.Contribution, now time.Time) bool {
	current := PeriodKey(now, g.Cadence)
	for _, c := range contribs {
		if PeriodKey(c.LoggedAt, g.Cadence).Equal(current) {
			return true
		}
	}
	return false
}

// AtRisk reports whether an existing streak could break when the current
// period ends. A streak of zero is never at risk.
func AtRisk(g *goal.Goal, contribs []*contribution.Contribution, now time.Time) bool {
	if CurrentStreak(g, contribs, now) == 0 {
		return false
	}
	return !HasSavedThisPeriod(g, contribs, now)
}

// Recompute derives the full streak snapshot from the complete contribution
// set. Must run after every contribution insert or delete and after any edit
// to cadence or period target, since those shift period boundaries
// retroactively. LongestStreak never decreases below its stored value, so
// Result.LongestStreak >= Result.CurrentStreak always holds.
func Recompute(g *goal.Goal, contribs []*contribution.Contribution, now time.Time) Result {
	current := CurrentStreak(g, contribs, now)

	longest := g.LongestStreak
	if current > longest {
		longest = current
	}

	var last *time.Time
	for _, c := range contribs {
		if last == nil || c.LoggedAt.After(*last) {
			t := c.LoggedAt
			last = &t
		}
	}

	return Result{
		CurrentStreak:        current,
		LongestStreak:        longest,
		LastContributionDate: last,
	}
}

// TotalSaved sums all contribution amounts, independent of period bucketing.
func TotalSaved(contribs []*contribution.Contribution) int64 {
	var total int64
	for _, c := range contribs {
		total += c.Amount
	}
	return total
}

// RemainingContributions estimates how many more target-sized contributions
// finish the goal: ceil((targetAmount - totalSaved) / periodTarget). Zero
// once the target is met, and zero for a non-positive period target (no
// meaningful pace exists).
func RemainingContributions(g *goal.Goal, totalSaved int64) int {
	remaining := g.TargetAmount - totalSaved
	if remaining <= 0 || g.PeriodTarget <= 0 {
		return 0
	}
	return int((remaining + g.PeriodTarget - 1) / g.PeriodTarget)
}

// PeriodsSinceLastContribution returns the calendar distance between the last
// contribution and now, in the goal's own period unit: days for daily
// cadence, weeks for weekly. The second return is false when the goal has
// never seen a contribution.
func PeriodsSinceLastContribution(g *goal.Goal, now time.Time) (int, bool) {
	if g.LastContributionDate == nil {
		return 0, false
	}

	lastKey := PeriodKey(*g.LastContributionDate, g.Cadence)
	nowKey := PeriodKey(now, g.Cadence)

	// Rounding absorbs DST-shortened or -lengthened days between the keys.
	days := int((nowKey.Sub(lastKey) + 12*time.Hour) / (24 * time.Hour))
	if g.Cadence == goal.CadenceWeekly {
		return days / 7, true
	}
	return days, true
}
