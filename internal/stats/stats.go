package stats

import "github.com/google/uuid"

// GoalSummary is one row of the per-goal breakdown on the stats screen.
type GoalSummary struct {
	GoalID        uuid.UUID `json:"goal_id" db:"goal_id"`
	Name          string    `json:"name" db:"name"`
	TargetAmount  int64     `json:"target_amount" db:"target_amount"`
	TotalSaved    int64     `json:"total_saved" db:"total_saved"`
	CurrentStreak int       `json:"current_streak" db:"current_streak"`
	LongestStreak int       `json:"longest_streak" db:"longest_streak"`
	Completed     bool      `json:"completed"`
}

type UserStats struct {
	SavedToday         bool          `json:"saved_today"`
	ActiveGoals        int           `json:"active_goals"`
	CompletedGoals     int           `json:"completed_goals"`
	TotalSaved         int64         `json:"total_saved"`
	TotalContributions int           `json:"total_contributions"`
	SavesThisWeek      int           `json:"saves_this_week"`
	SavesThisMonth     int           `json:"saves_this_month"`
	BestCurrentStreak  int           `json:"best_current_streak"`
	BestLongestStreak  int           `json:"best_longest_streak"`
	AchievementsCount  int           `json:"achievements_count"`
	Goals              []GoalSummary `json:"goals"`
}
