package achievement

import (
	"time"

	"github.com/google/uuid"
)

type CriteriaType string

const (
	CriteriaStreak         CriteriaType = "streak"
	CriteriaTotalSaved     CriteriaType = "total_saved"
	CriteriaGoalsCompleted CriteriaType = "goals_completed"
	CriteriaContributions  CriteriaType = "contributions"
	CriteriaPerfectWeek    CriteriaType = "perfect_week"
)

type Achievement struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Name          string       `json:"name" db:"name"`
	Description   string       `json:"description" db:"description"`
	Icon          string       `json:"icon" db:"icon"`
	CriteriaType  CriteriaType `json:"criteria_type" db:"criteria_type"`
	CriteriaValue int64        `json:"criteria_value" db:"criteria_value"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

type UserAchievement struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	AchievementID uuid.UUID `json:"achievement_id" db:"achievement_id"`
	UnlockedAt    time.Time `json:"unlocked_at" db:"unlocked_at"`
}

type AchievementWithStatus struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// Progress is the subset of a user's savings stats achievements are judged
// against.
type Progress struct {
	BestStreak         int
	TotalSaved         int64
	GoalsCompleted     int
	TotalContributions int
	PerfectWeeks       int
}

// Met reports whether the user's progress satisfies an achievement's
// criteria. Unknown criteria types never unlock.
func Met(a *Achievement, p Progress) bool {
	switch a.CriteriaType {
	case CriteriaStreak:
		return int64(p.BestStreak) >= a.CriteriaValue
	case CriteriaTotalSaved:
		return p.TotalSaved >= a.CriteriaValue
	case CriteriaGoalsCompleted:
		return int64(p.GoalsCompleted) >= a.CriteriaValue
	case CriteriaContributions:
		return int64(p.TotalContributions) >= a.CriteriaValue
	case CriteriaPerfectWeek:
		return int64(p.PerfectWeeks) >= a.CriteriaValue
	default:
		return false
	}
}
