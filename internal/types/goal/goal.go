package goal

import (
	"time"

	"github.com/google/uuid"
)

// Cadence defines the length of one savings period a streak is measured over.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

func (c Cadence) Valid() bool {
	return c == CadenceDaily || c == CadenceWeekly
}

// Goal is a savings target. All monetary values are integer minor units
// (cents), never floats. CurrentStreak/LongestStreak/LastContributionDate are
// cached results of the streak engine and are rewritten after every
// contribution insert or delete and after any cadence/period-target edit.
type Goal struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	UserID               uuid.UUID  `json:"user_id" db:"user_id"`
	Name                 string     `json:"name" db:"name"`
	TargetAmount         int64      `json:"target_amount" db:"target_amount"`
	PeriodTarget         int64      `json:"period_target" db:"period_target"`
	Cadence              Cadence    `json:"cadence" db:"cadence"`
	Deadline             time.Time  `json:"deadline" db:"deadline"`
	CurrentStreak        int        `json:"current_streak" db:"current_streak"`
	LongestStreak        int        `json:"longest_streak" db:"longest_streak"`
	LastContributionDate *time.Time `json:"last_contribution_date" db:"last_contribution_date"`
	IsArchived           bool       `json:"is_archived" db:"is_archived"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// DaysToDeadline reports whole days until the deadline, negative once passed.
func (g *Goal) DaysToDeadline(now time.Time) int {
	return int(g.Deadline.Sub(now).Hours() / 24)
}
