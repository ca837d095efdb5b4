package contribution

import (
	"time"

	"github.com/google/uuid"
)

// Contribution is one logged saving event. Amount is minor units and must be
// positive. Contributions are immutable after insert; the only mutation the
// API allows is deletion, which forces a streak recomputation on the goal.
type Contribution struct {
	ID        uuid.UUID `json:"id" db:"id"`
	GoalID    uuid.UUID `json:"goal_id" db:"goal_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Note      *string   `json:"note,omitempty" db:"note"`
	LoggedAt  time.Time `json:"logged_at" db:"logged_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type LogContributionRequest struct {
	Amount   int64      `json:"amount" validate:"required,gt=0"`
	Note     *string    `json:"note,omitempty"`
	LoggedAt *time.Time `json:"logged_at,omitempty"` // backdating allowed, defaults to now
}
