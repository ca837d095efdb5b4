package goal

type CreateGoalRequest struct {
	Name         string  `json:"name" validate:"required"`
	TargetAmount int64   `json:"target_amount" validate:"required,gte=0"`
	PeriodTarget int64   `json:"period_target" validate:"required"`
	Cadence      Cadence `json:"cadence" validate:"required,oneof=daily weekly"`
	Deadline     string  `json:"deadline"` // YYYY-MM-DD
}

type UpdateGoalRequest struct {
	Name         *string  `json:"name,omitempty"`
	TargetAmount *int64   `json:"target_amount,omitempty"`
	PeriodTarget *int64   `json:"period_target,omitempty"`
	Cadence      *Cadence `json:"cadence,omitempty"`
	Deadline     *string  `json:"deadline,omitempty"` // YYYY-MM-DD
}

// ProgressResponse is the derived view the mobile client renders on the goal
// screen: progress bar, streak badge, at-risk banner and pace estimate.
type ProgressResponse struct {
	Goal                   *Goal `json:"goal"`
	TotalSaved             int64 `json:"total_saved"`
	HasSavedThisPeriod     bool  `json:"has_saved_this_period"`
	AtRisk                 bool  `json:"at_risk"`
	RemainingContributions int   `json:"remaining_contributions"`
	PeriodsSinceLastSave   *int  `json:"periods_since_last_save,omitempty"`
	DaysToDeadline         int   `json:"days_to_deadline"`
}
