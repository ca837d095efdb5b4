package calendar

import "time"

type CalendarDay struct {
	Date       time.Time `json:"date" db:"date"`
	Saved      bool      `json:"saved" db:"saved"`
	TotalSaved int64     `json:"total_saved" db:"total_saved"`
	IsToday    bool      `json:"is_today"`
}

type CalendarResponse struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Days  []*CalendarDay `json:"days"`
}
