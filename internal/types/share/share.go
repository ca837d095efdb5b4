package share

import "time"

// ShareLinkResponse is returned when a user shares a goal. QRCode is a
// base64-encoded PNG of the share URL for in-app display.
type ShareLinkResponse struct {
	ShareURL  string    `json:"share_url"`
	Token     string    `json:"token"`
	QRCode    string    `json:"qr_code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SharedGoalResponse is the public, read-only snapshot behind a share link.
// It carries no user identity beyond a display name.
type SharedGoalResponse struct {
	GoalName       string  `json:"goal_name"`
	OwnerName      string  `json:"owner_name"`
	Cadence        string  `json:"cadence"`
	TargetAmount   int64   `json:"target_amount"`
	TotalSaved     int64   `json:"total_saved"`
	PercentSaved   float64 `json:"percent_saved"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
	DaysToDeadline int     `json:"days_to_deadline"`
}
