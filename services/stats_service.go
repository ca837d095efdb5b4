package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"stashHabitAPI/internal/achievement"
	"stashHabitAPI/internal/stats"
	"stashHabitAPI/internal/types/calendar"
	"stashHabitAPI/internal/types/notification"
)

type StatsService struct {
	db                  *pgxpool.Pool
	notificationService *NotificationService
}

func NewStatsService(db *pgxpool.Pool, notificationService *NotificationService) *StatsService {
	return &StatsService{db: db, notificationService: notificationService}
}

func (s *StatsService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

// GetUserStats aggregates savings activity across all of the user's goals.
// Streak numbers come straight from the engine-maintained goal columns, so
// no streak math happens in SQL here.
func (s *StatsService) GetUserStats(ctx context.Context, clerkID string) (*stats.UserStats, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	// Achievements come from a scalar subquery. Joining user_achievements
	// onto the contribution rows would repeat every contribution once per
	// unlocked achievement and inflate SUM/COUNT.
	query := `
	SELECT
		COALESCE(COUNT(DISTINCT c.id) FILTER (WHERE c.logged_at::date = CURRENT_DATE), 0) > 0 AS saved_today,
		COALESCE(COUNT(DISTINCT g.id) FILTER (WHERE g.is_archived = false), 0) AS active_goals,
		COALESCE(SUM(c.amount), 0) AS total_saved,
		COALESCE(COUNT(c.id), 0) AS total_contributions,
		COALESCE(COUNT(DISTINCT c.logged_at::date) FILTER (WHERE c.logged_at >= DATE_TRUNC('week', CURRENT_DATE)), 0) AS saves_this_week,
		COALESCE(COUNT(DISTINCT c.logged_at::date) FILTER (WHERE c.logged_at >= DATE_TRUNC('month', CURRENT_DATE)), 0) AS saves_this_month,
		COALESCE(MAX(g.current_streak), 0) AS best_current_streak,
		COALESCE(MAX(g.longest_streak), 0) AS best_longest_streak,
		(SELECT COUNT(*) FROM user_achievements ua WHERE ua.user_id = u.id) AS achievements_count
	FROM users u
	LEFT JOIN goals g ON g.user_id = u.id
	LEFT JOIN contributions c ON c.goal_id = g.id
	WHERE u.id = $1
	GROUP BY u.id
	`

	st := &stats.UserStats{}
	err = s.db.QueryRow(ctx, query, userID).Scan(
		&st.SavedToday,
		&st.ActiveGoals,
		&st.TotalSaved,
		&st.TotalContributions,
		&st.SavesThisWeek,
		&st.SavesThisMonth,
		&st.BestCurrentStreak,
		&st.BestLongestStreak,
		&st.AchievementsCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	summaryQuery := `
	SELECT g.id, g.name, g.target_amount, COALESCE(SUM(c.amount), 0) AS total_saved,
	       g.current_streak, g.longest_streak
	FROM goals g
	LEFT JOIN contributions c ON c.goal_id = g.id
	WHERE g.user_id = $1 AND g.is_archived = false
	GROUP BY g.id
	ORDER BY g.created_at DESC
	`

	rows, err := s.db.Query(ctx, summaryQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch goal summaries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gs stats.GoalSummary
		if err := rows.Scan(&gs.GoalID, &gs.Name, &gs.TargetAmount, &gs.TotalSaved, &gs.CurrentStreak, &gs.LongestStreak); err != nil {
			return nil, fmt.Errorf("failed to scan goal summary: %w", err)
		}
		gs.Completed = gs.TotalSaved >= gs.TargetAmount
		if gs.Completed {
			st.CompletedGoals++
		}
		st.Goals = append(st.Goals, gs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return st, nil
}

// GetCalendar returns one month of saving activity for the calendar heatmap.
func (s *StatsService) GetCalendar(ctx context.Context, clerkID string, year int, month int) (*calendar.CalendarResponse, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	startDate := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 1, -1)

	query := `
	SELECT c.logged_at::date AS day, SUM(c.amount) AS total
	FROM contributions c
	JOIN goals g ON g.id = c.goal_id
	WHERE g.user_id = $1
		AND c.logged_at::date >= $2
		AND c.logged_at::date <= $3
	GROUP BY day
	ORDER BY day
	`

	rows, err := s.db.Query(ctx, query, userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar: %w", err)
	}
	defer rows.Close()

	dayTotals := make(map[string]int64)
	for rows.Next() {
		var day time.Time
		var total int64
		if err := rows.Scan(&day, &total); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		dayTotals[day.Format("2006-01-02")] = total
	}

	var days []*calendar.CalendarDay
	today := time.Now().Format("2006-01-02")

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format("2006-01-02")
		total, saved := dayTotals[dateStr]
		days = append(days, &calendar.CalendarDay{
			Date:       d,
			Saved:      saved,
			TotalSaved: total,
			IsToday:    dateStr == today,
		})
	}

	return &calendar.CalendarResponse{
		Year:  year,
		Month: month,
		Days:  days,
	}, nil
}

func (s *StatsService) GetAchievements(ctx context.Context, clerkID string) ([]*achievement.AchievementWithStatus, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT a.id, a.name, a.description, a.icon, a.criteria_type, a.criteria_value, a.created_at,
	       ua.unlocked_at
	FROM achievements a
	LEFT JOIN user_achievements ua ON ua.achievement_id = a.id AND ua.user_id = $1
	ORDER BY a.criteria_type, a.criteria_value
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch achievements: %w", err)
	}
	defer rows.Close()

	var achievements []*achievement.AchievementWithStatus
	for rows.Next() {
		a := &achievement.AchievementWithStatus{}
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Description, &a.Icon, &a.CriteriaType, &a.CriteriaValue, &a.CreatedAt,
			&a.UnlockedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Unlocked = a.UnlockedAt != nil
		achievements = append(achievements, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if achievements == nil {
		achievements = []*achievement.AchievementWithStatus{}
	}
	return achievements, nil
}

// CheckAchievements unlocks any achievements the user's current progress
// satisfies and notifies about each. Runs after contribution writes; safe to
// call repeatedly.
func (s *StatsService) CheckAchievements(ctx context.Context, userID uuid.UUID) {
	progress, err := s.loadProgress(ctx, userID)
	if err != nil {
		log.Printf("Achievement check: failed to load progress for user %s: %v", userID, err)
		return
	}

	query := `
	SELECT a.id, a.name, a.description, a.icon, a.criteria_type, a.criteria_value, a.created_at
	FROM achievements a
	WHERE NOT EXISTS (
		SELECT 1 FROM user_achievements ua WHERE ua.achievement_id = a.id AND ua.user_id = $1
	)
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		log.Printf("Achievement check: failed to fetch locked achievements: %v", err)
		return
	}
	defer rows.Close()

	var unlocked []*achievement.Achievement
	for rows.Next() {
		a := &achievement.Achievement{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Icon, &a.CriteriaType, &a.CriteriaValue, &a.CreatedAt); err != nil {
			continue
		}
		if achievement.Met(a, progress) {
			unlocked = append(unlocked, a)
		}
	}

	for _, a := range unlocked {
		_, err := s.db.Exec(ctx, `
			INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, achievement_id) DO NOTHING
		`, uuid.New(), userID, a.ID)
		if err != nil {
			log.Printf("Achievement check: failed to unlock %s for user %s: %v", a.Name, userID, err)
			continue
		}

		if s.notificationService != nil {
			_, err = s.notificationService.CreateNotification(ctx, &notification.CreateNotificationRequest{
				UserID:   userID,
				Type:     notification.TypeAchievement,
				Priority: notification.PriorityNormal,
				Data:     map[string]any{"achievement_name": a.Name},
			})
			if err != nil {
				log.Printf("Achievement check: failed to notify unlock of %s: %v", a.Name, err)
			}
		}
	}
}

func (s *StatsService) loadProgress(ctx context.Context, userID uuid.UUID) (achievement.Progress, error) {
	var p achievement.Progress

	query := `
	SELECT
		COALESCE(MAX(g.longest_streak), 0),
		COALESCE(SUM(c.amount), 0),
		COALESCE(COUNT(c.id), 0)
	FROM goals g
	LEFT JOIN contributions c ON c.goal_id = g.id
	WHERE g.user_id = $1
	`
	err := s.db.QueryRow(ctx, query, userID).Scan(&p.BestStreak, &p.TotalSaved, &p.TotalContributions)
	if err != nil {
		return p, fmt.Errorf("failed to load progress: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT g.id
			FROM goals g
			LEFT JOIN contributions c ON c.goal_id = g.id
			WHERE g.user_id = $1 AND g.target_amount > 0
			GROUP BY g.id
			HAVING COALESCE(SUM(c.amount), 0) >= g.target_amount
		) completed
	`, userID).Scan(&p.GoalsCompleted)
	if err != nil {
		return p, fmt.Errorf("failed to count completed goals: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM (
			SELECT DATE_TRUNC('week', c.logged_at) AS wk, COUNT(DISTINCT c.logged_at::date) AS days
			FROM contributions c
			JOIN goals g ON g.id = c.goal_id
			WHERE g.user_id = $1
			GROUP BY wk
		) weeks
		WHERE days >= 7
	`, userID).Scan(&p.PerfectWeeks)
	if err != nil {
		return p, fmt.Errorf("failed to count perfect weeks: %w", err)
	}

	return p, nil
}
