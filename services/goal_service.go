package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stashHabitAPI/internal/streak"
	"stashHabitAPI/internal/types/contribution"
	"stashHabitAPI/internal/types/goal"
	"stashHabitAPI/internal/types/notification"
)

// Streak milestones that trigger a celebration notification.
var streakMilestones = []int{7, 14, 30, 60, 100, 365}

type GoalService struct {
	db                  *pgxpool.Pool
	notificationService *NotificationService
	statsService        *StatsService
}

func NewGoalService(db *pgxpool.Pool, notificationService *NotificationService, statsService *StatsService) *GoalService {
	return &GoalService{db: db, notificationService: notificationService, statsService: statsService}
}

func (s *GoalService) getUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("user not found: %w", err)
	}
	return userID, nil
}

func (s *GoalService) CreateGoal(ctx context.Context, clerkID string, req *goal.CreateGoalRequest) (*goal.Goal, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if req.Name == "" {
		return nil, fmt.Errorf("goal name is required")
	}
	if req.TargetAmount < 0 {
		return nil, fmt.Errorf("target amount must not be negative")
	}
	if !req.Cadence.Valid() {
		return nil, fmt.Errorf("cadence must be 'daily' or 'weekly'")
	}

	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline, expected YYYY-MM-DD: %w", err)
	}

	query := `
	INSERT INTO goals (id, user_id, name, target_amount, period_target, cadence, deadline, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	RETURNING id, user_id, name, target_amount, period_target, cadence, deadline,
	          current_streak, longest_streak, last_contribution_date, is_archived, created_at, updated_at
	`

	g := &goal.Goal{}
	err = s.db.QueryRow(ctx, query, uuid.New(), userID, req.Name, req.TargetAmount, req.PeriodTarget, req.Cadence, deadline).Scan(
		&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.PeriodTarget, &g.Cadence, &g.Deadline,
		&g.CurrentStreak, &g.LongestStreak, &g.LastContributionDate, &g.IsArchived, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	return g, nil
}

func (s *GoalService) GetGoals(ctx context.Context, clerkID string, includeArchived bool) ([]*goal.Goal, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, user_id, name, target_amount, period_target, cadence, deadline,
	       current_streak, longest_streak, last_contribution_date, is_archived, created_at, updated_at
	FROM goals
	WHERE user_id = $1 AND (is_archived = false OR $2)
	ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch goals: %w", err)
	}
	defer rows.Close()

	var goals []*goal.Goal
	for rows.Next() {
		g := &goal.Goal{}
		err := rows.Scan(
			&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.PeriodTarget, &g.Cadence, &g.Deadline,
			&g.CurrentStreak, &g.LongestStreak, &g.LastContributionDate, &g.IsArchived, &g.CreatedAt, &g.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if goals == nil {
		goals = []*goal.Goal{}
	}
	return goals, nil
}

func (s *GoalService) GetGoalByID(ctx context.Context, clerkID string, goalID uuid.UUID) (*goal.Goal, error) {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, user_id, name, target_amount, period_target, cadence, deadline,
	       current_streak, longest_streak, last_contribution_date, is_archived, created_at, updated_at
	FROM goals
	WHERE id = $1 AND user_id = $2
	`

	g := &goal.Goal{}
	err = s.db.QueryRow(ctx, query, goalID, userID).Scan(
		&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.PeriodTarget, &g.Cadence, &g.Deadline,
		&g.CurrentStreak, &g.LongestStreak, &g.LastContributionDate, &g.IsArchived, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("goal not found")
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	return g, nil
}

// UpdateGoal edits goal fields. Changing cadence or period target shifts
// period boundaries retroactively, so those edits force a fresh streak
// recomputation over the full contribution history.
func (s *GoalService) UpdateGoal(ctx context.Context, clerkID string, goalID uuid.UUID, req *goal.UpdateGoalRequest) (*goal.Goal, error) {
	g, err := s.GetGoalByID(ctx, clerkID, goalID)
	if err != nil {
		return nil, err
	}

	streakAffected := false
	if req.Name != nil && *req.Name != "" {
		g.Name = *req.Name
	}
	if req.TargetAmount != nil {
		if *req.TargetAmount < 0 {
			return nil, fmt.Errorf("target amount must not be negative")
		}
		g.TargetAmount = *req.TargetAmount
	}
	if req.PeriodTarget != nil {
		g.PeriodTarget = *req.PeriodTarget
		streakAffected = true
	}
	if req.Cadence != nil {
		if !req.Cadence.Valid() {
			return nil, fmt.Errorf("cadence must be 'daily' or 'weekly'")
		}
		g.Cadence = *req.Cadence
		streakAffected = true
	}
	if req.Deadline != nil {
		deadline, err := time.Parse("2006-01-02", *req.Deadline)
		if err != nil {
			return nil, fmt.Errorf("invalid deadline, expected YYYY-MM-DD: %w", err)
		}
		g.Deadline = deadline
	}

	query := `
	UPDATE goals
	SET name = $3, target_amount = $4, period_target = $5, cadence = $6, deadline = $7, updated_at = NOW()
	WHERE id = $1 AND user_id = $2
	`
	_, err = s.db.Exec(ctx, query, g.ID, g.UserID, g.Name, g.TargetAmount, g.PeriodTarget, g.Cadence, g.Deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}

	if streakAffected {
		if err := s.recomputeAndPersist(ctx, g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// ArchiveGoal soft-deletes: the goal stays in place (contributions still
// reference it) but disappears from active listings.
func (s *GoalService) ArchiveGoal(ctx context.Context, clerkID string, goalID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `UPDATE goals SET is_archived = true, updated_at = NOW() WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return fmt.Errorf("failed to archive goal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("goal not found")
	}
	return nil
}

// DeleteGoal removes the goal for good. Contributions are owned by the goal
// and go with it (ON DELETE CASCADE).
func (s *GoalService) DeleteGoal(ctx context.Context, clerkID string, goalID uuid.UUID) error {
	userID, err := s.getUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `DELETE FROM goals WHERE id = $1 AND user_id = $2`, goalID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("goal not found")
	}
	return nil
}

// LogContribution inserts a saving event and recomputes the goal's streak
// snapshot from the full updated history. Completion, streak milestones and
// achievements are checked afterward.
func (s *GoalService) LogContribution(ctx context.Context, clerkID string, goalID uuid.UUID, req *contribution.LogContributionRequest) (*contribution.Contribution, error) {
	g, err := s.GetGoalByID(ctx, clerkID, goalID)
	if err != nil {
		return nil, err
	}
	if g.IsArchived {
		return nil, fmt.Errorf("goal is archived")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	loggedAt := time.Now()
	if req.LoggedAt != nil {
		loggedAt = *req.LoggedAt
	}

	query := `
	INSERT INTO contributions (id, goal_id, amount, note, logged_at, created_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	RETURNING id, goal_id, amount, note, logged_at, created_at
	`

	c := &contribution.Contribution{}
	err = s.db.QueryRow(ctx, query, uuid.New(), g.ID, req.Amount, req.Note, loggedAt).Scan(
		&c.ID, &c.GoalID, &c.Amount, &c.Note, &c.LoggedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to log contribution: %w", err)
	}

	prevStreak := g.CurrentStreak
	totalBefore := int64(0)
	totalKnown := true
	err = s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) - $2 FROM contributions WHERE goal_id = $1`, g.ID, req.Amount).Scan(&totalBefore)
	if err != nil {
		// Without the pre-contribution total the completion check could
		// re-fire on an already finished goal. Skip notifying this round.
		log.Printf("Failed to read prior total for goal %s, skipping notifications: %v", g.ID, err)
		totalKnown = false
	}

	if err := s.recomputeAndPersist(ctx, g); err != nil {
		return nil, err
	}

	if totalKnown {
		s.notifyAfterContribution(ctx, g, prevStreak, totalBefore)
	}

	if s.statsService != nil {
		go s.statsService.CheckAchievements(context.Background(), g.UserID)
	}

	return c, nil
}

// DeleteContribution removes one saving event and recomputes, since the
// cached streak may have depended on it.
func (s *GoalService) DeleteContribution(ctx context.Context, clerkID string, goalID, contributionID uuid.UUID) error {
	g, err := s.GetGoalByID(ctx, clerkID, goalID)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `DELETE FROM contributions WHERE id = $1 AND goal_id = $2`, contributionID, g.ID)
	if err != nil {
		return fmt.Errorf("failed to delete contribution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("contribution not found")
	}

	return s.recomputeAndPersist(ctx, g)
}

func (s *GoalService) GetContributions(ctx context.Context, clerkID string, goalID uuid.UUID) ([]*contribution.Contribution, error) {
	g, err := s.GetGoalByID(ctx, clerkID, goalID)
	if err != nil {
		return nil, err
	}
	return s.loadContributions(ctx, g.ID)
}

// GetProgress assembles the derived view for the goal screen. Everything
// streak-related comes from the pure engine over a fresh snapshot.
func (s *GoalService) GetProgress(ctx context.Context, clerkID string, goalID uuid.UUID) (*goal.ProgressResponse, error) {
	g, err := s.GetGoalByID(ctx, clerkID, goalID)
	if err != nil {
		return nil, err
	}

	contribs, err := s.loadContributions(ctx, g.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	totalSaved := streak.TotalSaved(contribs)

	resp := &goal.ProgressResponse{
		Goal:                   g,
		TotalSaved:             totalSaved,
		HasSavedThisPeriod:     streak.HasSavedThisPeriod(g, contribs, now),
		AtRisk:                 streak.AtRisk(g, contribs, now),
		RemainingContributions: streak.RemainingContributions(g, totalSaved),
		DaysToDeadline:         g.DaysToDeadline(now),
	}

	if n, ok := streak.PeriodsSinceLastContribution(g, now); ok {
		resp.PeriodsSinceLastSave = &n
	}

	return resp, nil
}

func (s *GoalService) loadContributions(ctx context.Context, goalID uuid.UUID) ([]*contribution.Contribution, error) {
	query := `
	SELECT id, goal_id, amount, note, logged_at, created_at
	FROM contributions
	WHERE goal_id = $1
	ORDER BY logged_at DESC
	`

	rows, err := s.db.Query(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contributions: %w", err)
	}
	defer rows.Close()

	var contribs []*contribution.Contribution
	for rows.Next() {
		c := &contribution.Contribution{}
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Amount, &c.Note, &c.LoggedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		contribs = append(contribs, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	if contribs == nil {
		contribs = []*contribution.Contribution{}
	}
	return contribs, nil
}

// recomputeAndPersist runs the engine over the complete contribution set and
// writes the snapshot back onto the goal row. The goal passed in is updated
// in place so callers see the fresh values.
func (s *GoalService) recomputeAndPersist(ctx context.Context, g *goal.Goal) error {
	contribs, err := s.loadContributions(ctx, g.ID)
	if err != nil {
		return err
	}

	res := streak.Recompute(g, contribs, time.Now())

	query := `
	UPDATE goals
	SET current_streak = $2, longest_streak = $3, last_contribution_date = $4, updated_at = NOW()
	WHERE id = $1
	`
	_, err = s.db.Exec(ctx, query, g.ID, res.CurrentStreak, res.LongestStreak, res.LastContributionDate)
	if err != nil {
		return fmt.Errorf("failed to persist streak snapshot: %w", err)
	}

	g.CurrentStreak = res.CurrentStreak
	g.LongestStreak = res.LongestStreak
	g.LastContributionDate = res.LastContributionDate
	return nil
}

// crossedGoalTarget reports whether this contribution took the total over the
// target. A goal that was already finished must not announce completion again.
func crossedGoalTarget(target, totalBefore, totalAfter int64) bool {
	return totalBefore < target && totalAfter >= target
}

// notifyAfterContribution fires goal-completed and streak-milestone
// notifications. Failures only get logged; the contribution is already in.
func (s *GoalService) notifyAfterContribution(ctx context.Context, g *goal.Goal, prevStreak int, totalBefore int64) {
	if s.notificationService == nil {
		return
	}

	var totalSaved int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM contributions WHERE goal_id = $1`, g.ID).Scan(&totalSaved)
	if err != nil {
		log.Printf("Failed to read total for goal %s, skipping completion check: %v", g.ID, err)
		return
	}

	if crossedGoalTarget(g.TargetAmount, totalBefore, totalSaved) {
		goalID := g.ID
		_, err := s.notificationService.CreateNotification(ctx, &notification.CreateNotificationRequest{
			UserID:   g.UserID,
			Type:     notification.TypeGoalCompleted,
			Priority: notification.PriorityHigh,
			GoalID:   &goalID,
			Data:     map[string]any{"goal_name": g.Name},
		})
		if err != nil {
			log.Printf("Failed to create goal-completed notification for goal %s: %v", g.ID, err)
		}
	}

	for _, milestone := range streakMilestones {
		if prevStreak < milestone && g.CurrentStreak >= milestone {
			goalID := g.ID
			_, err := s.notificationService.CreateNotification(ctx, &notification.CreateNotificationRequest{
				UserID:   g.UserID,
				Type:     notification.TypeStreakMilestone,
				Priority: notification.PriorityNormal,
				GoalID:   &goalID,
				Data:     map[string]any{"goal_name": g.Name, "days": milestone},
			})
			if err != nil {
				log.Printf("Failed to create streak-milestone notification for goal %s: %v", g.ID, err)
			}
			break
		}
	}
}
