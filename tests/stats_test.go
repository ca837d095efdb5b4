package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashHabitAPI/internal/types/contribution"
	"stashHabitAPI/internal/types/goal"
	"stashHabitAPI/internal/types/user"
	"stashHabitAPI/services"
	"stashHabitAPI/tests/helpers"
)

// TestUserStatsWithUnlockedAchievements pins the stats totals for a user who
// already holds several achievements. Each unlocked achievement must not
// multiply total_saved or total_contributions.
func TestUserStatsWithUnlockedAchievements(t *testing.T) {
	db := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, db)

	userService := services.NewUserService(db)
	statsService := services.NewStatsService(db, nil)
	goalService := services.NewGoalService(db, nil, nil)

	ctx := context.Background()

	clerkID := "user_stats_test_" + time.Now().Format("20060102150405")
	u, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:  clerkID,
		Email:    "test.stats@example.com",
		Username: "statstester",
	})
	require.NoError(t, err)
	defer userService.DeleteUserByClerkID(ctx, clerkID)

	g, err := goalService.CreateGoal(ctx, clerkID, &goal.CreateGoalRequest{
		Name:         "Stats goal",
		TargetAmount: 100000,
		PeriodTarget: 500,
		Cadence:      goal.CadenceDaily,
		Deadline:     time.Now().AddDate(1, 0, 0).Format("2006-01-02"),
	})
	require.NoError(t, err)

	_, err = goalService.LogContribution(ctx, clerkID, g.ID, &contribution.LogContributionRequest{Amount: 600})
	require.NoError(t, err)
	_, err = goalService.LogContribution(ctx, clerkID, g.ID, &contribution.LogContributionRequest{Amount: 400})
	require.NoError(t, err)

	// Hand the user three unlocked achievements. Unreachable criteria keep
	// the async achievement check from adding more rows for this goal.
	achievementIDs := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		id := uuid.New()
		achievementIDs = append(achievementIDs, id)
		_, err = db.Exec(ctx, `
			INSERT INTO achievements (id, name, description, icon, criteria_type, criteria_value)
			VALUES ($1, $2, 'stats test seed', 'trophy', 'streak', 999999)
		`, id, "stats-test-achievement-"+id.String())
		require.NoError(t, err)

		_, err = db.Exec(ctx, `
			INSERT INTO user_achievements (id, user_id, achievement_id, unlocked_at)
			VALUES ($1, $2, $3, NOW())
		`, uuid.New(), u.ID, id)
		require.NoError(t, err)
	}
	defer func() {
		for _, id := range achievementIDs {
			db.Exec(ctx, "DELETE FROM achievements WHERE id = $1", id)
		}
	}()

	stats, err := statsService.GetUserStats(ctx, clerkID)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), stats.TotalSaved, "total must not scale with achievement count")
	assert.Equal(t, 2, stats.TotalContributions, "count must not scale with achievement count")
	assert.GreaterOrEqual(t, stats.AchievementsCount, 3)
	assert.True(t, stats.SavedToday)
	assert.Equal(t, 1, stats.ActiveGoals)
}
