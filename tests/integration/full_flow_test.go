package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashHabitAPI/handlers"
	goalType "stashHabitAPI/internal/types/goal"
	userType "stashHabitAPI/internal/types/user"
	"stashHabitAPI/middleware"
	"stashHabitAPI/services"
	"stashHabitAPI/tests/helpers"
)

// TestFullSavingsFlow walks the main product loop: sign up via webhook,
// create a goal, log contributions, watch the streak and progress react.
func TestFullSavingsFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	notificationService := services.NewNotificationService(pool)
	defer notificationService.Stop()

	userService := services.NewUserService(pool)
	statsService := services.NewStatsService(pool, notificationService)
	goalService := services.NewGoalService(pool, notificationService, statsService)

	userHandler := handlers.NewUserHandler(userService)
	goalHandler := handlers.NewGoalHandler(goalService)
	statsHandler := handlers.NewStatsHandler(statsService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	clerkID := "user_test_" + time.Now().Format("20060102150405")

	t.Log("Step 1: User signs up via Clerk webhook")

	createPayload := helpers.MockClerkWebhookPayload("user.created", clerkID)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(createPayload))
	rr := httptest.NewRecorder()

	webhookHandler.HandleClerkWebhook(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "Webhook should succeed")

	ctx := context.Background()
	u, err := userService.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, "test.user@example.com", u.Email)
	assert.True(t, u.EmailVerified)

	t.Log("Step 2: User fetches profile")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
	rr = httptest.NewRecorder()

	userHandler.GetProfile(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	var profile userType.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &profile))
	assert.Equal(t, u.Email, profile.Email)

	t.Log("Step 3: User creates a daily savings goal")

	deadline := time.Now().AddDate(0, 6, 0).Format("2006-01-02")
	goalBody := `{"name": "Vacation fund", "target_amount": 100000, "period_target": 500, "cadence": "daily", "deadline": "` + deadline + `"}`

	req = httptest.NewRequest(http.MethodPost, "/api/v1/goals", strings.NewReader(goalBody))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
	rr = httptest.NewRecorder()

	goalHandler.CreateGoal(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var g goalType.Goal
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &g))
	assert.Equal(t, "Vacation fund", g.Name)
	assert.Equal(t, 0, g.CurrentStreak)

	t.Log("Step 4: User logs a contribution meeting the period target")

	contribBody := `{"amount": 600, "note": "coffee money"}`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/goals/"+g.ID.String()+"/contributions", strings.NewReader(contribBody))
	req.Header.Set("Content-Type", "application/json")
	req = mux.SetURLVars(req, map[string]string{"goalID": g.ID.String()})
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
	rr = httptest.NewRecorder()

	goalHandler.LogContribution(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	t.Log("Step 5: Progress shows a one-day streak and no risk")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/goals/"+g.ID.String()+"/progress", nil)
	req = mux.SetURLVars(req, map[string]string{"goalID": g.ID.String()})
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
	rr = httptest.NewRecorder()

	goalHandler.GetProgress(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var progress goalType.ProgressResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &progress))
	assert.Equal(t, int64(600), progress.TotalSaved)
	assert.Equal(t, 1, progress.Goal.CurrentStreak)
	assert.True(t, progress.HasSavedThisPeriod)
	assert.False(t, progress.AtRisk)

	t.Log("Step 6: Stats reflect the activity")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/user/stats", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
	rr = httptest.NewRecorder()

	statsHandler.GetUserStats(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, true, stats["saved_today"])
	assert.Equal(t, float64(600), stats["total_saved"])

	t.Log("Step 7: Archiving hides the goal from active listings")

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/goals/"+g.ID.String(), nil)
	req = mux.SetURLVars(req, map[string]string{"goalID": g.ID.String()})
	req = req.WithContext(context.WithValue(req.Context(), middleware.ClerkIDKey, clerkID))
	rr = httptest.NewRecorder()

	goalHandler.DeleteGoal(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	goals, err := goalService.GetGoals(ctx, clerkID, false)
	require.NoError(t, err)
	assert.Empty(t, goals)

	goals, err = goalService.GetGoals(ctx, clerkID, true)
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}
