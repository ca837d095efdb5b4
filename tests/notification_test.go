package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashHabitAPI/internal/types/notification"
	"stashHabitAPI/internal/types/user"
	"stashHabitAPI/services"
	"stashHabitAPI/tests/helpers"
)

func TestNotificationFlow(t *testing.T) {
	db := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, db)

	svc := services.NewNotificationService(db)
	defer svc.Stop()

	mock := services.NewMockPushProvider()
	svc.SetPushProvider(mock)

	userService := services.NewUserService(db)
	ctx := context.Background()

	clerkID := "user_notif_test_" + time.Now().Format("20060102150405")
	u, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:  clerkID,
		Email:    "test.notif@example.com",
		Username: "notiftester",
	})
	require.NoError(t, err)
	defer userService.DeleteUserByClerkID(ctx, clerkID)

	req := &notification.CreateNotificationRequest{
		UserID:   u.ID,
		Type:     notification.TypeStreakMilestone,
		Priority: notification.PriorityHigh,
		Data:     map[string]any{"goal_name": "Vacation fund", "days": 100},
	}

	notif, err := svc.CreateNotification(ctx, req)
	require.NoError(t, err, "template for streak_milestone must be seeded")
	require.NotNil(t, notif)
	t.Logf("Created notification %s", notif.ID)

	// Wait for a worker to pick the job up and mark the row sent.
	time.Sleep(1 * time.Second)

	var status notification.NotificationStatus
	err = db.QueryRow(ctx, "SELECT status FROM notifications WHERE id = $1", notif.ID).Scan(&status)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusSent, status)

	err = svc.MarkAsRead(ctx, notif.ID, clerkID)
	require.NoError(t, err)

	count, err := svc.GetUnreadCount(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestNotificationPreferences(t *testing.T) {
	db := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, db)

	svc := services.NewNotificationService(db)
	defer svc.Stop()

	userService := services.NewUserService(db)
	ctx := context.Background()

	clerkID := "user_prefs_test_" + time.Now().Format("20060102150405")
	_, err := userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:  clerkID,
		Email:    "test.prefs@example.com",
		Username: "prefstester",
	})
	require.NoError(t, err)
	defer userService.DeleteUserByClerkID(ctx, clerkID)

	reminderHour := 20
	pushEnabled := false
	prefs, err := svc.UpdateUserPreferences(ctx, clerkID, &notification.UpdatePreferencesRequest{
		PushEnabled:  &pushEnabled,
		ReminderHour: &reminderHour,
	})
	require.NoError(t, err)
	assert.Equal(t, 20, prefs.ReminderHour)
	assert.False(t, prefs.PushEnabled)

	badHour := 25
	_, err = svc.UpdateUserPreferences(ctx, clerkID, &notification.UpdatePreferencesRequest{
		ReminderHour: &badHour,
	})
	assert.Error(t, err)

	err = svc.RegisterDevice(ctx, clerkID, notification.RegisterDeviceRequest{
		Token:    "device-token-1",
		Platform: "android",
	})
	require.NoError(t, err)

	prefs, err = svc.GetUserPreferences(ctx, clerkID)
	require.NoError(t, err)
	require.Len(t, prefs.DeviceTokens, 1)
	assert.Equal(t, "device-token-1", prefs.DeviceTokens[0].Token)

	// Re-registering the same token must not duplicate it.
	err = svc.RegisterDevice(ctx, clerkID, notification.RegisterDeviceRequest{
		Token:    "device-token-1",
		Platform: "android",
	})
	require.NoError(t, err)

	prefs, err = svc.GetUserPreferences(ctx, clerkID)
	require.NoError(t, err)
	assert.Len(t, prefs.DeviceTokens, 1)
}
