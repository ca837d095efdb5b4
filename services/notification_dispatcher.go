package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stashHabitAPI/internal/streak"
	"stashHabitAPI/internal/types/contribution"
	"stashHabitAPI/internal/types/goal"
	"stashHabitAPI/internal/types/notification"
)

// PushNotificationProvider abstracts the push transport so the dispatcher can
// run with FCM in production and a mock in tests.
type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher delivers notifications through a small worker pool
// and runs the background jobs that feed it: due scheduled notifications,
// the streak-risk sweep, and cleanup of expired rows.
type NotificationDispatcher struct {
	service      *NotificationService
	pushProvider PushNotificationProvider

	queue    chan *dispatchJob
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type dispatchJob struct {
	notification *notification.Notification
	preferences  *notification.NotificationPreferences
}

const (
	dispatchWorkers  = 5
	dispatchQueueCap = 100
)

func NewNotificationDispatcher(service *NotificationService) *NotificationDispatcher {
	d := &NotificationDispatcher{
		service:  service,
		queue:    make(chan *dispatchJob, dispatchQueueCap),
		stopChan: make(chan struct{}),
	}

	for i := 0; i < dispatchWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.wg.Add(1)
	go d.scheduledNotificationsLoop()

	d.wg.Add(1)
	go d.streakRiskLoop()

	d.wg.Add(1)
	go d.cleanupLoop()

	return d
}

func (d *NotificationDispatcher) SetPushProvider(provider PushNotificationProvider) {
	d.pushProvider = provider
}

func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}

// DispatchNotification queues a notification for delivery. Drops with a log
// line when the queue is saturated rather than blocking the caller.
func (d *NotificationDispatcher) DispatchNotification(ctx context.Context, notif *notification.Notification, prefs *notification.NotificationPreferences) {
	job := &dispatchJob{notification: notif, preferences: prefs}

	select {
	case d.queue <- job:
	default:
		log.Printf("Dispatcher: queue full, dropping notification %s", notif.ID)
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.queue:
			d.deliver(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) deliver(job *dispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	notif := job.notification
	prefs := job.preferences

	if notif.ExpiresAt != nil && time.Now().After(*notif.ExpiresAt) {
		d.markAsFailed(ctx, notif, "expired before delivery")
		return
	}

	if prefs == nil {
		var err error
		prefs, err = d.service.GetUserPreferencesByUUID(ctx, notif.UserID)
		if err != nil {
			d.markAsFailed(ctx, notif, "no preferences")
			return
		}
	}

	if !prefs.PushEnabled || d.pushProvider == nil || len(prefs.DeviceTokens) == 0 {
		// In-app only. The row stays readable from the notification feed.
		d.markAsSent(ctx, notif)
		return
	}

	err := d.pushProvider.SendPush(ctx, prefs.DeviceTokens, notif.Title, notif.Body, notif.Data)
	if err != nil {
		log.Printf("Dispatcher: push failed for notification %s: %v", notif.ID, err)
		d.markAsFailed(ctx, notif, err.Error())
		return
	}

	d.markAsSent(ctx, notif)
}

func (d *NotificationDispatcher) markAsSent(ctx context.Context, notif *notification.Notification) {
	query := `UPDATE notifications SET status = $1, sent_at = NOW() WHERE id = $2`
	if _, err := d.service.db.Exec(ctx, query, notification.StatusSent, notif.ID); err != nil {
		log.Printf("Dispatcher: failed to mark notification %s as sent: %v", notif.ID, err)
	}
}

func (d *NotificationDispatcher) markAsFailed(ctx context.Context, notif *notification.Notification, reason string) {
	// High priority notifications get retried a few times before giving up.
	if (notif.Priority == notification.PriorityHigh || notif.Priority == notification.PriorityUrgent) && notif.RetryCount < 3 {
		query := `UPDATE notifications SET retry_count = retry_count + 1, failure_reason = $1 WHERE id = $2`
		if _, err := d.service.db.Exec(ctx, query, reason, notif.ID); err != nil {
			log.Printf("Dispatcher: failed to bump retry count for %s: %v", notif.ID, err)
			return
		}
		notif.RetryCount++
		d.scheduleRetry(notif)
		return
	}

	query := `UPDATE notifications SET status = $1, failed_at = NOW(), failure_reason = $2 WHERE id = $3`
	if _, err := d.service.db.Exec(ctx, query, notification.StatusFailed, reason, notif.ID); err != nil {
		log.Printf("Dispatcher: failed to mark notification %s as failed: %v", notif.ID, err)
	}
}

// scheduleRetry re-enqueues after a backoff proportional to the retry count.
// The wait is tracked by the wait group and aborted on Stop, so no retry can
// fire after shutdown.
func (d *NotificationDispatcher) scheduleRetry(n *notification.Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		select {
		case <-time.After(time.Duration(n.RetryCount) * 30 * time.Second):
			d.DispatchNotification(context.Background(), n, nil)
		case <-d.stopChan:
		}
	}()
}

func (d *NotificationDispatcher) scheduledNotificationsLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.processDueNotifications()
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processDueNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	query := `
		SELECT id, user_id, type, priority, status, title, body,
			   goal_id, scheduled_for, retry_count, action_url, created_at, expires_at
		FROM notifications
		WHERE status = $1 AND scheduled_for IS NOT NULL AND scheduled_for <= NOW()
		ORDER BY priority DESC, scheduled_for ASC
		LIMIT 100
	`

	rows, err := d.service.db.Query(ctx, query, notification.StatusPending)
	if err != nil {
		log.Printf("Dispatcher: failed to fetch due notifications: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		notif := &notification.Notification{}
		err := rows.Scan(
			&notif.ID, &notif.UserID, &notif.Type, &notif.Priority, &notif.Status,
			&notif.Title, &notif.Body, &notif.GoalID, &notif.ScheduledFor,
			&notif.RetryCount, &notif.ActionURL, &notif.CreatedAt, &notif.ExpiresAt,
		)
		if err != nil {
			log.Printf("Dispatcher: failed to scan due notification: %v", err)
			continue
		}
		d.DispatchNotification(ctx, notif, nil)
	}
}

// streakRiskLoop periodically looks for goals whose streak would break if the
// user saves nothing for the rest of the current period, and schedules one
// reminder per goal per period at the user's preferred hour.
func (d *NotificationDispatcher) streakRiskLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweepStreakRisk()
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) sweepStreakRisk() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	now := time.Now().UTC()

	query := `
		SELECT g.id, g.user_id, g.name, g.target_amount, g.period_target, g.cadence,
			   g.current_streak, g.longest_streak, g.last_contribution_date
		FROM goals g
		WHERE g.is_archived = false AND g.current_streak > 0
	`

	rows, err := d.service.db.Query(ctx, query)
	if err != nil {
		log.Printf("Streak sweep: failed to fetch goals: %v", err)
		return
	}

	var goals []*goal.Goal
	for rows.Next() {
		g := &goal.Goal{}
		err := rows.Scan(
			&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.PeriodTarget, &g.Cadence,
			&g.CurrentStreak, &g.LongestStreak, &g.LastContributionDate,
		)
		if err != nil {
			log.Printf("Streak sweep: failed to scan goal: %v", err)
			continue
		}
		goals = append(goals, g)
	}
	rows.Close()

	for _, g := range goals {
		contribs, err := d.loadRecentContributions(ctx, g.ID, now)
		if err != nil {
			log.Printf("Streak sweep: failed to load contributions for goal %s: %v", g.ID, err)
			continue
		}

		if !streak.AtRisk(g, contribs, now) {
			continue
		}

		already, err := d.riskAlreadyNotified(ctx, g, now)
		if err != nil || already {
			continue
		}

		d.scheduleStreakRiskNotification(ctx, g, now)
	}
}

func (d *NotificationDispatcher) loadRecentContributions(ctx context.Context, goalID uuid.UUID, now time.Time) ([]*contribution.Contribution, error) {
	query := `
		SELECT id, goal_id, amount, note, logged_at, created_at
		FROM contributions
		WHERE goal_id = $1 AND logged_at >= $2
		ORDER BY logged_at ASC
	`

	rows, err := d.service.db.Query(ctx, query, goalID, now.Add(-streak.MaxLookback))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contribs []*contribution.Contribution
	for rows.Next() {
		c := &contribution.Contribution{}
		if err := rows.Scan(&c.ID, &c.GoalID, &c.Amount, &c.Note, &c.LoggedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		contribs = append(contribs, c)
	}
	return contribs, rows.Err()
}

// riskAlreadyNotified reports whether a streak_risk notification for this goal
// already exists inside the goal's current period.
func (d *NotificationDispatcher) riskAlreadyNotified(ctx context.Context, g *goal.Goal, now time.Time) (bool, error) {
	periodStart := streak.PeriodKey(now, g.Cadence)

	var count int
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE goal_id = $1 AND type = $2 AND created_at >= $3
	`
	err := d.service.db.QueryRow(ctx, query, g.ID, notification.TypeStreakRisk, periodStart).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (d *NotificationDispatcher) scheduleStreakRiskNotification(ctx context.Context, g *goal.Goal, now time.Time) {
	prefs, err := d.service.GetUserPreferencesByUUID(ctx, g.UserID)
	if err != nil {
		prefs, err = d.service.createDefaultPreferences(ctx, g.UserID)
		if err != nil {
			log.Printf("Streak sweep: no preferences for user %s: %v", g.UserID, err)
			return
		}
	}

	// Deliver at the user's reminder hour (stored in UTC). If that hour
	// already passed today the reminder goes out immediately.
	var scheduledFor *time.Time
	reminderAt := time.Date(now.Year(), now.Month(), now.Day(), prefs.ReminderHour, 0, 0, 0, time.UTC)
	if reminderAt.After(now) {
		scheduledFor = &reminderAt
	}

	goalID := g.ID
	_, err = d.service.CreateNotification(ctx, &notification.CreateNotificationRequest{
		UserID:   g.UserID,
		Type:     notification.TypeStreakRisk,
		Priority: notification.PriorityHigh,
		GoalID:   &goalID,
		Data: map[string]any{
			"goal_name":      g.Name,
			"current_streak": g.CurrentStreak,
			"cadence":        string(g.Cadence),
		},
		ScheduledFor: scheduledFor,
	})
	if err != nil {
		log.Printf("Streak sweep: failed to create notification for goal %s: %v", g.ID, err)
	}
}

func (d *NotificationDispatcher) cleanupLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.performCleanup()
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) performCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expireQuery := `
		UPDATE notifications
		SET status = $1, failure_reason = 'expired'
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < NOW()
	`
	if _, err := d.service.db.Exec(ctx, expireQuery, notification.StatusFailed, notification.StatusPending); err != nil {
		log.Printf("Cleanup: failed to expire notifications: %v", err)
	}

	deleteQuery := `DELETE FROM notifications WHERE created_at < NOW() - INTERVAL '90 days'`
	result, err := d.service.db.Exec(ctx, deleteQuery)
	if err != nil {
		log.Printf("Cleanup: failed to delete old notifications: %v", err)
		return
	}
	if n := result.RowsAffected(); n > 0 {
		log.Printf("Cleanup: deleted %d old notifications", n)
	}
}

// MockPushProvider records pushes instead of sending them. Used in tests.
type MockPushProvider struct {
	mu    sync.Mutex
	Sent  []MockPush
	Fail  bool
	Error error
}

type MockPush struct {
	Tokens []notification.DeviceToken
	Title  string
	Body   string
	Data   map[string]any
}

func NewMockPushProvider() *MockPushProvider {
	return &MockPushProvider{}
}

func (m *MockPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Fail {
		if m.Error != nil {
			return m.Error
		}
		return fmt.Errorf("mock push failure")
	}

	m.Sent = append(m.Sent, MockPush{Tokens: tokens, Title: title, Body: body, Data: data})
	return nil
}

func (m *MockPushProvider) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
