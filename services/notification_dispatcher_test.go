package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"stashHabitAPI/internal/types/notification"
)

func TestDispatcherStopCancelsPendingRetry(t *testing.T) {
	d := NewNotificationDispatcher(&NotificationService{})

	n := &notification.Notification{
		ID:         uuid.New(),
		Priority:   notification.PriorityHigh,
		RetryCount: 1,
	}
	d.scheduleRetry(n)

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a retry backoff was pending")
	}
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	d := NewNotificationDispatcher(&NotificationService{})

	d.Stop()
	d.Stop()
}
