package actors

import (
	"testing"
	"time"

	"rekindle/internal/database"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnReminders(t *testing.T, now time.Time) (*actor.ActorSystem, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	db := database.NewMemoryDB()
	pid := system.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		a := NewReminderActor(db, 0).(*ReminderActor)
		a.now = func() time.Time { return now }
		return a
	}))
	t.Cleanup(func() { system.Root.Stop(pid) })
	return system, pid
}

func TestReminderActor_OneShot(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	system, pid := spawnReminders(t, now)
	user := uuid.New()

	past, ok := request(t, system, pid, &CreateReminderMsg{
		UserID: user, Reason: "Take medication", Time: now.Add(-time.Hour),
	}).(*models.Reminder)
	require.True(t, ok)
	_, ok = request(t, system, pid, &CreateReminderMsg{
		UserID: user, Reason: "Call family", Time: now.Add(time.Hour),
	}).(*models.Reminder)
	require.True(t, ok)

	all, ok := request(t, system, pid, &ListRemindersMsg{UserID: user}).([]*models.Reminder)
	require.True(t, ok)
	require.Len(t, all, 2)
	assert.Equal(t, past.ID, all[0].ID)

	due, ok := request(t, system, pid, &ListRemindersMsg{UserID: user, DueOnly: true}).([]*models.Reminder)
	require.True(t, ok)
	require.Len(t, due, 1)
	assert.Equal(t, "Take medication", due[0].Reason)

	// another user cannot acknowledge it
	foreign := request(t, system, pid, &MarkReminderDeliveredMsg{ReminderID: past.ID, UserID: uuid.New()})
	assertAppError(t, foreign, utils.ErrNotFound)

	done, ok := request(t, system, pid, &MarkReminderDeliveredMsg{ReminderID: past.ID, UserID: user}).(*models.Reminder)
	require.True(t, ok)
	assert.True(t, done.Delivered)

	due, ok = request(t, system, pid, &ListRemindersMsg{UserID: user, DueOnly: true}).([]*models.Reminder)
	require.True(t, ok)
	assert.Empty(t, due)
}

func TestReminderActor_Recurring(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	system, pid := spawnReminders(t, now)
	user := uuid.New()

	r, ok := request(t, system, pid, &CreateReminderMsg{
		UserID: user, Reason: "Drink water", Schedule: "0 * * * *",
	}).(*models.Reminder)
	require.True(t, ok)
	assert.True(t, r.IsRecurring())
	assert.Equal(t, time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC), r.Time)

	next, ok := request(t, system, pid, &MarkReminderDeliveredMsg{ReminderID: r.ID, UserID: user}).(*models.Reminder)
	require.True(t, ok)
	assert.False(t, next.Delivered)
	assert.Equal(t, time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), next.Time)
}

func TestReminderActor_Validation(t *testing.T) {
	system, pid := spawnReminders(t, time.Now())
	user := uuid.New()

	tests := []struct {
		name string
		msg  *CreateReminderMsg
	}{
		{"no reason", &CreateReminderMsg{UserID: user, Time: time.Now()}},
		{"no time", &CreateReminderMsg{UserID: user, Reason: "x"}},
		{"bad cron", &CreateReminderMsg{UserID: user, Reason: "x", Schedule: "every day"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAppError(t, request(t, system, pid, tt.msg), utils.ErrInvalidInput)
		})
	}
}
