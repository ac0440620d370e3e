package actors

import (
	stdctx "context"
	"strings"
	"time"

	"rekindle/internal/database"
	"rekindle/internal/logger"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/adhocore/gronx"
	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// ReminderActor manages one-shot and cron-scheduled reminders.
type ReminderActor struct {
	db        database.DBAdapter
	opTimeout time.Duration
	now       func() time.Time
}

func NewReminderActor(db database.DBAdapter, opTimeout time.Duration) actor.Actor {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &ReminderActor{db: db, opTimeout: opTimeout, now: time.Now}
}

func (a *ReminderActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *CreateReminderMsg:
		a.handleCreate(context, msg)
	case *ListRemindersMsg:
		a.handleList(context, msg)
	case *MarkReminderDeliveredMsg:
		a.handleDelivered(context, msg)
	}
}

func (a *ReminderActor) handleCreate(context actor.Context, msg *CreateReminderMsg) {
	reason := strings.TrimSpace(msg.Reason)
	if reason == "" {
		context.Respond(utils.NewInvalidInputError("Reminder reason is required"))
		return
	}

	schedule := strings.TrimSpace(msg.Schedule)
	at := msg.Time.UTC()
	if schedule != "" {
		if !gronx.IsValid(schedule) {
			context.Respond(utils.NewInvalidInputError("Invalid cron schedule"))
			return
		}
		if at.IsZero() {
			next, err := gronx.NextTickAfter(schedule, a.now().UTC(), false)
			if err != nil {
				context.Respond(utils.NewInvalidInputError("Invalid cron schedule"))
				return
			}
			at = next.UTC()
		}
	} else if at.IsZero() {
		context.Respond(utils.NewInvalidInputError("Reminder time is required"))
		return
	}

	reminder := &models.Reminder{
		ID:        uuid.New(),
		UserID:    msg.UserID,
		Reason:    reason,
		Time:      at,
		Schedule:  schedule,
		CreatedAt: a.now().UTC(),
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
	defer cancel()
	if err := a.db.SaveReminder(ctx, reminder); err != nil {
		logger.Error("Failed to save reminder", "error", err)
		context.Respond(err)
		return
	}
	context.Respond(reminder)
}

func (a *ReminderActor) handleList(context actor.Context, msg *ListRemindersMsg) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
	defer cancel()

	reminders, err := a.db.GetRemindersByUser(ctx, msg.UserID)
	if err != nil {
		context.Respond(err)
		return
	}
	if !msg.DueOnly {
		context.Respond(reminders)
		return
	}

	now := a.now()
	due := make([]*models.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.IsDue(now) {
			due = append(due, r)
		}
	}
	context.Respond(due)
}

// handleDelivered acknowledges a reminder. Recurring reminders roll forward
// to their next tick and stay pending.
func (a *ReminderActor) handleDelivered(context actor.Context, msg *MarkReminderDeliveredMsg) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
	defer cancel()

	reminder, err := a.db.GetReminder(ctx, msg.ReminderID)
	if err != nil {
		context.Respond(err)
		return
	}
	if reminder.UserID != msg.UserID {
		// don't reveal other users' reminders
		context.Respond(utils.NewNotFoundError("reminder not found"))
		return
	}

	if reminder.IsRecurring() {
		ref := a.now().UTC()
		if reminder.Time.After(ref) {
			ref = reminder.Time
		}
		next, err := gronx.NextTickAfter(reminder.Schedule, ref, false)
		if err != nil {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "Stored schedule is invalid", err))
			return
		}
		reminder.Time = next.UTC()
	} else {
		reminder.Delivered = true
	}

	if err := a.db.UpdateReminder(ctx, reminder); err != nil {
		context.Respond(err)
		return
	}
	context.Respond(reminder)
}
