package models

import (
	"time"

	"github.com/google/uuid"
)

// Reminder is a one-shot or recurring prompt for a user. A non-empty Schedule
// is a cron expression; Time is then the next pending occurrence.
type Reminder struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	Reason    string    `json:"reason" db:"reason"`
	Time      time.Time `json:"time" db:"time"`
	Schedule  string    `json:"schedule,omitempty" db:"schedule"`
	Delivered bool      `json:"delivered" db:"delivered"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (r *Reminder) IsRecurring() bool {
	return r.Schedule != ""
}

// IsDue reports whether the reminder is pending and its time has passed.
func (r *Reminder) IsDue(now time.Time) bool {
	return !r.Delivered && !r.Time.After(now)
}
