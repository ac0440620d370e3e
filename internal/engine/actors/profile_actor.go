package actors

import (
	stdctx "context"
	"strings"
	"time"

	"rekindle/internal/database"
	"rekindle/internal/logger"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// ProfileActor stores the patient/guardian profile and its photos.
type ProfileActor struct {
	db        database.DBAdapter
	opTimeout time.Duration
}

func NewProfileActor(db database.DBAdapter, opTimeout time.Duration) actor.Actor {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &ProfileActor{db: db, opTimeout: opTimeout}
}

func (a *ProfileActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *SaveDetailsMsg:
		d := msg.Details
		if d == nil || d.UserID == uuid.Nil {
			context.Respond(utils.NewInvalidInputError("Details are required"))
			return
		}
		d.PatientName = strings.TrimSpace(d.PatientName)
		for i := range d.Guardians {
			d.Guardians[i].Name = strings.TrimSpace(d.Guardians[i].Name)
			if d.Guardians[i].Name == "" {
				context.Respond(utils.NewInvalidInputError("Guardian name is required"))
				return
			}
		}
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = time.Now().UTC()
		}

		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
		defer cancel()
		if err := a.db.SaveDetails(ctx, d); err != nil {
			logger.Error("Failed to save details", "userId", d.UserID, "error", err)
			context.Respond(err)
			return
		}
		logger.Info("Details saved", "userId", d.UserID, "guardians", len(d.Guardians))
		context.Respond(d)

	case *GetDetailsMsg:
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
		defer cancel()
		d, err := a.db.GetDetails(ctx, msg.UserID)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(d)
	}
}
