package engine

import (
	"time"

	"rekindle/internal/database"
	"rekindle/internal/engine/actors"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Options tunes the actors spawned by NewEngine.
type Options struct {
	OperationTimeout time.Duration
	HideFlagged      bool
	Events           actors.EventPublisher
	// PasswordHashCost is passed to bcrypt. Zero means bcrypt.DefaultCost.
	PasswordHashCost int
}

// Engine owns the PIDs of the long-lived actors. Handlers talk to it
// through RequestFuture on the returned PIDs.
type Engine struct {
	system         *actor.ActorSystem
	communityActor *actor.PID
	statsActor     *actor.PID
	userSupervisor *actor.PID
	profileActor   *actor.PID
	reminderActor  *actor.PID
}

func NewEngine(system *actor.ActorSystem, db database.DBAdapter, metrics *utils.MetricsCollector, opts Options) *Engine {
	context := system.Root

	communityProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewCommunityActor(db, metrics, actors.CommunityOptions{
			OperationTimeout: opts.OperationTimeout,
			HideFlagged:      opts.HideFlagged,
			Events:           opts.Events,
		})
	})
	statsProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewStatsActor(db, metrics, opts.OperationTimeout)
	})
	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserSupervisor(db, actors.UserOptions{
			OperationTimeout: opts.OperationTimeout,
			HashCost:         opts.PasswordHashCost,
		})
	})
	profileProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewProfileActor(db, opts.OperationTimeout)
	})
	reminderProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewReminderActor(db, opts.OperationTimeout)
	})

	return &Engine{
		system:         system,
		communityActor: context.Spawn(communityProps),
		statsActor:     context.Spawn(statsProps),
		userSupervisor: context.Spawn(userProps),
		profileActor:   context.Spawn(profileProps),
		reminderActor:  context.Spawn(reminderProps),
	}
}

// GetCommunityActor returns the PID of the community actor
func (e *Engine) GetCommunityActor() *actor.PID {
	return e.communityActor
}

// GetStatsActor returns the PID of the stats actor
func (e *Engine) GetStatsActor() *actor.PID {
	return e.statsActor
}

func (e *Engine) GetUserSupervisor() *actor.PID {
	return e.userSupervisor
}

func (e *Engine) GetProfileActor() *actor.PID {
	return e.profileActor
}

func (e *Engine) GetReminderActor() *actor.PID {
	return e.reminderActor
}

// Stop gracefully stops every actor owned by the engine.
func (e *Engine) Stop() {
	for _, pid := range []*actor.PID{e.communityActor, e.statsActor, e.userSupervisor, e.profileActor, e.reminderActor} {
		_ = e.system.Root.StopFuture(pid).Wait()
	}
}
