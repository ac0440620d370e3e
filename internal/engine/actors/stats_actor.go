package actors

import (
	stdctx "context"
	"time"

	"rekindle/internal/database"
	"rekindle/internal/logger"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// StatsActor answers read-only aggregate queries. Nothing is cached; every
// request is recomputed from the store.
type StatsActor struct {
	db        database.DBAdapter
	metrics   *utils.MetricsCollector
	opTimeout time.Duration
}

func NewStatsActor(db database.DBAdapter, metrics *utils.MetricsCollector, opTimeout time.Duration) actor.Actor {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &StatsActor{db: db, metrics: metrics, opTimeout: opTimeout}
}

func (a *StatsActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		logger.Debug("StatsActor started")

	case *GetStatsMsg:
		startTime := time.Now()
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
		defer cancel()

		sub := msg.Subcommunity
		if !sub.Valid() {
			sub = ""
		}
		stats, err := a.db.GetCommunityStats(ctx, sub)
		if err != nil {
			logger.Error("Failed to compute community stats", "error", err)
			context.Respond(err)
			return
		}
		a.metrics.AddOperationLatency("community_stats", time.Since(startTime))
		context.Respond(stats)

	case *GetSubcommunitiesMsg:
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), a.opTimeout)
		defer cancel()

		counts, err := a.db.GetSubcommunityCounts(ctx)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(withCounts(models.Catalog(), counts))
	}
}

// withCounts joins the catalog with live figures by slug. Entries with no
// messages get zeros.
func withCounts(catalog []models.Subcommunity, counts []models.SubcommunityCounts) []models.SubcommunityWithCounts {
	byID := make(map[models.SubcommunityID]models.SubcommunityCounts, len(counts))
	for _, c := range counts {
		byID[c.ID] = c
	}

	out := make([]models.SubcommunityWithCounts, len(catalog))
	for i, s := range catalog {
		c := byID[s.ID]
		out[i] = models.SubcommunityWithCounts{
			Subcommunity: s,
			MessageCount: c.MessageCount,
			UserCount:    c.UserCount,
		}
	}
	return out
}
