// internal/database/database.go
package database

import (
	"context"
	"fmt"

	"rekindle/internal/config"
	"rekindle/internal/models"

	"github.com/google/uuid"
)

// DBAdapter defines the common interface for database operations.
// MongoDB, PostgreSQL and an in-process store implement it.
type DBAdapter interface {
	// Connection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	// User methods
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Message methods
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	// GetTopLevelMessages returns posts without a parent, newest first.
	GetTopLevelMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error)
	// GetReplies returns direct replies oldest first. limit <= 0 means all.
	GetReplies(ctx context.Context, parentID uuid.UUID, limit int) ([]*models.Message, error)
	CountMessages(ctx context.Context) (int, error)

	// Moderation counters. Each call is a single conditional update.
	ToggleLike(ctx context.Context, messageID, userID uuid.UUID) (*models.LikeResult, error)
	FlagMessage(ctx context.Context, messageID uuid.UUID, flag models.FlagRecord) (*models.FlagResult, error)

	// Statistics
	GetCommunityStats(ctx context.Context, subcommunity models.SubcommunityID) (*models.CommunityStats, error)
	GetSubcommunityCounts(ctx context.Context) ([]models.SubcommunityCounts, error)

	// Profile methods
	SaveDetails(ctx context.Context, details *models.Details) error
	GetDetails(ctx context.Context, userID uuid.UUID) (*models.Details, error)

	// Reminder methods
	SaveReminder(ctx context.Context, reminder *models.Reminder) error
	GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	GetRemindersByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reminder, error)
	UpdateReminder(ctx context.Context, reminder *models.Reminder) error
}

// Open connects to the backend named by cfg.Type and prepares its schema.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (DBAdapter, error) {
	switch cfg.Type {
	case "mongo":
		db, err := NewMongoDB(ctx, cfg.URI, cfg.Name)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureIndexes(ctx); err != nil {
			db.Close(ctx)
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := NewPostgresDB(cfg.URI)
		if err != nil {
			return nil, err
		}
		if err := db.InitializeTables(ctx); err != nil {
			db.Close(ctx)
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemoryDB(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// completeRoleStats lists every role in display order, filling gaps with zero.
func completeRoleStats(counts map[models.Role]int) []models.RoleCount {
	out := make([]models.RoleCount, 0, len(models.Roles))
	for _, role := range models.Roles {
		out = append(out, models.RoleCount{Role: role, Count: counts[role]})
	}
	return out
}

// catalogCounts orders per-subcommunity counts by catalog and adds zero
// entries for subcommunities with no messages. Stored slugs outside the
// catalog are dropped.
func catalogCounts(found []models.SubcommunityCounts) []models.SubcommunityCounts {
	byID := make(map[models.SubcommunityID]models.SubcommunityCounts, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	catalog := models.Catalog()
	out := make([]models.SubcommunityCounts, 0, len(catalog))
	for _, sub := range catalog {
		c := byID[sub.ID]
		c.ID = sub.ID
		out = append(out, c)
	}
	return out
}
