package database

import (
	"context"
	"testing"
	"time"

	"rekindle/internal/config"
	"rekindle/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryAndUnknownType(t *testing.T) {
	db, err := Open(context.Background(), &config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDB{}, db)

	_, err = Open(context.Background(), &config.DatabaseConfig{Type: "sqlite"})
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestCatalogCountsFillsAndOrders(t *testing.T) {
	counts := catalogCounts([]models.SubcommunityCounts{
		{ID: "general-support", MessageCount: 4, UserCount: 2},
		{ID: "not-a-slug", MessageCount: 9, UserCount: 9},
	})
	require.Len(t, counts, 11)
	assert.Equal(t, models.SubcommunityID("autism-spectrum"), counts[0].ID)
	assert.Equal(t, models.SubcommunityCounts{ID: "general-support", MessageCount: 4, UserCount: 2}, counts[10])
}

func TestMessageDocumentConversion(t *testing.T) {
	m := &MongoDB{}
	parent := uuid.New()
	title := "Morning routines"
	liker := uuid.New()
	msg := &models.Message{
		ID:           uuid.New(),
		AuthorID:     uuid.New(),
		AuthorEmail:  "a@example.com",
		Role:         models.RoleCaretaker,
		Subcommunity: "adhd",
		Title:        &title,
		Body:         "text",
		ParentID:     &parent,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		LikeCount:    1,
		LikedBy:      []uuid.UUID{liker},
		FlagCount:    1,
		FlaggedBy:    []models.FlagRecord{{UserID: liker, Reason: models.FlagOther}},
	}

	doc := m.MessageToDocument(msg)
	assert.Equal(t, parent.String(), *doc.ParentID)
	assert.Equal(t, []string{liker.String()}, doc.LikedBy)

	back, err := m.DocumentToMessage(doc)
	require.NoError(t, err)
	assert.Equal(t, msg, back)

	top := m.MessageToDocument(&models.Message{ID: uuid.New(), AuthorID: uuid.New()})
	assert.Nil(t, top.ParentID)
	assert.NotNil(t, top.LikedBy, "likedBy is stored as an empty array, not null")
}
