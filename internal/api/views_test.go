package api

import (
	"encoding/json"
	"testing"
	"time"

	"rekindle/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyViewHidesIdentities(t *testing.T) {
	liker := uuid.New()
	m := &models.Message{
		ID:           uuid.New(),
		AuthorID:     uuid.New(),
		AuthorEmail:  "jane.doe@example.com",
		Role:         models.RolePatient,
		Subcommunity: "adhd",
		Body:         "hello",
		CreatedAt:    time.Now(),
		LikeCount:    1,
		LikedBy:      []uuid.UUID{liker},
		FlaggedBy:    []models.FlagRecord{{UserID: uuid.New(), Reason: models.FlagSpam}},
		FlagCount:    1,
	}

	v := NewReplyView(m, liker)
	assert.Equal(t, "jane.doe", v.User)
	assert.True(t, v.IsLiked)
	assert.False(t, NewReplyView(m, uuid.Nil).IsLiked)

	raw, err := json.Marshal(NewMessageView(m, nil, uuid.Nil))
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, "example.com")
	assert.NotContains(t, body, liker.String())
	assert.Contains(t, body, `"replies":[]`)
	assert.NotContains(t, body, `"title"`)
}

func TestGuardianViewsEncodePhotos(t *testing.T) {
	views := NewGuardianViews([]models.Guardian{
		{Name: "Grace", Photo: &models.Photo{Data: []byte("hi"), ContentType: "image/png"}},
		{Name: "Tom"},
	})
	require.Len(t, views, 2)
	require.NotNil(t, views[0].Photo)
	assert.Equal(t, "aGk=", views[0].Photo.Data)
	assert.Nil(t, views[1].Photo)
}
