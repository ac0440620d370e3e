// internal/database/message_repository.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rekindle/internal/logger"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageDocument represents the MongoDB schema for a community message.
// Posts and replies share the collection; parentId is null for posts.
type MessageDocument struct {
	ID           string         `bson:"_id"`
	AuthorID     string         `bson:"authorId"`
	AuthorEmail  string         `bson:"authorEmail"`
	Role         string         `bson:"role"`
	Subcommunity string         `bson:"subcommunity"`
	Title        *string        `bson:"title,omitempty"`
	Body         string         `bson:"text"`
	ParentID     *string        `bson:"parentId"`
	CreatedAt    time.Time      `bson:"timestamp"`
	LikeCount    int            `bson:"likeCount"`
	LikedBy      []string       `bson:"likedBy"`
	FlagCount    int            `bson:"flagCount"`
	FlaggedBy    []FlagDocument `bson:"flaggedBy"`
	IsFlagged    bool           `bson:"isFlagged"`
	IsHidden     bool           `bson:"isHidden"`
}

type FlagDocument struct {
	UserID    string    `bson:"userId"`
	Reason    string    `bson:"reason"`
	Timestamp time.Time `bson:"timestamp"`
}

// MessageToDocument converts a Message model to a MongoDB document.
func (m *MongoDB) MessageToDocument(msg *models.Message) *MessageDocument {
	doc := &MessageDocument{
		ID:           msg.ID.String(),
		AuthorID:     msg.AuthorID.String(),
		AuthorEmail:  msg.AuthorEmail,
		Role:         string(msg.Role),
		Subcommunity: string(msg.Subcommunity),
		Title:        msg.Title,
		Body:         msg.Body,
		CreatedAt:    msg.CreatedAt,
		LikeCount:    msg.LikeCount,
		LikedBy:      make([]string, len(msg.LikedBy)),
		FlagCount:    msg.FlagCount,
		FlaggedBy:    make([]FlagDocument, len(msg.FlaggedBy)),
		IsFlagged:    msg.IsFlagged,
		IsHidden:     msg.IsHidden,
	}
	if msg.ParentID != nil {
		parent := msg.ParentID.String()
		doc.ParentID = &parent
	}
	for i, id := range msg.LikedBy {
		doc.LikedBy[i] = id.String()
	}
	for i, f := range msg.FlaggedBy {
		doc.FlaggedBy[i] = FlagDocument{UserID: f.UserID.String(), Reason: string(f.Reason), Timestamp: f.Timestamp}
	}
	return doc
}

// DocumentToMessage converts a MongoDB document to a Message model.
func (m *MongoDB) DocumentToMessage(doc *MessageDocument) (*models.Message, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID: %v", err)
	}
	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}

	msg := &models.Message{
		ID:           id,
		AuthorID:     authorID,
		AuthorEmail:  doc.AuthorEmail,
		Role:         models.Role(doc.Role),
		Subcommunity: models.SubcommunityID(doc.Subcommunity),
		Title:        doc.Title,
		Body:         doc.Body,
		CreatedAt:    doc.CreatedAt,
		LikeCount:    doc.LikeCount,
		FlagCount:    doc.FlagCount,
		IsFlagged:    doc.IsFlagged,
		IsHidden:     doc.IsHidden,
	}
	if doc.ParentID != nil {
		parentID, err := uuid.Parse(*doc.ParentID)
		if err != nil {
			return nil, fmt.Errorf("invalid parent ID: %v", err)
		}
		msg.ParentID = &parentID
	}
	for _, s := range doc.LikedBy {
		if uid, err := uuid.Parse(s); err == nil {
			msg.LikedBy = append(msg.LikedBy, uid)
		}
	}
	for _, f := range doc.FlaggedBy {
		if uid, err := uuid.Parse(f.UserID); err == nil {
			msg.FlaggedBy = append(msg.FlaggedBy, models.FlagRecord{
				UserID:    uid,
				Reason:    models.FlagReason(f.Reason),
				Timestamp: f.Timestamp,
			})
		}
	}
	return msg, nil
}

func (m *MongoDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	_, err := m.Messages.InsertOne(ctx, m.MessageToDocument(msg))
	if mongo.IsDuplicateKeyError(err) {
		return utils.NewAppError(utils.ErrDuplicate, "message already exists", err)
	}
	if err != nil {
		return utils.NewDatabaseError("failed to save message", err)
	}
	return nil
}

func (m *MongoDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var doc MessageDocument
	err := m.Messages.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Message not found", err)
	}
	if err != nil {
		return nil, utils.NewDatabaseError("failed to query message", err)
	}
	return m.DocumentToMessage(&doc)
}

func (m *MongoDB) GetTopLevelMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	query := bson.M{"parentId": nil}
	if filter.Role != "" {
		query["role"] = string(filter.Role)
	}
	if filter.Subcommunity != "" {
		query["subcommunity"] = string(filter.Subcommunity)
	}
	if filter.ExcludeHidden {
		query["isHidden"] = bson.M{"$ne": true}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return m.findMessages(ctx, query, opts)
}

func (m *MongoDB) GetReplies(ctx context.Context, parentID uuid.UUID, limit int) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return m.findMessages(ctx, bson.M{"parentId": parentID.String()}, opts)
}

func (m *MongoDB) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Message, error) {
	cursor, err := m.Messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewDatabaseError("failed to query messages", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*models.Message, 0)
	for cursor.Next(ctx) {
		var doc MessageDocument
		if err := cursor.Decode(&doc); err != nil {
			logger.Warn("Error decoding message document", "error", err)
			continue
		}
		msg, err := m.DocumentToMessage(&doc)
		if err != nil {
			logger.Warn("Error converting document to model", "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	if err := cursor.Err(); err != nil {
		return nil, utils.NewDatabaseError("cursor iteration failed", err)
	}
	return messages, nil
}

func (m *MongoDB) CountMessages(ctx context.Context) (int, error) {
	n, err := m.Messages.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, utils.NewDatabaseError("failed to count messages", err)
	}
	return int(n), nil
}

// likeCounters is the projection returned by the like update.
type likeCounters struct {
	LikeCount int `bson:"likeCount"`
}

// ToggleLike adds the user to likedBy if absent, otherwise removes them.
// Each branch is one conditional FindOneAndUpdate keyed on membership, so two
// concurrent toggles cannot both apply the same transition.
func (m *MongoDB) ToggleLike(ctx context.Context, messageID, userID uuid.UUID) (*models.LikeResult, error) {
	id, uid := messageID.String(), userID.String()
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likeCount": 1})

	// A concurrent toggle can flip membership between the two attempts;
	// retry a couple of times before deciding the message is gone.
	for attempt := 0; attempt < 3; attempt++ {
		var out likeCounters
		err := m.Messages.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "likedBy": bson.M{"$ne": uid}},
			bson.M{"$addToSet": bson.M{"likedBy": uid}, "$inc": bson.M{"likeCount": 1}},
			opts,
		).Decode(&out)
		if err == nil {
			return &models.LikeResult{LikeCount: out.LikeCount, IsLiked: true}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewDatabaseError("failed to like message", err)
		}

		err = m.Messages.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "likedBy": uid},
			unlikePipeline(uid),
			opts,
		).Decode(&out)
		if err == nil {
			return &models.LikeResult{LikeCount: out.LikeCount, IsLiked: false}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewDatabaseError("failed to unlike message", err)
		}

		if exists, err := m.messageExists(ctx, id); err != nil {
			return nil, err
		} else if !exists {
			return nil, utils.NewNotFoundError("Message not found")
		}
	}
	return nil, utils.NewDatabaseError("like toggle did not converge", nil)
}

// unlikePipeline removes uid from likedBy and decrements likeCount, floored
// at zero so a count that drifted below the set size never goes negative.
func unlikePipeline(uid string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"likedBy": bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{"$likedBy", bson.A{}}},
				"cond":  bson.M{"$ne": bson.A{"$$this", uid}},
			}},
			"likeCount": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$likeCount", 1}}}},
		}}},
	}
}

type flagCounters struct {
	FlagCount int  `bson:"flagCount"`
	IsFlagged bool `bson:"isFlagged"`
}

// FlagMessage appends a flag record unless the user already flagged the
// message. The threshold check runs inside the same pipeline update.
func (m *MongoDB) FlagMessage(ctx context.Context, messageID uuid.UUID, flag models.FlagRecord) (*models.FlagResult, error) {
	id := messageID.String()
	record := bson.D{
		{Key: "userId", Value: flag.UserID.String()},
		{Key: "reason", Value: string(flag.Reason)},
		{Key: "timestamp", Value: flag.Timestamp},
	}
	overThreshold := bson.M{"$or": bson.A{
		"$isFlagged",
		bson.M{"$gte": bson.A{"$flagCount", models.FlagThreshold}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"flaggedBy": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$flaggedBy", bson.A{}}},
				bson.A{record},
			}},
			"flagCount": bson.M{"$add": bson.A{"$flagCount", 1}},
		}}},
		{{Key: "$set", Value: bson.M{
			"isFlagged": overThreshold,
			"isHidden":  bson.M{"$or": bson.A{"$isHidden", overThreshold}},
		}}},
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"flagCount": 1, "isFlagged": 1})

	var out flagCounters
	err := m.Messages.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "flaggedBy.userId": bson.M{"$ne": flag.UserID.String()}},
		pipeline,
		opts,
	).Decode(&out)
	if err == nil {
		return &models.FlagResult{FlagCount: out.FlagCount, IsFlagged: out.IsFlagged}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewDatabaseError("failed to flag message", err)
	}

	exists, err := m.messageExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, utils.NewNotFoundError("Message not found")
	}
	return nil, utils.NewAppError(utils.ErrAlreadyFlagged, "You have already flagged this message", nil)
}

func (m *MongoDB) messageExists(ctx context.Context, id string) (bool, error) {
	n, err := m.Messages.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, utils.NewDatabaseError("failed to look up message", err)
	}
	return n > 0, nil
}

// GetCommunityStats aggregates counts over the messages collection.
func (m *MongoDB) GetCommunityStats(ctx context.Context, subcommunity models.SubcommunityID) (*models.CommunityStats, error) {
	scope := bson.M{}
	if subcommunity != "" {
		scope["subcommunity"] = string(subcommunity)
	}
	withScope := func(extra bson.M) bson.M {
		f := bson.M{}
		for k, v := range scope {
			f[k] = v
		}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}

	stats := &models.CommunityStats{}

	posts, err := m.Messages.CountDocuments(ctx, withScope(bson.M{"parentId": nil}))
	if err != nil {
		return nil, utils.NewDatabaseError("failed to count messages", err)
	}
	replies, err := m.Messages.CountDocuments(ctx, withScope(bson.M{"parentId": bson.M{"$ne": nil}}))
	if err != nil {
		return nil, utils.NewDatabaseError("failed to count replies", err)
	}
	authors, err := m.Messages.Distinct(ctx, "authorId", scope)
	if err != nil {
		return nil, utils.NewDatabaseError("failed to count users", err)
	}
	stats.TotalMessages = int(posts)
	stats.TotalReplies = int(replies)
	stats.TotalUsers = len(authors)

	cursor, err := m.Messages.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: withScope(bson.M{"parentId": nil})}},
		{{Key: "$group", Value: bson.M{"_id": "$role", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, utils.NewDatabaseError("failed to aggregate roles", err)
	}
	defer cursor.Close(ctx)

	var roleRows []struct {
		Role  string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &roleRows); err != nil {
		return nil, utils.NewDatabaseError("failed to read role counts", err)
	}
	roles := make(map[models.Role]int, len(roleRows))
	for _, r := range roleRows {
		roles[models.Role(r.Role)] = r.Count
	}
	stats.RoleStats = completeRoleStats(roles)

	if subcommunity == "" {
		counts, err := m.GetSubcommunityCounts(ctx)
		if err != nil {
			return nil, err
		}
		stats.SubcommunityStats = counts
	}
	return stats, nil
}

func (m *MongoDB) GetSubcommunityCounts(ctx context.Context) ([]models.SubcommunityCounts, error) {
	cursor, err := m.Messages.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":          "$subcommunity",
			"messageCount": bson.M{"$sum": 1},
			"authors":      bson.M{"$addToSet": "$authorId"},
		}}},
		{{Key: "$project", Value: bson.M{
			"messageCount": 1,
			"userCount":    bson.M{"$size": "$authors"},
		}}},
	})
	if err != nil {
		return nil, utils.NewDatabaseError("failed to aggregate subcommunities", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID           string `bson:"_id"`
		MessageCount int    `bson:"messageCount"`
		UserCount    int    `bson:"userCount"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, utils.NewDatabaseError("failed to read subcommunity counts", err)
	}

	found := make([]models.SubcommunityCounts, len(rows))
	for i, r := range rows {
		found[i] = models.SubcommunityCounts{
			ID:           models.SubcommunityID(r.ID),
			MessageCount: r.MessageCount,
			UserCount:    r.UserCount,
		}
	}
	return catalogCounts(found), nil
}
