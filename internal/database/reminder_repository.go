// internal/database/reminder_repository.go
package database

import (
	"context"
	"fmt"
	"time"

	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReminderDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Reason    string    `bson:"reason"`
	Time      time.Time `bson:"time"`
	Schedule  string    `bson:"schedule,omitempty"`
	Delivered bool      `bson:"delivered"`
	CreatedAt time.Time `bson:"createdAt"`
}

func reminderToDocument(r *models.Reminder) ReminderDocument {
	return ReminderDocument{
		ID:        r.ID.String(),
		UserID:    r.UserID.String(),
		Reason:    r.Reason,
		Time:      r.Time,
		Schedule:  r.Schedule,
		Delivered: r.Delivered,
		CreatedAt: r.CreatedAt,
	}
}

func documentToReminder(doc *ReminderDocument) (*models.Reminder, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder ID: %v", err)
	}
	userID, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %v", err)
	}
	return &models.Reminder{
		ID:        id,
		UserID:    userID,
		Reason:    doc.Reason,
		Time:      doc.Time,
		Schedule:  doc.Schedule,
		Delivered: doc.Delivered,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (m *MongoDB) SaveReminder(ctx context.Context, reminder *models.Reminder) error {
	if _, err := m.Reminders.InsertOne(ctx, reminderToDocument(reminder)); err != nil {
		return utils.NewDatabaseError("failed to save reminder", err)
	}
	return nil
}

func (m *MongoDB) GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	var doc ReminderDocument
	err := m.Reminders.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "reminder not found", err)
	}
	if err != nil {
		return nil, utils.NewDatabaseError("failed to query reminder", err)
	}
	return documentToReminder(&doc)
}

func (m *MongoDB) GetRemindersByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reminder, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})
	cursor, err := m.Reminders.Find(ctx, bson.M{"userId": userID.String()}, opts)
	if err != nil {
		return nil, utils.NewDatabaseError("failed to query reminders", err)
	}
	defer cursor.Close(ctx)

	var docs []ReminderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewDatabaseError("failed to read reminders", err)
	}

	reminders := make([]*models.Reminder, 0, len(docs))
	for i := range docs {
		r, err := documentToReminder(&docs[i])
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, nil
}

func (m *MongoDB) UpdateReminder(ctx context.Context, reminder *models.Reminder) error {
	result, err := m.Reminders.UpdateOne(ctx,
		bson.M{"_id": reminder.ID.String()},
		bson.M{"$set": bson.M{
			"reason":    reminder.Reason,
			"time":      reminder.Time,
			"schedule":  reminder.Schedule,
			"delivered": reminder.Delivered,
		}},
	)
	if err != nil {
		return utils.NewDatabaseError("failed to update reminder", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "reminder not found", nil)
	}
	return nil
}
