// internal/database/details_repository.go
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

// DetailsDocument represents the MongoDB schema for a user's care profile.
// Photos are embedded as binary fields.
type DetailsDocument struct {
	ID             string            `bson:"_id"`
	UserID         string            `bson:"userId"`
	PatientName    string            `bson:"patientName"`
	PatientAbout   string            `bson:"patientAbout"`
	PatientDisease string            `bson:"patientDisease"`
	Guardians      []models.Guardian `bson:"guardians"`
	FamilyPhoto    *models.Photo     `bson:"familyPhoto,omitempty"`
	CreatedAt      time.Time         `bson:"createdAt"`
}

// SaveDetails replaces the user's profile, keeping the original id and
// creation time when one exists.
func (m *MongoDB) SaveDetails(ctx context.Context, details *models.Details) error {
	filter := bson.M{"userId": details.UserID.String()}
	update := bson.M{
		"$set": bson.M{
			"patientName":    details.PatientName,
			"patientAbout":   details.PatientAbout,
			"patientDisease": details.PatientDisease,
			"guardians":      details.Guardians,
			"familyPhoto":    details.FamilyPhoto,
		},
		"$setOnInsert": bson.M{
			"_id":       details.ID.String(),
			"createdAt": details.CreatedAt,
		},
	}

	_, err := m.Details.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return utils.NewDatabaseError("failed to save details", err)
	}
	return nil
}

func (m *MongoDB) GetDetails(ctx context.Context, userID uuid.UUID) (*models.Details, error) {
	var doc DetailsDocument
	err := m.Details.FindOne(ctx, bson.M{"userId": userID.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "details not found", err)
	}
	if err != nil {
		return nil, utils.NewDatabaseError("failed to query details", err)
	}

	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid details ID: %v", err)
	}
	return &models.Details{
		ID:             id,
		UserID:         userID,
		PatientName:    doc.PatientName,
		PatientAbout:   doc.PatientAbout,
		PatientDisease: doc.PatientDisease,
		Guardians:      doc.Guardians,
		FamilyPhoto:    doc.FamilyPhoto,
		CreatedAt:      doc.CreatedAt,
	}, nil
}
