package models

import (
	"time"

	"github.com/google/uuid"
)

// Photo is an uploaded image kept as an opaque blob.
type Photo struct {
	Data        []byte `json:"data" bson:"data"`
	ContentType string `json:"contentType" bson:"contentType"`
}

type Guardian struct {
	Name         string `json:"name" bson:"name"`
	Relationship string `json:"relationship" bson:"relationship"`
	Contact      string `json:"contact" bson:"contact"`
	Photo        *Photo `json:"photo,omitempty" bson:"photo,omitempty"`
}

// Details is a patient's care profile: who looks after them and a family photo
// used by the memory games.
type Details struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	PatientName    string     `json:"patientName"`
	PatientAbout   string     `json:"patientAbout"`
	PatientDisease string     `json:"patientDisease"`
	Guardians      []Guardian `json:"guardians"`
	FamilyPhoto    *Photo     `json:"familyPhoto,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
