package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseType decides how performance is measured for progress tracking.
type ExerciseType string

const (
	ExerciseWeighted   ExerciseType = "Weighted"
	ExerciseBodyweight ExerciseType = "Bodyweight"
	ExerciseCardio     ExerciseType = "Cardio"
)

func (t ExerciseType) Valid() bool {
	switch t {
	case ExerciseWeighted, ExerciseBodyweight, ExerciseCardio:
		return true
	}
	return false
}

// Exercise represents a single exercise definition in a coach's library.
type Exercise struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID     primitive.ObjectID `bson:"coachId" json:"coachId"` // owner
	Name        string             `bson:"name" json:"name"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"` // e.g. "Chest", "Legs"
	Type        ExerciseType       `bson:"type" json:"type"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	ImageKey    string             `bson:"imageKey,omitempty" json:"-"` // object storage keys
	VideoKey    string             `bson:"videoKey,omitempty" json:"-"`
	VideoURL    string             `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"` // external link, e.g. a hosted video
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
