package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ExerciseFeedback records, per session and exercise, whether the client finished the
// exercise, what they wrote about it and what they actually performed.
type ExerciseFeedback struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID    primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	ExerciseID   primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Completed    bool               `bson:"completed" json:"completed"`
	Feedback     string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
	ActualSets   *int               `bson:"actualSets,omitempty" json:"actualSets,omitempty"`
	ActualReps   *int               `bson:"actualReps,omitempty" json:"actualReps,omitempty"`
	ActualWeight *float64           `bson:"actualWeight,omitempty" json:"actualWeight,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FeedbackPatch lists the fields to set on an ExerciseFeedback. Nil fields are left as they are
// (or zero on first insert).
type FeedbackPatch struct {
	Completed    *bool
	Feedback     *string
	ActualSets   *int
	ActualReps   *int
	ActualWeight *float64

	// IfCompleted makes the write conditional on the stored completed flag. A missing record
	// counts as not completed.
	IfCompleted *bool
}

func (p FeedbackPatch) IsEmpty() bool {
	return p.Completed == nil && p.Feedback == nil && p.ActualSets == nil && p.ActualReps == nil && p.ActualWeight == nil
}

// Apply writes the patch onto f.
func (p FeedbackPatch) Apply(f *ExerciseFeedback) {
	if p.Completed != nil {
		f.Completed = *p.Completed
	}
	if p.Feedback != nil {
		f.Feedback = *p.Feedback
	}
	if p.ActualSets != nil {
		v := *p.ActualSets
		f.ActualSets = &v
	}
	if p.ActualReps != nil {
		v := *p.ActualReps
		f.ActualReps = &v
	}
	if p.ActualWeight != nil {
		v := *p.ActualWeight
		f.ActualWeight = &v
	}
}

// MissingCompletions returns the plan exercises with no completed feedback.
// An empty result means the completion gate is satisfied.
func MissingCompletions(items []PlanExercise, feedback []ExerciseFeedback) []primitive.ObjectID {
	done := make(map[primitive.ObjectID]bool, len(feedback))
	for _, f := range feedback {
		if f.Completed {
			done[f.ExerciseID] = true
		}
	}
	var missing []primitive.ObjectID
	for _, id := range PlanExerciseIDs(items) {
		if !done[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
