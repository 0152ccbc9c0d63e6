package domain

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanExercise is an ordered line item of a training plan.
type PlanExercise struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`
	ExerciseID  primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Sets        int                `bson:"sets,omitempty" json:"sets,omitempty"`
	Reps        int                `bson:"reps,omitempty" json:"reps,omitempty"`
	Weight      float64            `bson:"weight,omitempty" json:"weight,omitempty"` // kg
	TimeMinutes int                `bson:"timeMinutes,omitempty" json:"timeMinutes,omitempty"`
	RestSeconds int                `bson:"restSeconds,omitempty" json:"restSeconds,omitempty"`
	Tempo       string             `bson:"tempo,omitempty" json:"tempo,omitempty"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	OrderIndex  int                `bson:"orderIndex" json:"orderIndex"` // zero-based
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// SortPlanExercises orders line items by OrderIndex ascending.
func SortPlanExercises(items []PlanExercise) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].OrderIndex < items[j].OrderIndex
	})
}

// PlanExerciseIDs returns the distinct exercise ids referenced by items.
func PlanExerciseIDs(items []PlanExercise) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]struct{}, len(items))
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ExerciseID]; ok {
			continue
		}
		seen[it.ExerciseID] = struct{}{}
		ids = append(ids, it.ExerciseID)
	}
	return ids
}
