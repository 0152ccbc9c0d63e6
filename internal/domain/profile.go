package domain

import (
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Age in whole years on asOf, taking the birthday into account.
func Age(dateOfBirth, asOf time.Time) int {
	age := asOf.Year() - dateOfBirth.Year()
	if asOf.Month() < dateOfBirth.Month() ||
		(asOf.Month() == dateOfBirth.Month() && asOf.Day() < dateOfBirth.Day()) {
		age--
	}
	return age
}

// BMI rounded to one decimal. ok is false when height or weight is missing.
func BMI(heightCM, weightKG float64) (float64, bool) {
	if heightCM <= 0 || weightKG <= 0 {
		return 0, false
	}
	m := heightCM / 100
	return math.Round(weightKG/(m*m)*10) / 10, true
}

// PerformanceEntry is one logged performance of an exercise.
type PerformanceEntry struct {
	SessionID primitive.ObjectID `json:"sessionId"`
	Date      time.Time          `json:"date"`
	Sets      int                `json:"sets"`
	Reps      int                `json:"reps"`
	Weight    float64            `json:"weight"`
}

// ExerciseProgress compares a client's first and latest performance of an exercise.
type ExerciseProgress struct {
	ExerciseID         primitive.ObjectID `json:"exerciseId"`
	Name               string             `json:"name"`
	Type               ExerciseType       `json:"type"`
	Entries            []PerformanceEntry `json:"entries"`
	FirstScore         float64            `json:"firstScore"`
	LatestScore        float64            `json:"latestScore"`
	ImprovementPercent *float64           `json:"improvementPercent,omitempty"`
}

// PerformanceScore is total volume (weight x reps x sets) for weighted exercises and
// total reps for bodyweight ones. Missing sets count as one. Cardio is not scored.
func PerformanceScore(t ExerciseType, e PerformanceEntry) float64 {
	sets := e.Sets
	if sets <= 0 {
		sets = 1
	}
	switch t {
	case ExerciseWeighted:
		return e.Weight * float64(e.Reps) * float64(sets)
	case ExerciseBodyweight:
		return float64(e.Reps * sets)
	}
	return 0
}

// BuildExerciseProgress sorts entries by date and computes the improvement from the first to
// the latest entry. Improvement is omitted when the first score is zero.
func BuildExerciseProgress(ex *Exercise, entries []PerformanceEntry) ExerciseProgress {
	sorted := make([]PerformanceEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	p := ExerciseProgress{ExerciseID: ex.ID, Name: ex.Name, Type: ex.Type, Entries: sorted}
	if len(sorted) == 0 {
		return p
	}
	p.FirstScore = PerformanceScore(ex.Type, sorted[0])
	p.LatestScore = PerformanceScore(ex.Type, sorted[len(sorted)-1])
	if p.FirstScore > 0 {
		imp := math.Round((p.LatestScore-p.FirstScore)/p.FirstScore*1000) / 10
		p.ImprovementPercent = &imp
	}
	return p
}
