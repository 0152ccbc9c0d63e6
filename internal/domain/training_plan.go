package domain

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanStatus is the lifecycle status of a training plan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "Draft"
	PlanActive    PlanStatus = "Active"
	PlanCompleted PlanStatus = "Completed"
	PlanPaused    PlanStatus = "Paused"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanDraft, PlanActive, PlanCompleted, PlanPaused:
		return true
	}
	return false
}

// ClientVisibleStatuses are the plan statuses a client may see. Draft and Paused are coach-only.
var ClientVisibleStatuses = []PlanStatus{PlanActive, PlanCompleted}

// VisibilityWindow is how far ahead a future-dated plan becomes visible to its client.
const VisibilityWindow = 7

// Difficulty of a plan.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "Beginner"
	DifficultyIntermediate Difficulty = "Intermediate"
	DifficultyAdvanced     Difficulty = "Advanced"
)

func (d Difficulty) Valid() bool {
	switch d {
	case "", DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// TrainingPlan is a coach-authored multi-week program assigned to one client.
type TrainingPlan struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CoachID           primitive.ObjectID `bson:"coachId" json:"coachId"`
	ClientID          primitive.ObjectID `bson:"clientId" json:"clientId"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Duration          string             `bson:"duration" json:"duration"` // "N weeks"
	Status            PlanStatus         `bson:"status" json:"status"`
	Difficulty        Difficulty         `bson:"difficulty,omitempty" json:"difficulty,omitempty"`
	EstimatedDuration int                `bson:"estimatedDuration,omitempty" json:"estimatedDuration,omitempty"` // minutes per session
	StartDate         *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate           *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsClientVisible applies the visibility rule: status Active or Completed and a start date
// that is unset or within VisibilityWindow days of asOf.
func (p *TrainingPlan) IsClientVisible(asOf time.Time) bool {
	if p.Status != PlanActive && p.Status != PlanCompleted {
		return false
	}
	return p.StartDate == nil || !NormalizeDate(*p.StartDate).After(AddDays(asOf, VisibilityWindow))
}

// HasStarted reports whether the plan's start date is unset or on/before asOf.
func (p *TrainingPlan) HasStarted(asOf time.Time) bool {
	return p.StartDate == nil || !NormalizeDate(*p.StartDate).After(NormalizeDate(asOf))
}

// IsExpired reports whether an Active plan's end date lies strictly before asOf.
func (p *TrainingPlan) IsExpired(asOf time.Time) bool {
	return p.Status == PlanActive && p.EndDate != nil && NormalizeDate(*p.EndDate).Before(NormalizeDate(asOf))
}

// SortPlansByStart orders plans by start date ascending with unset start dates first.
// Ties fall back to creation time and then id so the order is stable across stores.
func SortPlansByStart(plans []TrainingPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		return planLess(&plans[i], &plans[j])
	})
}

func planLess(a, b *TrainingPlan) bool {
	switch {
	case a.StartDate == nil && b.StartDate != nil:
		return true
	case a.StartDate != nil && b.StartDate == nil:
		return false
	case a.StartDate != nil && b.StartDate != nil && !a.StartDate.Equal(*b.StartDate):
		return a.StartDate.Before(*b.StartDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.Hex() < b.ID.Hex()
}

// FilterVisible keeps the plans visible to their client on asOf, in start order.
func FilterVisible(plans []TrainingPlan, asOf time.Time) []TrainingPlan {
	visible := make([]TrainingPlan, 0, len(plans))
	for _, p := range plans {
		if p.IsClientVisible(asOf) {
			visible = append(visible, p)
		}
	}
	SortPlansByStart(visible)
	return visible
}

// CurrentPlan picks the plan a client is working on: the first visible plan that has
// already started, else the first visible plan. plans must be in start order.
func CurrentPlan(plans []TrainingPlan, asOf time.Time) *TrainingPlan {
	for i := range plans {
		if plans[i].HasStarted(asOf) {
			return &plans[i]
		}
	}
	if len(plans) > 0 {
		return &plans[0]
	}
	return nil
}
