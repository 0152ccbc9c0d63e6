package domain

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStatus is the state of a workout session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "Scheduled"
	SessionInProgress SessionStatus = "In Progress"
	SessionCompleted  SessionStatus = "Completed"
	SessionSkipped    SessionStatus = "Skipped"
)

// OutstandingStatuses are the non-terminal session statuses.
var OutstandingStatuses = []SessionStatus{SessionScheduled, SessionInProgress}

// SessionEvent names what caused a status change.
type SessionEvent string

const (
	EvSessionOpened   SessionEvent = "opened"
	EvSessionStarted  SessionEvent = "started"
	EvSessionFinished SessionEvent = "finished"
	EvSessionSkipped  SessionEvent = "skipped"
	EvSessionSwept    SessionEvent = "swept"
)

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From  SessionStatus
	To    SessionStatus
	Event SessionEvent
}

var sessionTransitions = []Transition{
	{From: SessionScheduled, To: SessionInProgress, Event: EvSessionOpened},
	{From: SessionScheduled, To: SessionInProgress, Event: EvSessionStarted},
	{From: SessionInProgress, To: SessionCompleted, Event: EvSessionFinished},
	{From: SessionScheduled, To: SessionSkipped, Event: EvSessionSkipped},
	{From: SessionInProgress, To: SessionSkipped, Event: EvSessionSkipped},
	{From: SessionScheduled, To: SessionSkipped, Event: EvSessionSwept},
}

// TransitionFor returns the allowed transition for a state and event.
func TransitionFor(from SessionStatus, ev SessionEvent) (Transition, bool) {
	for _, tr := range sessionTransitions {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// CanTransition reports whether any event moves a session from one status to another.
func CanTransition(from, to SessionStatus) bool {
	for _, tr := range sessionTransitions {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionSkipped
}

func (s SessionStatus) IsOutstanding() bool {
	return s == SessionScheduled || s == SessionInProgress
}

// WorkoutSession is one dated attempt at executing a plan.
type WorkoutSession struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID        primitive.ObjectID `bson:"clientId" json:"clientId"`
	PlanID          primitive.ObjectID `bson:"planId" json:"planId"`
	ScheduledDate   time.Time          `bson:"scheduledDate" json:"scheduledDate"` // calendar date
	Status          SessionStatus      `bson:"status" json:"status"`
	StartedAt       *time.Time         `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedDate   *time.Time         `bson:"completedDate,omitempty" json:"completedDate,omitempty"`
	DurationMinutes *int               `bson:"durationMinutes,omitempty" json:"durationMinutes,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SessionChange carries the fields written together with a status transition.
type SessionChange struct {
	StartedAt       *time.Time
	CompletedDate   *time.Time
	DurationMinutes *int
}

// Apply copies the set fields of c onto s and moves it to status.
func (c SessionChange) Apply(s *WorkoutSession, status SessionStatus) {
	s.Status = status
	if c.StartedAt != nil {
		s.StartedAt = c.StartedAt
	}
	if c.CompletedDate != nil {
		s.CompletedDate = c.CompletedDate
	}
	if c.DurationMinutes != nil {
		s.DurationMinutes = c.DurationMinutes
	}
}

// DurationMinutesBetween rounds the elapsed time to whole minutes, never below zero.
func DurationMinutesBetween(start, end time.Time) int {
	m := int(math.Round(end.Sub(start).Minutes()))
	if m < 0 {
		return 0
	}
	return m
}

// PlanOrder maps plan ids to their position in a start-ordered plan list.
func PlanOrder(plans []TrainingPlan) map[primitive.ObjectID]int {
	order := make(map[primitive.ObjectID]int, len(plans))
	for i, p := range plans {
		order[p.ID] = i
	}
	return order
}
