package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]SessionStatus{
		{SessionScheduled, SessionInProgress},
		{SessionInProgress, SessionCompleted},
		{SessionScheduled, SessionSkipped},
		{SessionInProgress, SessionSkipped},
	}
	for _, edge := range allowed {
		assert.True(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}

	forbidden := [][2]SessionStatus{
		{SessionScheduled, SessionCompleted},
		{SessionInProgress, SessionScheduled},
		{SessionCompleted, SessionInProgress},
		{SessionCompleted, SessionSkipped},
		{SessionSkipped, SessionInProgress},
		{SessionSkipped, SessionCompleted},
	}
	for _, edge := range forbidden {
		assert.False(t, CanTransition(edge[0], edge[1]), "%s -> %s", edge[0], edge[1])
	}
}

func TestTransitionFor(t *testing.T) {
	tr, ok := TransitionFor(SessionScheduled, EvSessionSwept)
	assert.True(t, ok)
	assert.Equal(t, SessionSkipped, tr.To)

	_, ok = TransitionFor(SessionInProgress, EvSessionSwept)
	assert.False(t, ok)

	_, ok = TransitionFor(SessionCompleted, EvSessionFinished)
	assert.False(t, ok)
}

func TestSessionStatus_Terminal(t *testing.T) {
	assert.True(t, SessionCompleted.IsTerminal())
	assert.True(t, SessionSkipped.IsTerminal())
	assert.False(t, SessionScheduled.IsTerminal())
	assert.True(t, SessionInProgress.IsOutstanding())
	assert.False(t, SessionSkipped.IsOutstanding())
}

func TestDurationMinutesBetween(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 45, DurationMinutesBetween(start, start.Add(45*time.Minute+20*time.Second)))
	assert.Equal(t, 46, DurationMinutesBetween(start, start.Add(45*time.Minute+30*time.Second)))
	assert.Equal(t, 0, DurationMinutesBetween(start, start.Add(-time.Minute)))
}

func TestMissingCompletions(t *testing.T) {
	ex1, ex2, ex3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	items := []PlanExercise{{ExerciseID: ex1}, {ExerciseID: ex2}, {ExerciseID: ex3}}
	feedback := []ExerciseFeedback{
		{ExerciseID: ex1, Completed: true},
		{ExerciseID: ex2, Completed: false, Feedback: "too heavy"},
	}

	assert.Equal(t, []primitive.ObjectID{ex2, ex3}, MissingCompletions(items, feedback))
	assert.Empty(t, MissingCompletions(nil, feedback))
}

func TestFeedbackPatch_Apply(t *testing.T) {
	completed := true
	text := "felt good"
	reps := 10
	f := &ExerciseFeedback{Feedback: "old"}

	FeedbackPatch{Completed: &completed}.Apply(f)
	assert.True(t, f.Completed)
	assert.Equal(t, "old", f.Feedback)

	FeedbackPatch{Feedback: &text, ActualReps: &reps}.Apply(f)
	assert.True(t, f.Completed)
	assert.Equal(t, "felt good", f.Feedback)
	assert.Equal(t, 10, *f.ActualReps)
	assert.Nil(t, f.ActualSets)
}
