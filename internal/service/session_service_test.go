package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSessionService_EnsureTodaysSession_Creates(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, days(-3), "4 weeks")

	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, plan.ID, ws.PlanID)
	assert.Equal(t, f.today(), ws.ScheduledDate)
	assert.Equal(t, domain.SessionInProgress, ws.Status)
	require.NotNil(t, ws.StartedAt)
	assert.Equal(t, f.now, *ws.StartedAt)

	f.now = f.now.Add(time.Hour)
	again, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)
	assert.Equal(t, ws.ID, again.ID)
	assert.Equal(t, *ws.StartedAt, *again.StartedAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CounterSessionsMaterialized))
}

func TestSessionService_EnsureTodaysSession_NothingToDo(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *fixture)
	}{
		{name: "no plans", setup: func(*testing.T, *fixture) {}},
		{name: "completed plan only", setup: func(t *testing.T, f *fixture) {
			f.addPlan(t, domain.PlanCompleted, days(-3), "4 weeks")
		}},
		{name: "plan starts later", setup: func(t *testing.T, f *fixture) {
			f.addPlan(t, domain.PlanActive, days(3), "4 weeks")
		}},
		{name: "draft plan", setup: func(t *testing.T, f *fixture) {
			f.addPlan(t, domain.PlanDraft, nil, "4 weeks")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(t, f)
			svc := NewSessionService(f.repos, PolicyPerPlan, f.opts)

			ws, err := svc.EnsureTodaysSession(context.Background(), f.client.ID, f.now)
			require.NoError(t, err)
			assert.Nil(t, ws)

			all, err := f.repos.Sessions.ListByClient(context.Background(), f.client.ID, repository.SessionFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestSessionService_EnsureTodaysSession_Policies(t *testing.T) {
	for _, policy := range []MaterializationPolicy{PolicySingle, PolicyPerPlan} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t)
			svc := NewSessionService(f.repos, policy, f.opts)
			ctx := context.Background()

			later := f.addPlan(t, domain.PlanActive, days(-1), "4 weeks")
			first := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
			f.addPlan(t, domain.PlanCompleted, days(-20), "1 week")

			ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
			require.NoError(t, err)
			require.NotNil(t, ws)
			assert.Equal(t, first.ID, ws.PlanID)

			all, err := f.repos.Sessions.ListByClient(ctx, f.client.ID, repository.SessionFilter{})
			require.NoError(t, err)
			if policy == PolicySingle {
				require.Len(t, all, 1)
				return
			}
			require.Len(t, all, 2)
			byPlan := map[primitive.ObjectID]bool{}
			for _, s := range all {
				byPlan[s.PlanID] = true
				assert.Equal(t, domain.SessionInProgress, s.Status)
			}
			assert.True(t, byPlan[later.ID])
		})
	}
}

func TestSessionService_EnsureTodaysSession_OpensScheduled(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	scheduled := f.addSession(t, plan.ID, 0, domain.SessionScheduled)

	ws, err := svc.EnsureTodaysSession(context.Background(), f.client.ID, f.now)
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, scheduled.ID, ws.ID)
	assert.Equal(t, domain.SessionInProgress, ws.Status)
	require.NotNil(t, ws.StartedAt)
	assert.Equal(t, f.now, *ws.StartedAt)
	assert.Zero(t, testutil.ToFloat64(f.metrics.CounterSessionsMaterialized))
}

func TestSessionService_EnsureTodaysSession_TerminalReturnedAsIs(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)
	done, err := svc.CompleteSession(ctx, f.client.ID, ws.ID)
	require.NoError(t, err)

	again, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, done.ID, again.ID)
	assert.Equal(t, domain.SessionCompleted, again.Status)
	assert.Equal(t, plan.ID, again.PlanID)

	// a new day opens a new session
	f.now = f.now.AddDate(0, 0, 1)
	tomorrow, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)
	assert.NotEqual(t, done.ID, tomorrow.ID)
	assert.Equal(t, domain.SessionInProgress, tomorrow.Status)
}

func TestSessionService_EnsureTodaysSession_Concurrent(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicyPerPlan, f.opts)
	f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	f.addPlan(t, domain.PlanActive, days(-2), "4 weeks")

	const callers = 12
	ids := make([]primitive.ObjectID, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := svc.EnsureTodaysSession(context.Background(), f.client.ID, f.today())
			assert.NoError(t, err)
			if ws != nil {
				ids[i] = ws.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := f.repos.Sessions.ListByClient(context.Background(), f.client.ID, repository.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSessionService_CompleteSession_Gate(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	exercises := f.addExercises(t, f.coach.ID, 2, domain.ExerciseWeighted)
	f.setItems(t, plan.ID, exercises)

	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)

	_, err = svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, exercises[0].ID, true)
	require.NoError(t, err)

	_, err = svc.CompleteSession(ctx, f.client.ID, ws.ID)
	require.ErrorIs(t, err, ErrCompletionGate)
	var gate *CompletionGateError
	require.ErrorAs(t, err, &gate)
	assert.Equal(t, []string{exercises[1].ID.Hex()}, gate.Missing)

	_, err = svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, exercises[1].ID, true)
	require.NoError(t, err)

	f.now = f.now.Add(45*time.Minute + 20*time.Second)
	done, err := svc.CompleteSession(ctx, f.client.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, done.Status)
	require.NotNil(t, done.CompletedDate)
	assert.Equal(t, f.now, *done.CompletedDate)
	require.NotNil(t, done.DurationMinutes)
	assert.Equal(t, 45, *done.DurationMinutes)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CounterSessionsCompleted))

	_, err = svc.CompleteSession(ctx, f.client.ID, ws.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSessionService_CompleteSession_EmptyPlan(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)

	done, err := svc.CompleteSession(ctx, f.client.ID, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, done.Status)
	assert.Equal(t, 0, *done.DurationMinutes)
}

func TestSessionService_Transitions(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	scheduled := f.addSession(t, plan.ID, 1, domain.SessionScheduled)
	other := f.addSession(t, plan.ID, 2, domain.SessionScheduled)

	_, err := svc.CompleteSession(ctx, f.client.ID, scheduled.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	started, err := svc.StartSession(ctx, f.client.ID, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionInProgress, started.Status)

	_, err = svc.StartSession(ctx, f.client.ID, scheduled.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	skipped, err := svc.SkipSession(ctx, f.client.ID, scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionSkipped, skipped.Status)

	_, err = svc.SkipSession(ctx, f.client.ID, scheduled.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	skipped, err = svc.SkipSession(ctx, f.client.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionSkipped, skipped.Status)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.CounterSessionsSkipped))

	_, err = svc.StartSession(ctx, primitive.NewObjectID(), other.ID)
	assert.ErrorIs(t, err, ErrSessionAccessDenied)

	_, err = svc.StartSession(ctx, f.client.ID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_ExerciseFeedback(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	exercises := f.addExercises(t, f.coach.ID, 1, domain.ExerciseWeighted)
	f.setItems(t, plan.ID, exercises)
	exID := exercises[0].ID

	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)

	fb, err := svc.ToggleExerciseCompleted(ctx, f.client.ID, ws.ID, exID)
	require.NoError(t, err)
	assert.True(t, fb.Completed)

	fb, err = svc.SaveExerciseFeedback(ctx, f.client.ID, ws.ID, exID, "  felt heavy ")
	require.NoError(t, err)
	assert.True(t, fb.Completed)
	assert.Equal(t, "felt heavy", fb.Feedback)

	sets, reps, weight := 3, 8, 72.5
	fb, err = svc.LogExercisePerformance(ctx, f.client.ID, ws.ID, exID, Performance{Sets: &sets, Reps: &reps, Weight: &weight})
	require.NoError(t, err)
	require.NotNil(t, fb.ActualWeight)
	assert.Equal(t, 72.5, *fb.ActualWeight)
	assert.Equal(t, "felt heavy", fb.Feedback)

	fb, err = svc.ToggleExerciseCompleted(ctx, f.client.ID, ws.ID, exID)
	require.NoError(t, err)
	assert.False(t, fb.Completed)

	fb, err = svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, exID, true)
	require.NoError(t, err)
	fb, err = svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, exID, true)
	require.NoError(t, err)
	assert.True(t, fb.Completed)

	stored, err := f.repos.Feedback.GetBySessionID(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	negative := -1
	_, err = svc.LogExercisePerformance(ctx, f.client.ID, ws.ID, exID, Performance{Reps: &negative})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, primitive.NewObjectID(), true)
	assert.ErrorIs(t, err, ErrExerciseNotInPlan)

	_, err = svc.SkipSession(ctx, f.client.ID, ws.ID)
	require.NoError(t, err)
	_, err = svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, exID, false)
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestSessionService_SkipStaleSessions(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, days(-10), "4 weeks")
	stale := f.addSession(t, plan.ID, -1, domain.SessionScheduled)
	current := f.addSession(t, plan.ID, 0, domain.SessionScheduled)
	inProgress := f.addSession(t, plan.ID, -2, domain.SessionInProgress)

	n, err := svc.SkipStaleSessions(ctx, f.today())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for id, want := range map[primitive.ObjectID]domain.SessionStatus{
		stale.ID:      domain.SessionSkipped,
		current.ID:    domain.SessionScheduled,
		inProgress.ID: domain.SessionInProgress,
	} {
		ws, err := f.repos.Sessions.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, ws.Status)
	}
}

func TestSessionService_DetailAndHistory(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, days(-5), "4 weeks")
	exercises := f.addExercises(t, f.coach.ID, 2, domain.ExerciseBodyweight)
	f.setItems(t, plan.ID, exercises)

	var completed []primitive.ObjectID
	for day := 0; day < 3; day++ {
		ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
		require.NoError(t, err)
		for _, ex := range exercises {
			_, err := svc.SetExerciseCompleted(ctx, f.client.ID, ws.ID, ex.ID, true)
			require.NoError(t, err)
		}
		_, err = svc.CompleteSession(ctx, f.client.ID, ws.ID)
		require.NoError(t, err)
		completed = append(completed, ws.ID)
		f.now = f.now.AddDate(0, 0, 1)
	}

	detail, err := svc.GetSessionDetail(ctx, CoachActor(f.coach.ID), completed[0])
	require.NoError(t, err)
	require.Len(t, detail.Items, 2)
	require.NotNil(t, detail.Items[0].Feedback)
	assert.True(t, detail.Items[0].Feedback.Completed)
	assert.Equal(t, plan.ID, detail.Plan.ID)

	_, err = svc.GetSessionDetail(ctx, ClientActor(primitive.NewObjectID()), completed[0])
	assert.ErrorIs(t, err, ErrSessionAccessDenied)
	_, err = svc.GetSessionDetail(ctx, CoachActor(primitive.NewObjectID()), completed[0])
	assert.ErrorIs(t, err, ErrSessionAccessDenied)

	history, err := svc.SessionHistory(ctx, ClientActor(f.client.ID), f.client.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, completed[2], history[0].Session.ID)
	assert.Equal(t, completed[1], history[1].Session.ID)
	assert.Equal(t, plan.Name, history[0].PlanName)
	assert.Len(t, history[0].Feedback, 2)

	_, err = svc.SessionHistory(ctx, ClientActor(f.client.ID), primitive.NewObjectID(), 0)
	assert.ErrorIs(t, err, ErrSessionAccessDenied)
	_, err = svc.SessionHistory(ctx, CoachActor(primitive.NewObjectID()), f.client.ID, 0)
	assert.ErrorIs(t, err, ErrClientNotManaged)
}

func TestSessionService_ToggleExerciseCompleted_Concurrent(t *testing.T) {
	f := newFixture(t)
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	exercises := f.addExercises(t, f.coach.ID, 1, domain.ExerciseWeighted)
	f.setItems(t, plan.ID, exercises)
	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make(chan error, 2)
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.ToggleExerciseCompleted(ctx, f.client.ID, ws.ID, exercises[0].ID)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// two flips from the missing record land back on not completed
	stored, err := f.repos.Feedback.Get(ctx, ws.ID, exercises[0].ID)
	require.NoError(t, err)
	assert.False(t, stored.Completed)
}

// racingFeedback reports every conditional write as lost.
type racingFeedback struct {
	repository.FeedbackRepository
	upserts int
}

func (r *racingFeedback) Upsert(ctx context.Context, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error) {
	if patch.IfCompleted != nil {
		r.upserts++
		return nil, repository.ErrStatusMismatch
	}
	return r.FeedbackRepository.Upsert(ctx, sessionID, exerciseID, patch)
}

func TestSessionService_ToggleExerciseCompleted_GivesUp(t *testing.T) {
	f := newFixture(t)
	racing := &racingFeedback{FeedbackRepository: f.repos.Feedback}
	f.repos.Feedback = racing
	svc := NewSessionService(f.repos, PolicySingle, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, nil, "4 weeks")
	exercises := f.addExercises(t, f.coach.ID, 1, domain.ExerciseWeighted)
	f.setItems(t, plan.ID, exercises)
	ws, err := svc.EnsureTodaysSession(ctx, f.client.ID, f.now)
	require.NoError(t, err)

	_, err = svc.ToggleExerciseCompleted(ctx, f.client.ID, ws.ID, exercises[0].ID)
	assert.ErrorIs(t, err, ErrFeedbackConflict)
	assert.Equal(t, toggleAttempts, racing.upserts)
}
