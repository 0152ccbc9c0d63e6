package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSessionRepository_CreateIfAbsent_Concurrent(t *testing.T) {
	repo := NewSessionRepository(NewStore())
	ctx := context.Background()
	clientID, planID := primitive.NewObjectID(), primitive.NewObjectID()
	date := time.Date(2025, 3, 10, 15, 4, 0, 0, time.UTC)

	const callers = 16
	ids := make([]primitive.ObjectID, callers)
	created := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, ok, err := repo.CreateIfAbsent(ctx, &domain.WorkoutSession{
				ClientID:      clientID,
				PlanID:        planID,
				ScheduledDate: date,
				Status:        domain.SessionInProgress,
			})
			assert.NoError(t, err)
			ids[i] = ws.ID
			created[i] = ok
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i := range ids {
		assert.Equal(t, ids[0], ids[i])
		if created[i] {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)

	sessions, err := repo.ListByClient(ctx, clientID, repository.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, domain.NormalizeDate(date), sessions[0].ScheduledDate)
}

func TestSessionRepository_Transition(t *testing.T) {
	repo := NewSessionRepository(NewStore())
	ctx := context.Background()
	ws, _, err := repo.CreateIfAbsent(ctx, &domain.WorkoutSession{
		ClientID:      primitive.NewObjectID(),
		PlanID:        primitive.NewObjectID(),
		ScheduledDate: time.Now(),
		Status:        domain.SessionScheduled,
	})
	require.NoError(t, err)

	started := time.Now().UTC()
	moved, err := repo.Transition(ctx, ws.ID, domain.SessionScheduled, domain.SessionInProgress, domain.SessionChange{StartedAt: &started})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionInProgress, moved.Status)
	require.NotNil(t, moved.StartedAt)

	_, err = repo.Transition(ctx, ws.ID, domain.SessionScheduled, domain.SessionInProgress, domain.SessionChange{})
	assert.ErrorIs(t, err, repository.ErrStatusMismatch)

	_, err = repo.Transition(ctx, primitive.NewObjectID(), domain.SessionScheduled, domain.SessionInProgress, domain.SessionChange{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSessionRepository_SkipStale(t *testing.T) {
	repo := NewSessionRepository(NewStore())
	ctx := context.Background()
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	clientID := primitive.NewObjectID()

	mk := func(date time.Time, status domain.SessionStatus) *domain.WorkoutSession {
		ws, _, err := repo.CreateIfAbsent(ctx, &domain.WorkoutSession{
			ClientID: clientID, PlanID: primitive.NewObjectID(), ScheduledDate: date, Status: status,
		})
		require.NoError(t, err)
		return ws
	}
	stale := mk(today.AddDate(0, 0, -1), domain.SessionScheduled)
	running := mk(today.AddDate(0, 0, -1), domain.SessionInProgress)
	current := mk(today, domain.SessionScheduled)

	n, err := repo.SkipStale(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, _ := repo.GetByID(ctx, stale.ID)
	assert.Equal(t, domain.SessionSkipped, got.Status)
	got, _ = repo.GetByID(ctx, running.ID)
	assert.Equal(t, domain.SessionInProgress, got.Status)
	got, _ = repo.GetByID(ctx, current.ID)
	assert.Equal(t, domain.SessionScheduled, got.Status)
}

func TestPlanExerciseRepository_ReplaceForPlan(t *testing.T) {
	s := NewStore()
	plans := NewTrainingPlanRepository(s)
	items := NewPlanExerciseRepository(s)
	ctx := context.Background()

	planID, err := plans.Create(ctx, &domain.TrainingPlan{
		CoachID: primitive.NewObjectID(), ClientID: primitive.NewObjectID(), Name: "Base", Duration: "4 weeks",
	})
	require.NoError(t, err)

	ex1, ex2 := primitive.NewObjectID(), primitive.NewObjectID()
	require.NoError(t, items.ReplaceForPlan(ctx, planID, []domain.PlanExercise{
		{ExerciseID: ex2, OrderIndex: 1},
		{ExerciseID: ex1, OrderIndex: 0},
	}))
	got, err := items.GetByPlanID(ctx, planID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ex1, got[0].ExerciseID)

	require.NoError(t, items.ReplaceForPlan(ctx, planID, []domain.PlanExercise{{ExerciseID: ex2}}))
	got, err = items.GetByPlanID(ctx, planID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ex2, got[0].ExerciseID)

	assert.ErrorIs(t, items.ReplaceForPlan(ctx, primitive.NewObjectID(), nil), repository.ErrNotFound)
}

func TestSessionRepository_ListUpcoming(t *testing.T) {
	repo := NewSessionRepository(NewStore())
	ctx := context.Background()
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	planID, otherPlan := primitive.NewObjectID(), primitive.NewObjectID()

	mk := func(plan primitive.ObjectID, offset int, status domain.SessionStatus) *domain.WorkoutSession {
		ws, _, err := repo.CreateIfAbsent(ctx, &domain.WorkoutSession{
			ClientID: primitive.NewObjectID(), PlanID: plan, ScheduledDate: today.AddDate(0, 0, offset), Status: status,
		})
		require.NoError(t, err)
		return ws
	}
	later := mk(planID, 3, domain.SessionScheduled)
	now := mk(planID, 0, domain.SessionInProgress)
	mk(planID, -1, domain.SessionScheduled)
	mk(planID, 1, domain.SessionCompleted)
	mk(otherPlan, 1, domain.SessionScheduled)
	soon := mk(planID, 1, domain.SessionScheduled)

	got, err := repo.ListUpcoming(ctx, []primitive.ObjectID{planID}, today, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []primitive.ObjectID{now.ID, soon.ID, later.ID}, []primitive.ObjectID{got[0].ID, got[1].ID, got[2].ID})

	got, err = repo.ListUpcoming(ctx, []primitive.ObjectID{planID}, today, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.ListUpcoming(ctx, nil, today, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
