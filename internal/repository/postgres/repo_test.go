//go:build integration_test || all_tests

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testRepoSetup(t *testing.T) (*repository.Repositories, func()) {
	t.Helper()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connString := os.Getenv("POSTGRES_URL")
	if connString == "" {
		connString = "postgres://postgres@localhost:5432/fittrainer_test"
	}
	t.Logf("using postgres: %s", connString)

	dbPool, err := NewDBPool(timeoutCtx, NewDBPoolParams{ConnString: connString})
	require.NoError(t, err)
	require.NoError(t, Migrate(timeoutCtx, dbPool))
	require.NoError(t, deleteAll(timeoutCtx, dbPool))

	return NewRepositories(dbPool), func() {
		dbPool.Close()
	}
}

func deleteAll(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, `TRUNCATE exercise_feedback, workout_sessions, plan_exercises, training_plans,
		invoices, exercises, coach_clients, users;`)
	return err
}

func TestUserRepo_CoachClientLinks(t *testing.T) {
	repos, shutdown := testRepoSetup(t)
	defer shutdown()
	ctx := context.Background()

	coachID, err := repos.Users.Create(ctx, &domain.User{
		Name: gofakeit.Name(), Email: gofakeit.Email(), PasswordHash: "x", Role: domain.RoleCoach,
	})
	require.NoError(t, err)
	email := gofakeit.Email()
	clientID, err := repos.Users.Create(ctx, &domain.User{
		Name: gofakeit.Name(), Email: email, PasswordHash: "x", Role: domain.RoleClient,
	})
	require.NoError(t, err)

	_, err = repos.Users.Create(ctx, &domain.User{Email: email, PasswordHash: "x", Role: domain.RoleClient})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	require.NoError(t, repos.Users.AddClientIDToCoach(ctx, coachID, clientID))
	require.NoError(t, repos.Users.AddClientIDToCoach(ctx, coachID, clientID))
	require.NoError(t, repos.Users.SetCoachForClient(ctx, clientID, coachID))

	coach, err := repos.Users.GetByID(ctx, coachID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{clientID}, coach.ClientIDs)

	clients, err := repos.Users.GetClientsByCoachID(ctx, coachID)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	require.NotNil(t, clients[0].CoachID)
	assert.Equal(t, coachID, *clients[0].CoachID)

	assert.ErrorIs(t, repos.Users.AddClientIDToCoach(ctx, primitive.NewObjectID(), clientID), repository.ErrNotFound)
}

func TestTrainingPlanRepo_ListForClient(t *testing.T) {
	repos, shutdown := testRepoSetup(t)
	defer shutdown()
	ctx := context.Background()

	clientID, coachID := primitive.NewObjectID(), primitive.NewObjectID()
	asOf := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	mk := func(name string, status domain.PlanStatus, start *time.Time) primitive.ObjectID {
		id, err := repos.Plans.Create(ctx, &domain.TrainingPlan{
			CoachID: coachID, ClientID: clientID, Name: name, Duration: "4 weeks", Status: status, StartDate: start,
		})
		require.NoError(t, err)
		return id
	}
	started := mk("started", domain.PlanActive, domain.DatePtr(asOf.AddDate(0, 0, -3)))
	unset := mk("unset", domain.PlanActive, nil)
	mk("future", domain.PlanActive, domain.DatePtr(asOf.AddDate(0, 0, 30)))
	mk("draft", domain.PlanDraft, nil)

	horizon := asOf.AddDate(0, 0, domain.VisibilityWindow)
	plans, err := repos.Plans.ListForClient(ctx, clientID, repository.PlanFilter{
		Statuses:        domain.ClientVisibleStatuses,
		StartOnOrBefore: &horizon,
	})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, unset, plans[0].ID)
	assert.Equal(t, started, plans[1].ID)
}

func TestSessionRepo_CreateIfAbsentAndTransition(t *testing.T) {
	repos, shutdown := testRepoSetup(t)
	defer shutdown()
	ctx := context.Background()

	clientID, planID := primitive.NewObjectID(), primitive.NewObjectID()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repos.Sessions.CreateIfAbsent(ctx, &domain.WorkoutSession{
				ClientID: clientID, PlanID: planID, ScheduledDate: date, Status: domain.SessionScheduled,
			})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)

	sessions, err := repos.Sessions.ListByClient(ctx, clientID, repository.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	ws := sessions[0]

	startedAt := time.Now().UTC()
	moved, err := repos.Sessions.Transition(ctx, ws.ID, domain.SessionScheduled, domain.SessionInProgress,
		domain.SessionChange{StartedAt: &startedAt})
	require.NoError(t, err)
	assert.Equal(t, domain.SessionInProgress, moved.Status)
	require.NotNil(t, moved.StartedAt)

	_, err = repos.Sessions.Transition(ctx, ws.ID, domain.SessionScheduled, domain.SessionInProgress, domain.SessionChange{})
	assert.ErrorIs(t, err, repository.ErrStatusMismatch)
}

func TestFeedbackRepo_UpsertMergesFields(t *testing.T) {
	repos, shutdown := testRepoSetup(t)
	defer shutdown()
	ctx := context.Background()

	sessionID, exerciseID := primitive.NewObjectID(), primitive.NewObjectID()
	done := true
	note := "felt heavy"
	_, err := repos.Feedback.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Completed: &done})
	require.NoError(t, err)
	f, err := repos.Feedback.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Feedback: &note})
	require.NoError(t, err)
	assert.True(t, f.Completed)
	assert.Equal(t, note, f.Feedback)

	all, err := repos.Feedback.GetBySessionID(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
