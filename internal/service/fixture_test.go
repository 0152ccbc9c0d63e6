package service

import (
	"context"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/metrics"
	"fittrainer/pro/internal/repository"
	"fittrainer/pro/internal/repository/memory"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fixture is a coach with one managed client on top of the memory store and a settable clock.
type fixture struct {
	repos   *repository.Repositories
	metrics *metrics.Manager
	opts    Options
	now     time.Time

	coach  *domain.User
	client *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos:   memory.NewRepositories(),
		metrics: metrics.NewTestManager(),
		now:     time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.opts = Options{
		StoreTimeout: time.Second,
		Now:          func() time.Time { return f.now },
		Metrics:      f.metrics,
	}
	f.coach = f.addUser(t, domain.RoleCoach)
	f.client = f.addClientOf(t, f.coach)
	return f
}

func (f *fixture) today() time.Time {
	return domain.NormalizeDate(f.now)
}

func (f *fixture) day(offset int) *time.Time {
	d := domain.AddDays(f.now, offset)
	return &d
}

func (f *fixture) addUser(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{
		Name:  gofakeit.Name(),
		Email: gofakeit.Email(),
		Role:  role,
	}
	_, err := f.repos.Users.Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

func (f *fixture) addClientOf(t *testing.T, coach *domain.User) *domain.User {
	t.Helper()
	ctx := context.Background()
	client := f.addUser(t, domain.RoleClient)
	require.NoError(t, f.repos.Users.AddClientIDToCoach(ctx, coach.ID, client.ID))
	require.NoError(t, f.repos.Users.SetCoachForClient(ctx, client.ID, coach.ID))
	client.CoachID = &coach.ID
	return client
}

// addPlan stores a plan for the fixture client. start is a day offset from today, nil for unset.
func (f *fixture) addPlan(t *testing.T, status domain.PlanStatus, start *int, duration string) *domain.TrainingPlan {
	t.Helper()
	plan := &domain.TrainingPlan{
		CoachID:  f.coach.ID,
		ClientID: f.client.ID,
		Name:     gofakeit.Sentence(3),
		Duration: duration,
		Status:   status,
	}
	if start != nil {
		plan.StartDate = f.day(*start)
		if end, ok := domain.PlanEndDate(*plan.StartDate, duration); ok {
			plan.EndDate = &end
		}
	}
	_, err := f.repos.Plans.Create(context.Background(), plan)
	require.NoError(t, err)
	return plan
}

func (f *fixture) addExercises(t *testing.T, coachID primitive.ObjectID, n int, typ domain.ExerciseType) []domain.Exercise {
	t.Helper()
	out := make([]domain.Exercise, 0, n)
	for i := 0; i < n; i++ {
		ex := domain.Exercise{CoachID: coachID, Name: gofakeit.Word(), Type: typ}
		_, err := f.repos.Exercises.Create(context.Background(), &ex)
		require.NoError(t, err)
		out = append(out, ex)
	}
	return out
}

func (f *fixture) setItems(t *testing.T, planID primitive.ObjectID, exercises []domain.Exercise) {
	t.Helper()
	items := make([]domain.PlanExercise, 0, len(exercises))
	for i, ex := range exercises {
		items = append(items, domain.PlanExercise{ExerciseID: ex.ID, Sets: 3, Reps: 10, OrderIndex: i})
	}
	require.NoError(t, f.repos.PlanExercises.ReplaceForPlan(context.Background(), planID, items))
}

func (f *fixture) addSession(t *testing.T, planID primitive.ObjectID, offset int, status domain.SessionStatus) *domain.WorkoutSession {
	t.Helper()
	ws, created, err := f.repos.Sessions.CreateIfAbsent(context.Background(), &domain.WorkoutSession{
		ClientID:      f.client.ID,
		PlanID:        planID,
		ScheduledDate: *f.day(offset),
		Status:        status,
	})
	require.NoError(t, err)
	require.True(t, created)
	return ws
}

func days(n int) *int { return &n }
