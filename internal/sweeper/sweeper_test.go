package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/metrics"
	"fittrainer/pro/internal/repository/memory"
	"fittrainer/pro/internal/service"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"
	"go.uber.org/multierr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) ExpireOverduePlans(context.Context, primitive.ObjectID, time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

type failingMarker struct{}

func (failingMarker) MarkOverdue(context.Context, time.Time) (int64, error) {
	return 0, errors.New("invoices offline")
}

func TestSweeper_SweepOnce(t *testing.T) {
	repos := memory.NewRepositories()
	m := metrics.NewTestManager()
	opts := service.Options{Metrics: m, Now: func() time.Time { return today.Add(8 * time.Hour) }}
	ctx := context.Background()

	coachID, clientID := primitive.NewObjectID(), primitive.NewObjectID()
	start, end := domain.AddDays(today, -14), domain.AddDays(today, -1)
	plan := &domain.TrainingPlan{
		CoachID: coachID, ClientID: clientID, Name: "Base block", Duration: "2 weeks",
		Status: domain.PlanActive, StartDate: &start, EndDate: &end,
	}
	_, err := repos.Plans.Create(ctx, plan)
	require.NoError(t, err)
	_, err = repos.Invoices.Create(ctx, &domain.Invoice{
		CoachID: coachID, ClientID: clientID, Amount: 99, Status: domain.InvoicePending, DueDate: domain.AddDays(today, -5),
	})
	require.NoError(t, err)
	_, _, err = repos.Sessions.CreateIfAbsent(ctx, &domain.WorkoutSession{
		ClientID: clientID, PlanID: plan.ID, ScheduledDate: domain.AddDays(today, -2), Status: domain.SessionScheduled,
	})
	require.NoError(t, err)

	s := New(Params{
		Plans:    service.NewPlanService(repos, opts),
		Invoices: service.NewInvoiceService(repos, opts),
		Sessions: service.NewSessionService(repos, service.PolicySingle, opts),
		Metrics:  m,
	})

	res, err := s.SweepOnce(ctx, today.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{PlansExpired: 1, InvoicesOverdue: 1, SessionsSkipped: 1}, res)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterSweeperRuns.WithLabelValues("ok")))

	res, err = s.SweepOnce(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSweeper_AsOfKeepsLastDayForClientsBehind(t *testing.T) {
	repos := memory.NewRepositories()
	ctx := context.Background()
	now := time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	opts := service.Options{Metrics: metrics.NewTestManager(), Now: clock}

	client := &domain.User{Name: "West", Email: "west@example.com", Role: domain.RoleClient, Timezone: "America/Los_Angeles"}
	_, err := repos.Users.Create(ctx, client)
	require.NoError(t, err)
	start, end := domain.AddDays(today, -13), today
	plan := &domain.TrainingPlan{
		CoachID: primitive.NewObjectID(), ClientID: client.ID, Name: "Base block", Duration: "2 weeks",
		Status: domain.PlanActive, StartDate: &start, EndDate: &end,
	}
	_, err = repos.Plans.Create(ctx, plan)
	require.NoError(t, err)

	s := New(Params{
		Plans:    service.NewPlanService(repos, opts),
		Invoices: service.NewInvoiceService(repos, opts),
		Now:      clock,
	})

	// 02:00 UTC on the 11th is still the 10th in Los Angeles
	assert.Equal(t, today, s.AsOf())
	res, err := s.SweepOnce(ctx, s.AsOf())
	require.NoError(t, err)
	assert.Zero(t, res.PlansExpired)

	clientToday, err := service.NewProfileService(repos.Users, nil, opts).Today(ctx, client.ID)
	require.NoError(t, err)
	require.Equal(t, today, clientToday)
	ws, err := service.NewSessionService(repos, service.PolicySingle, opts).EnsureTodaysSession(ctx, client.ID, clientToday)
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, plan.ID, ws.PlanID)

	// once the 11th has begun everywhere the plan is over for every client
	now = time.Date(2025, 3, 11, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.AddDays(today, 1), s.AsOf())
	res, err = s.SweepOnce(ctx, s.AsOf())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.PlansExpired)

	stored, err := repos.Plans.GetByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, stored.Status)
}

func TestSweeper_SweepOnceCombinesErrors(t *testing.T) {
	m := metrics.NewTestManager()
	plans := &countingExpirer{err: errors.New("plans offline")}
	s := New(Params{Plans: plans, Invoices: failingMarker{}, Metrics: m})

	_, err := s.SweepOnce(context.Background(), today)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, int32(1), plans.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterSweeperRuns.WithLabelValues("error")))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	plans := &countingExpirer{}
	repos := memory.NewRepositories()
	s := New(Params{
		Plans:    plans,
		Invoices: service.NewInvoiceService(repos, service.Options{}),
		Interval: 5 * time.Millisecond,
		Now:      func() time.Time { return today },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool { return plans.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
