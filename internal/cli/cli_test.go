package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"fittrainer/pro/internal/app"
	"fittrainer/pro/internal/config"
	"fittrainer/pro/internal/domain"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testCLI struct {
	Sweep    SweepCmd    `cmd:""`
	Plans    PlansCmd    `cmd:""`
	Progress ProgressCmd `cmd:""`
	Today    TodayCmd    `cmd:""`
}

type seeded struct {
	coach, client primitive.ObjectID
	plan          *domain.TrainingPlan
}

func newTestContext(t *testing.T) (*Context, *bytes.Buffer, seeded) {
	t.Helper()
	cfg := config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Metrics:  config.MetricsConfig{Namespace: "fittrainer"},
		Store:    config.StoreConfig{Timeout: time.Second},
		Sessions: config.SessionsConfig{MaterializationPolicy: config.PolicySingle, DefaultTimezone: "UTC"},
		Sweeper:  config.SweeperConfig{Interval: time.Hour, SkipStaleSessions: true},
	}
	a, err := app.New(context.Background(), cfg)
	require.NoError(t, err)

	ctx := context.Background()
	coach := &domain.User{Name: "Coach", Email: "coach@example.com", Role: domain.RoleCoach}
	_, err = a.Repos.Users.Create(ctx, coach)
	require.NoError(t, err)
	client := &domain.User{Name: "Client", Email: "client@example.com", Role: domain.RoleClient}
	_, err = a.Repos.Users.Create(ctx, client)
	require.NoError(t, err)
	require.NoError(t, a.Repos.Users.SetCoachForClient(ctx, client.ID, coach.ID))

	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := domain.AddDays(start, 14)
	plan := &domain.TrainingPlan{
		CoachID:   coach.ID,
		ClientID:  client.ID,
		Name:      "Base",
		Duration:  "2 weeks",
		Status:    domain.PlanActive,
		StartDate: &start,
		EndDate:   &end,
	}
	_, err = a.Repos.Plans.Create(ctx, plan)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &Context{Ctx: ctx, App: a, Out: out}, out, seeded{coach: coach.ID, client: client.ID, plan: plan}
}

func run(t *testing.T, cctx *Context, args ...string) error {
	t.Helper()
	var model testCLI
	parser, err := kong.New(&model, kong.Name("fitctl"))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx.Run(cctx)
}

func TestPlansAndToday(t *testing.T) {
	cctx, out, s := newTestContext(t)

	require.NoError(t, run(t, cctx, "plans", s.client.Hex(), "--as-of", "2025-03-05"))
	assert.Contains(t, out.String(), "*")
	assert.Contains(t, out.String(), "Base")
	assert.Contains(t, out.String(), "2025-03-17")

	out.Reset()
	require.NoError(t, run(t, cctx, "today", s.client.Hex(), "--as-of", "2025-03-05"))
	assert.Contains(t, out.String(), "on 2025-03-05: In Progress")

	out.Reset()
	require.NoError(t, run(t, cctx, "today", s.client.Hex(), "--as-of", "2025-02-01"))
	assert.Equal(t, "no active plan applies\n", out.String())
}

func TestProgress(t *testing.T) {
	cctx, out, s := newTestContext(t)

	require.NoError(t, run(t, cctx, "progress", s.plan.ID.Hex(), "--coach", s.coach.Hex(), "--as-of", "2025-03-10"))
	assert.Contains(t, out.String(), "Base: ")
	assert.Contains(t, out.String(), "7 days left")

	err := run(t, cctx, "progress", s.plan.ID.Hex(), "--coach", primitive.NewObjectID().Hex())
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	cctx, out, s := newTestContext(t)

	require.NoError(t, run(t, cctx, "sweep", "--as-of", "2025-03-20"))
	assert.Contains(t, out.String(), "1 plans expired")

	stored, err := cctx.App.Repos.Plans.GetByID(context.Background(), s.plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCompleted, stored.Status)
}

func TestBadArguments(t *testing.T) {
	cctx, _, _ := newTestContext(t)

	assert.Error(t, run(t, cctx, "plans", "nope"))
	assert.Error(t, run(t, cctx, "sweep", "--as-of", "03/20/2025"))
}

func TestTodayUsesClientCalendar(t *testing.T) {
	cctx, out, s := newTestContext(t)
	client, err := cctx.App.Repos.Users.GetByID(cctx.Ctx, s.client)
	require.NoError(t, err)
	client.Timezone = "America/Los_Angeles"
	require.NoError(t, cctx.App.Repos.Users.UpdateProfile(cctx.Ctx, client))
	cctx.Now = func() time.Time { return time.Date(2025, 3, 17, 3, 0, 0, 0, time.UTC) }

	require.NoError(t, run(t, cctx, "today", s.client.Hex()))
	assert.Contains(t, out.String(), "on 2025-03-16: In Progress")
}
