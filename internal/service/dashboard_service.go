package service

import (
	"context"
	"sort"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	recentSessionsLimit = 4
	coachListLimit      = 5
)

type ClientDashboard struct {
	CurrentPlan       *domain.TrainingPlan    `json:"currentPlan,omitempty"`
	PlanProgress      int                     `json:"planProgress"`
	TimeRemaining     *domain.TimeRemaining   `json:"timeRemaining,omitempty"`
	ActivePlans       int                     `json:"activePlans"`
	CompletedPlans    int                     `json:"completedPlans"`
	CompletedWorkouts int64                   `json:"completedWorkouts"`
	RecentSessions    []domain.WorkoutSession `json:"recentSessions"`
}

type CoachDashboard struct {
	Clients int `json:"clients"`
	// ActiveClients counts distinct clients with at least one Active plan.
	ActiveClients     int               `json:"activeClients"`
	ActivePlans       int               `json:"activePlans"`
	CompletedWorkouts int64             `json:"completedWorkouts"`
	PendingInvoices   int64             `json:"pendingInvoices"`
	OverdueInvoices   int64             `json:"overdueInvoices"`
	RecentClients     []ClientSummary   `json:"recentClients"`
	UpcomingSessions  []UpcomingSession `json:"upcomingSessions"`
}

type ClientSummary struct {
	ID        primitive.ObjectID `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	CreatedAt time.Time          `json:"createdAt"`
}

// UpcomingSession is an open session with the names a coach needs to recognise it.
type UpcomingSession struct {
	domain.WorkoutSession
	ClientName string `json:"clientName,omitempty"`
	PlanName   string `json:"planName,omitempty"`
}

type DashboardService interface {
	// ClientDashboard expires the client's overdue plans before summarising.
	ClientDashboard(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (*ClientDashboard, error)
	// CoachDashboard lists open sessions scheduled on or after asOf.
	CoachDashboard(ctx context.Context, coachID primitive.ObjectID, asOf time.Time) (*CoachDashboard, error)
}

type dashboardService struct {
	base
	plans       PlanService
	userRepo    repository.UserRepository
	planRepo    repository.TrainingPlanRepository
	sessionRepo repository.SessionRepository
	invoiceRepo repository.InvoiceRepository
}

func NewDashboardService(repos *repository.Repositories, plans PlanService, opts Options) DashboardService {
	return &dashboardService{
		base:        newBase(opts),
		plans:       plans,
		userRepo:    repos.Users,
		planRepo:    repos.Plans,
		sessionRepo: repos.Sessions,
		invoiceRepo: repos.Invoices,
	}
}

func (s *dashboardService) ClientDashboard(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (*ClientDashboard, error) {
	if _, err := s.plans.ExpireOverduePlans(ctx, clientID, asOf); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	visible, err := listVisiblePlans(ctx, s.planRepo, clientID, asOf)
	if err != nil {
		return nil, err
	}
	completed, err := s.sessionRepo.CountByClient(ctx, clientID, domain.SessionCompleted)
	if err != nil {
		return nil, storeFailure("count sessions", err)
	}
	recent, err := s.sessionRepo.ListByClient(ctx, clientID, repository.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionCompleted},
		Limit:    recentSessionsLimit,
	})
	if err != nil {
		return nil, storeFailure("list recent sessions", err)
	}

	dash := &ClientDashboard{CompletedWorkouts: completed, RecentSessions: recent}
	for _, p := range visible {
		switch p.Status {
		case domain.PlanActive:
			dash.ActivePlans++
		case domain.PlanCompleted:
			dash.CompletedPlans++
		}
	}

	if current := domain.CurrentPlan(visible, asOf); current != nil {
		dash.CurrentPlan = current
		dash.TimeRemaining = domain.PlanTimeRemaining(current, asOf)
		done, err := s.sessionRepo.CountByPlan(ctx, current.ID, domain.SessionCompleted)
		if err != nil {
			return nil, storeFailure("count plan sessions", err)
		}
		client, err := loadUser(ctx, s.userRepo, clientID)
		if err != nil {
			return nil, err
		}
		estimated := domain.EstimatedTotalSessions(current, client.WeeklyTarget())
		dash.PlanProgress = domain.PlanProgressPercent(current, int(done), estimated, asOf)
	}
	return dash, nil
}

func (s *dashboardService) CoachDashboard(ctx context.Context, coachID primitive.ObjectID, asOf time.Time) (*CoachDashboard, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	clients, err := s.userRepo.GetClientsByCoachID(ctx, coachID)
	if err != nil {
		return nil, storeFailure("list clients", err)
	}
	plans, err := s.planRepo.GetByCoachID(ctx, coachID)
	if err != nil {
		return nil, storeFailure("list plans", err)
	}

	dash := &CoachDashboard{Clients: len(clients)}
	activeClients := make(map[primitive.ObjectID]bool)
	planNames := make(map[primitive.ObjectID]string, len(plans))
	planIDs := make([]primitive.ObjectID, 0, len(plans))
	for _, p := range plans {
		planNames[p.ID] = p.Name
		planIDs = append(planIDs, p.ID)
		if p.Status == domain.PlanActive {
			dash.ActivePlans++
			activeClients[p.ClientID] = true
		}
	}
	dash.ActiveClients = len(activeClients)

	clientNames := make(map[primitive.ObjectID]string, len(clients))
	for _, c := range clients {
		clientNames[c.ID] = c.Name
		n, err := s.sessionRepo.CountByClient(ctx, c.ID, domain.SessionCompleted)
		if err != nil {
			return nil, storeFailure("count sessions", err)
		}
		dash.CompletedWorkouts += n
	}
	if dash.PendingInvoices, err = s.invoiceRepo.CountByCoach(ctx, coachID, domain.InvoicePending); err != nil {
		return nil, storeFailure("count invoices", err)
	}
	if dash.OverdueInvoices, err = s.invoiceRepo.CountByCoach(ctx, coachID, domain.InvoiceOverdue); err != nil {
		return nil, storeFailure("count invoices", err)
	}

	dash.RecentClients = newestClients(clients, coachListLimit)

	upcoming, err := s.sessionRepo.ListUpcoming(ctx, planIDs, asOf, coachListLimit)
	if err != nil {
		return nil, storeFailure("list upcoming sessions", err)
	}
	dash.UpcomingSessions = make([]UpcomingSession, 0, len(upcoming))
	for _, ws := range upcoming {
		dash.UpcomingSessions = append(dash.UpcomingSessions, UpcomingSession{
			WorkoutSession: ws,
			ClientName:     clientNames[ws.ClientID],
			PlanName:       planNames[ws.PlanID],
		})
	}
	return dash, nil
}

func newestClients(clients []domain.User, limit int) []ClientSummary {
	sorted := make([]domain.User, len(clients))
	copy(sorted, clients)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]ClientSummary, 0, len(sorted))
	for _, u := range sorted {
		out = append(out, ClientSummary{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	return out
}
