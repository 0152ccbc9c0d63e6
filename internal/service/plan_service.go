package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanInput is the coach-editable part of a plan.
type PlanInput struct {
	ClientID          primitive.ObjectID
	Name              string
	Description       string
	Duration          string
	Status            domain.PlanStatus
	Difficulty        domain.Difficulty
	EstimatedDuration int
	StartDate         *time.Time
	EndDate           *time.Time

	// InvoiceAmount > 0 bills the client for the plan on creation.
	InvoiceAmount float64
	SessionsCount int
}

// PlanItemInput is one line of the plan builder.
type PlanItemInput struct {
	ExerciseID  primitive.ObjectID
	Sets        int
	Reps        int
	Weight      float64
	TimeMinutes int
	RestSeconds int
	Tempo       string
	Notes       string
}

// BuilderInput is a full save from the plan builder: plan details plus the ordered items.
type BuilderInput struct {
	Name              string
	Description       string
	Duration          string
	Difficulty        domain.Difficulty
	EstimatedDuration int
	StartDate         *time.Time
	Items             []PlanItemInput
}

// PlanCreated is returned by CreatePlan. Invoice is nil when none was requested or its
// creation failed.
type PlanCreated struct {
	Plan    *domain.TrainingPlan `json:"plan"`
	Invoice *domain.Invoice      `json:"invoice,omitempty"`
}

// PlanItem joins a plan line with its exercise. Exercise is nil when it was deleted.
type PlanItem struct {
	domain.PlanExercise
	Exercise *domain.Exercise `json:"exercise,omitempty"`
}

type PlanDetail struct {
	Plan  *domain.TrainingPlan `json:"plan"`
	Items []PlanItem           `json:"items"`
}

type PlanProgressReport struct {
	Plan              *domain.TrainingPlan  `json:"plan"`
	CompletedSessions int                   `json:"completedSessions"`
	EstimatedSessions int                   `json:"estimatedSessions"`
	Percent           int                   `json:"percent"`
	TimeRemaining     *domain.TimeRemaining `json:"timeRemaining,omitempty"`
}

type PlanService interface {
	CreatePlan(ctx context.Context, coachID primitive.ObjectID, in PlanInput) (*PlanCreated, error)
	UpdatePlan(ctx context.Context, coachID, planID primitive.ObjectID, in PlanInput) (*domain.TrainingPlan, error)
	SavePlanBuilder(ctx context.Context, coachID, planID primitive.ObjectID, in BuilderInput) (*PlanDetail, error)
	DeletePlan(ctx context.Context, coachID, planID primitive.ObjectID) error
	// GetPlan checks client visibility against asOf, the client's calendar date.
	GetPlan(ctx context.Context, actor Actor, planID primitive.ObjectID, asOf time.Time) (*PlanDetail, error)
	GetPlansByCoach(ctx context.Context, coachID primitive.ObjectID, clientID *primitive.ObjectID) ([]domain.TrainingPlan, error)

	// VisiblePlans lists the client's Active and Completed plans starting within the
	// visibility window, unset start dates first.
	VisiblePlans(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) ([]domain.TrainingPlan, error)
	CurrentPlan(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (*domain.TrainingPlan, error)
	// ExpireOverduePlans completes Active plans whose end date is before asOf.
	// primitive.NilObjectID expires plans of every client.
	ExpireOverduePlans(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error)
	PlanProgress(ctx context.Context, actor Actor, planID primitive.ObjectID, asOf time.Time) (*PlanProgressReport, error)
}

type planService struct {
	base
	userRepo         repository.UserRepository
	planRepo         repository.TrainingPlanRepository
	planExerciseRepo repository.PlanExerciseRepository
	exerciseRepo     repository.ExerciseRepository
	sessionRepo      repository.SessionRepository
	invoiceRepo      repository.InvoiceRepository
}

func NewPlanService(repos *repository.Repositories, opts Options) PlanService {
	return &planService{
		base:             newBase(opts),
		userRepo:         repos.Users,
		planRepo:         repos.Plans,
		planExerciseRepo: repos.PlanExercises,
		exerciseRepo:     repos.Exercises,
		sessionRepo:      repos.Sessions,
		invoiceRepo:      repos.Invoices,
	}
}

// CreatePlan creates a plan for a managed client, Active unless told otherwise. An end date
// is derived from start date and duration when not given.
func (s *planService) CreatePlan(ctx context.Context, coachID primitive.ObjectID, in PlanInput) (*PlanCreated, error) {
	if in.Status == "" {
		in.Status = domain.PlanActive
	}
	if err := validatePlanInput(&in); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := loadClientOf(ctx, s.userRepo, coachID, in.ClientID); err != nil {
		return nil, err
	}

	plan := &domain.TrainingPlan{
		CoachID:           coachID,
		ClientID:          in.ClientID,
		Name:              in.Name,
		Description:       in.Description,
		Duration:          in.Duration,
		Status:            in.Status,
		Difficulty:        in.Difficulty,
		EstimatedDuration: in.EstimatedDuration,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
	}
	fillEndDate(plan)

	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		return nil, storeFailure("create plan", err)
	}
	plan.ID = planID

	created := &PlanCreated{Plan: plan}
	if in.InvoiceAmount > 0 {
		invoice := &domain.Invoice{
			CoachID:       coachID,
			ClientID:      in.ClientID,
			PlanID:        &planID,
			Amount:        in.InvoiceAmount,
			SessionsCount: in.SessionsCount,
			Description:   "Training plan: " + plan.Name,
			Status:        domain.InvoicePending,
			DueDate:       domain.PlanInvoiceDueDate(plan, s.now()),
		}
		if invoice.SessionsCount <= 0 {
			invoice.SessionsCount = domain.EstimatedTotalSessions(plan, 0)
		}
		// the plan stands even if billing fails
		if invoiceID, err := s.invoiceRepo.Create(ctx, invoice); err != nil {
			log.WithError(err).WithField("plan_id", planID.Hex()).Error("plan created but invoice creation failed")
		} else {
			invoice.ID = invoiceID
			created.Invoice = invoice
		}
	}

	log.WithFields(log.Fields{
		"coach_id":  coachID.Hex(),
		"client_id": in.ClientID.Hex(),
		"plan_id":   planID.Hex(),
	}).Info("training plan created")
	return created, nil
}

func (s *planService) UpdatePlan(ctx context.Context, coachID, planID primitive.ObjectID, in PlanInput) (*domain.TrainingPlan, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	plan, err := loadPlanFor(ctx, s.planRepo, CoachActor(coachID), planID)
	if err != nil {
		return nil, err
	}
	in.ClientID = plan.ClientID
	if in.Status == "" {
		in.Status = plan.Status
	}
	if err := validatePlanInput(&in); err != nil {
		return nil, err
	}

	plan.Name = in.Name
	plan.Description = in.Description
	plan.Duration = in.Duration
	plan.Status = in.Status
	plan.Difficulty = in.Difficulty
	plan.EstimatedDuration = in.EstimatedDuration
	plan.StartDate = in.StartDate
	plan.EndDate = in.EndDate
	fillEndDate(plan)

	if err := s.planRepo.Update(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, storeFailure("update plan", err)
	}
	return plan, nil
}

// SavePlanBuilder rewrites plan details, recomputes the end date from the start date and
// duration, and swaps in the new exercise list in one step.
func (s *planService) SavePlanBuilder(ctx context.Context, coachID, planID primitive.ObjectID, in BuilderInput) (*PlanDetail, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	weeks, ok := domain.ParseDurationWeeks(in.Duration)
	if !ok || weeks <= 0 {
		return nil, ErrInvalidDuration
	}
	if !in.Difficulty.Valid() {
		return nil, invalid("difficulty", "unknown value "+string(in.Difficulty))
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	plan, err := loadPlanFor(ctx, s.planRepo, CoachActor(coachID), planID)
	if err != nil {
		return nil, err
	}

	exercises, err := s.coachExercises(ctx, coachID, in.Items)
	if err != nil {
		return nil, err
	}

	plan.Name = in.Name
	plan.Description = in.Description
	plan.Duration = in.Duration
	plan.Difficulty = in.Difficulty
	plan.EstimatedDuration = in.EstimatedDuration
	if in.StartDate != nil {
		plan.StartDate = domain.DatePtr(*in.StartDate)
	}
	plan.EndDate = nil
	fillEndDate(plan)

	if err := s.planRepo.Update(ctx, plan); err != nil {
		return nil, storeFailure("update plan", err)
	}

	items := make([]domain.PlanExercise, 0, len(in.Items))
	for i, it := range in.Items {
		items = append(items, domain.PlanExercise{
			ExerciseID:  it.ExerciseID,
			Sets:        it.Sets,
			Reps:        it.Reps,
			Weight:      it.Weight,
			TimeMinutes: it.TimeMinutes,
			RestSeconds: it.RestSeconds,
			Tempo:       it.Tempo,
			Notes:       it.Notes,
			OrderIndex:  i,
		})
	}
	if err := s.planExerciseRepo.ReplaceForPlan(ctx, planID, items); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, storeFailure("replace plan exercises", err)
	}

	stored, err := s.planExerciseRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, storeFailure("get plan exercises", err)
	}
	detail := &PlanDetail{Plan: plan, Items: make([]PlanItem, 0, len(stored))}
	for _, it := range stored {
		detail.Items = append(detail.Items, PlanItem{PlanExercise: it, Exercise: exercises[it.ExerciseID]})
	}
	log.WithFields(log.Fields{"plan_id": planID.Hex(), "items": len(stored)}).Info("plan builder saved")
	return detail, nil
}

// coachExercises checks that every item references an exercise of the coach's library.
func (s *planService) coachExercises(ctx context.Context, coachID primitive.ObjectID, items []PlanItemInput) (map[primitive.ObjectID]*domain.Exercise, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, it := range items {
		if it.ExerciseID == primitive.NilObjectID {
			return nil, invalid("items", "exercise id is required")
		}
		if it.Sets < 0 || it.Reps < 0 || it.Weight < 0 || it.TimeMinutes < 0 || it.RestSeconds < 0 {
			return nil, invalid("items", "negative values are not allowed")
		}
		ids = append(ids, it.ExerciseID)
	}
	found, err := s.exerciseRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeFailure("get exercises", err)
	}
	byID := make(map[primitive.ObjectID]*domain.Exercise, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	for _, id := range ids {
		ex, ok := byID[id]
		if !ok {
			return nil, ErrExerciseNotFound
		}
		if ex.CoachID != coachID {
			return nil, ErrExerciseAccessDenied
		}
	}
	return byID, nil
}

func (s *planService) DeletePlan(ctx context.Context, coachID, planID primitive.ObjectID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := loadPlanFor(ctx, s.planRepo, CoachActor(coachID), planID); err != nil {
		return err
	}
	if err := s.planRepo.Delete(ctx, planID, coachID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPlanNotFound
		}
		return storeFailure("delete plan", err)
	}
	return nil
}

// GetPlan returns the plan with its ordered items. Clients only see plans that are visible to them on asOf.
func (s *planService) GetPlan(ctx context.Context, actor Actor, planID primitive.ObjectID, asOf time.Time) (*PlanDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	plan, err := loadPlanFor(ctx, s.planRepo, actor, planID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleClient && !plan.IsClientVisible(asOf) {
		return nil, ErrPlanNotFound
	}

	items, err := s.planExerciseRepo.GetByPlanID(ctx, planID)
	if err != nil {
		return nil, storeFailure("get plan exercises", err)
	}
	exercises, err := s.exerciseRepo.GetByIDs(ctx, domain.PlanExerciseIDs(items))
	if err != nil {
		return nil, storeFailure("get exercises", err)
	}
	byID := make(map[primitive.ObjectID]*domain.Exercise, len(exercises))
	for i := range exercises {
		byID[exercises[i].ID] = &exercises[i]
	}

	detail := &PlanDetail{Plan: plan, Items: make([]PlanItem, 0, len(items))}
	for _, it := range items {
		detail.Items = append(detail.Items, PlanItem{PlanExercise: it, Exercise: byID[it.ExerciseID]})
	}
	return detail, nil
}

func (s *planService) GetPlansByCoach(ctx context.Context, coachID primitive.ObjectID, clientID *primitive.ObjectID) ([]domain.TrainingPlan, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var (
		plans []domain.TrainingPlan
		err   error
	)
	if clientID != nil {
		if _, err := loadClientOf(ctx, s.userRepo, coachID, *clientID); err != nil {
			return nil, err
		}
		plans, err = s.planRepo.GetByClientAndCoachID(ctx, *clientID, coachID)
	} else {
		plans, err = s.planRepo.GetByCoachID(ctx, coachID)
	}
	if err != nil {
		return nil, storeFailure("list plans", err)
	}
	return plans, nil
}

func (s *planService) VisiblePlans(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) ([]domain.TrainingPlan, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return listVisiblePlans(ctx, s.planRepo, clientID, asOf)
}

func (s *planService) CurrentPlan(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (*domain.TrainingPlan, error) {
	plans, err := s.VisiblePlans(ctx, clientID, asOf)
	if err != nil {
		return nil, err
	}
	return domain.CurrentPlan(plans, asOf), nil
}

func (s *planService) ExpireOverduePlans(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.planRepo.CompleteExpired(ctx, clientID, domain.NormalizeDate(asOf))
	if err != nil {
		return 0, storeFailure("expire plans", err)
	}
	if n > 0 {
		s.opts.Metrics.CounterPlansExpired.Add(float64(n))
		log.WithFields(log.Fields{"count": n, "as_of": asOf.Format(domain.DateLayout)}).Info("expired overdue plans")
	}
	return n, nil
}

func (s *planService) PlanProgress(ctx context.Context, actor Actor, planID primitive.ObjectID, asOf time.Time) (*PlanProgressReport, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	plan, err := loadPlanFor(ctx, s.planRepo, actor, planID)
	if err != nil {
		return nil, err
	}
	completed, err := s.sessionRepo.CountByPlan(ctx, planID, domain.SessionCompleted)
	if err != nil {
		return nil, storeFailure("count sessions", err)
	}
	client, err := s.userRepo.GetByID(ctx, plan.ClientID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeFailure("get client", err)
	}

	estimated := domain.EstimatedTotalSessions(plan, client.WeeklyTarget())
	return &PlanProgressReport{
		Plan:              plan,
		CompletedSessions: int(completed),
		EstimatedSessions: estimated,
		Percent:           domain.PlanProgressPercent(plan, int(completed), estimated, asOf),
		TimeRemaining:     domain.PlanTimeRemaining(plan, asOf),
	}, nil
}

func validatePlanInput(in *PlanInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.ClientID == primitive.NilObjectID {
		return invalid("clientId", "is required")
	}
	if weeks, ok := domain.ParseDurationWeeks(in.Duration); !ok || weeks <= 0 {
		return ErrInvalidDuration
	}
	if !in.Status.Valid() {
		return invalid("status", "unknown value "+string(in.Status))
	}
	if !in.Difficulty.Valid() {
		return invalid("difficulty", "unknown value "+string(in.Difficulty))
	}
	if in.EstimatedDuration < 0 {
		return invalid("estimatedDuration", "must not be negative")
	}
	if in.InvoiceAmount < 0 {
		return invalid("invoiceAmount", "must not be negative")
	}
	if in.StartDate != nil {
		in.StartDate = domain.DatePtr(*in.StartDate)
	}
	if in.EndDate != nil {
		in.EndDate = domain.DatePtr(*in.EndDate)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return invalid("endDate", "is before startDate")
	}
	return nil
}

func fillEndDate(plan *domain.TrainingPlan) {
	if plan.EndDate != nil || plan.StartDate == nil {
		return
	}
	if end, ok := domain.PlanEndDate(*plan.StartDate, plan.Duration); ok {
		plan.EndDate = &end
	}
}
