package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaterializationPolicy decides how many sessions are opened for a client's day.
type MaterializationPolicy string

const (
	// PolicySingle opens one session for the earliest-starting Active plan.
	PolicySingle MaterializationPolicy = "single"
	// PolicyPerPlan opens one session per eligible Active plan.
	PolicyPerPlan MaterializationPolicy = "per_plan"
)

// Performance is what a client actually did for an exercise. Nil fields are left unchanged.
type Performance struct {
	Sets   *int
	Reps   *int
	Weight *float64
}

// SessionItem is a plan line with the client's feedback for it in this session.
type SessionItem struct {
	PlanItem
	Feedback *domain.ExerciseFeedback `json:"feedback,omitempty"`
}

type SessionDetail struct {
	Session *domain.WorkoutSession `json:"session"`
	Plan    *domain.TrainingPlan   `json:"plan"`
	Items   []SessionItem          `json:"items"`
}

// HistoryEntry is a completed session with the feedback recorded during it.
type HistoryEntry struct {
	Session  domain.WorkoutSession    `json:"session"`
	PlanName string                   `json:"planName"`
	Feedback []domain.ExerciseFeedback `json:"feedback"`
}

type SessionService interface {
	// EnsureTodaysSession returns the client's session for asOf, opening it when needed.
	// It returns nil, nil when no Active plan applies.
	EnsureTodaysSession(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (*domain.WorkoutSession, error)
	StartSession(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error)
	CompleteSession(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error)
	SkipSession(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error)

	SetExerciseCompleted(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, completed bool) (*domain.ExerciseFeedback, error)
	ToggleExerciseCompleted(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseFeedback, error)
	SaveExerciseFeedback(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, text string) (*domain.ExerciseFeedback, error)
	LogExercisePerformance(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, perf Performance) (*domain.ExerciseFeedback, error)

	GetSessionDetail(ctx context.Context, actor Actor, sessionID primitive.ObjectID) (*SessionDetail, error)
	SessionHistory(ctx context.Context, actor Actor, clientID primitive.ObjectID, limit int64) ([]HistoryEntry, error)
	// SkipStaleSessions marks Scheduled sessions dated before asOf as Skipped.
	SkipStaleSessions(ctx context.Context, asOf time.Time) (int64, error)
}

type sessionService struct {
	base
	policy           MaterializationPolicy
	userRepo         repository.UserRepository
	planRepo         repository.TrainingPlanRepository
	planExerciseRepo repository.PlanExerciseRepository
	exerciseRepo     repository.ExerciseRepository
	sessionRepo      repository.SessionRepository
	feedbackRepo     repository.FeedbackRepository
}

func NewSessionService(repos *repository.Repositories, policy MaterializationPolicy, opts Options) SessionService {
	if policy != PolicyPerPlan {
		policy = PolicySingle
	}
	return &sessionService{
		base:             newBase(opts),
		policy:           policy,
		userRepo:         repos.Users,
		planRepo:         repos.Plans,
		planExerciseRepo: repos.PlanExercises,
		exerciseRepo:     repos.Exercises,
		sessionRepo:      repos.Sessions,
		feedbackRepo:     repos.Feedback,
	}
}

func (s *sessionService) EnsureTodaysSession(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (*domain.WorkoutSession, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	date := domain.NormalizeDate(asOf)
	visible, err := listVisiblePlans(ctx, s.planRepo, clientID, date)
	if err != nil {
		return nil, err
	}
	eligible := make([]domain.TrainingPlan, 0, len(visible))
	for _, p := range visible {
		if p.HasStarted(date) {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	order := domain.PlanOrder(eligible)

	ids := make([]primitive.ObjectID, 0, len(eligible))
	for _, p := range eligible {
		ids = append(ids, p.ID)
	}
	outstanding, err := s.sessionRepo.FindOutstanding(ctx, clientID, date, ids)
	if err != nil {
		return nil, storeFailure("find outstanding sessions", err)
	}
	if len(outstanding) > 0 {
		sortByPlanOrder(outstanding, order)
		return s.open(ctx, &outstanding[0])
	}

	var active []domain.TrainingPlan
	for _, p := range eligible {
		if p.Status == domain.PlanActive {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	if s.policy == PolicySingle {
		active = active[:1]
	}

	var first, firstOutstanding *domain.WorkoutSession
	for _, p := range active {
		startedAt := s.now()
		stored, created, err := s.sessionRepo.CreateIfAbsent(ctx, &domain.WorkoutSession{
			ClientID:      clientID,
			PlanID:        p.ID,
			ScheduledDate: date,
			Status:        domain.SessionInProgress,
			StartedAt:     &startedAt,
		})
		if err != nil {
			return nil, storeFailure("create session", err)
		}
		if created {
			s.opts.Metrics.CounterSessionsMaterialized.Inc()
			log.WithFields(log.Fields{
				"client_id":  clientID.Hex(),
				"plan_id":    p.ID.Hex(),
				"session_id": stored.ID.Hex(),
				"date":       date.Format(domain.DateLayout),
			}).Info("workout session opened")
		}
		if first == nil {
			first = stored
		}
		if firstOutstanding == nil && stored.Status.IsOutstanding() {
			firstOutstanding = stored
		}
	}

	// an existing terminal session for the key is handed back unchanged
	if firstOutstanding == nil {
		return first, nil
	}
	return s.open(ctx, firstOutstanding)
}

// open moves a Scheduled session to In Progress. Other statuses are returned as they are.
func (s *sessionService) open(ctx context.Context, ws *domain.WorkoutSession) (*domain.WorkoutSession, error) {
	if ws.Status != domain.SessionScheduled {
		return ws, nil
	}
	startedAt := s.now()
	opened, err := s.sessionRepo.Transition(ctx, ws.ID, domain.SessionScheduled, domain.SessionInProgress,
		domain.SessionChange{StartedAt: &startedAt})
	if errors.Is(err, repository.ErrStatusMismatch) {
		// someone else moved it first; report what is stored now
		current, err := s.sessionRepo.GetByID(ctx, ws.ID)
		if err != nil {
			return nil, storeFailure("get session", err)
		}
		return current, nil
	}
	if err != nil {
		return nil, storeFailure("open session", err)
	}
	return opened, nil
}

func sortByPlanOrder(sessions []domain.WorkoutSession, order map[primitive.ObjectID]int) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].ScheduledDate.Equal(sessions[j].ScheduledDate) {
			return sessions[i].ScheduledDate.Before(sessions[j].ScheduledDate)
		}
		return order[sessions[i].PlanID] < order[sessions[j].PlanID]
	})
}

func (s *sessionService) StartSession(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	ws, err := loadOwnSession(ctx, s.sessionRepo, clientID, sessionID)
	if err != nil {
		return nil, err
	}
	startedAt := s.now()
	return s.apply(ctx, ws, domain.EvSessionStarted, domain.SessionChange{StartedAt: &startedAt})
}

// CompleteSession finishes an In Progress session once every plan exercise is marked completed.
func (s *sessionService) CompleteSession(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	ws, err := loadOwnSession(ctx, s.sessionRepo, clientID, sessionID)
	if err != nil {
		return nil, err
	}
	if _, ok := domain.TransitionFor(ws.Status, domain.EvSessionFinished); !ok {
		return nil, ErrInvalidTransition
	}

	items, err := s.planExerciseRepo.GetByPlanID(ctx, ws.PlanID)
	if err != nil {
		return nil, storeFailure("get plan exercises", err)
	}
	feedback, err := s.feedbackRepo.GetBySessionID(ctx, ws.ID)
	if err != nil {
		return nil, storeFailure("get session feedback", err)
	}
	if missing := domain.MissingCompletions(items, feedback); len(missing) > 0 {
		gate := &CompletionGateError{Missing: make([]string, 0, len(missing))}
		for _, id := range missing {
			gate.Missing = append(gate.Missing, id.Hex())
		}
		return nil, gate
	}

	now := s.now()
	started := ws.CreatedAt
	if ws.StartedAt != nil {
		started = *ws.StartedAt
	}
	minutes := domain.DurationMinutesBetween(started, now)
	done, err := s.apply(ctx, ws, domain.EvSessionFinished, domain.SessionChange{
		CompletedDate:   &now,
		DurationMinutes: &minutes,
	})
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.CounterSessionsCompleted.Inc()
	log.WithFields(log.Fields{
		"client_id":  clientID.Hex(),
		"session_id": sessionID.Hex(),
		"minutes":    minutes,
	}).Info("workout session completed")
	return done, nil
}

func (s *sessionService) SkipSession(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	ws, err := loadOwnSession(ctx, s.sessionRepo, clientID, sessionID)
	if err != nil {
		return nil, err
	}
	skipped, err := s.apply(ctx, ws, domain.EvSessionSkipped, domain.SessionChange{})
	if err != nil {
		return nil, err
	}
	s.opts.Metrics.CounterSessionsSkipped.Inc()
	return skipped, nil
}

// apply runs ev against ws as a conditional update on its current status.
func (s *sessionService) apply(ctx context.Context, ws *domain.WorkoutSession, ev domain.SessionEvent, change domain.SessionChange) (*domain.WorkoutSession, error) {
	tr, ok := domain.TransitionFor(ws.Status, ev)
	if !ok {
		return nil, ErrInvalidTransition
	}
	updated, err := s.sessionRepo.Transition(ctx, ws.ID, tr.From, tr.To, change)
	switch {
	case errors.Is(err, repository.ErrStatusMismatch):
		return nil, ErrInvalidTransition
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, storeFailure("transition session", err)
	}
	return updated, nil
}

// activeExercise checks that the session is In Progress and that exerciseID is part of its plan.
func (s *sessionService) activeExercise(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID) error {
	ws, err := loadOwnSession(ctx, s.sessionRepo, clientID, sessionID)
	if err != nil {
		return err
	}
	if ws.Status != domain.SessionInProgress {
		return ErrSessionNotActive
	}
	items, err := s.planExerciseRepo.GetByPlanID(ctx, ws.PlanID)
	if err != nil {
		return storeFailure("get plan exercises", err)
	}
	for _, it := range items {
		if it.ExerciseID == exerciseID {
			return nil
		}
	}
	return ErrExerciseNotInPlan
}

func (s *sessionService) patchFeedback(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.activeExercise(ctx, clientID, sessionID, exerciseID); err != nil {
		return nil, err
	}
	fb, err := s.feedbackRepo.Upsert(ctx, sessionID, exerciseID, patch)
	if err != nil {
		return nil, storeFailure("save exercise feedback", err)
	}
	return fb, nil
}

func (s *sessionService) SetExerciseCompleted(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, completed bool) (*domain.ExerciseFeedback, error) {
	return s.patchFeedback(ctx, clientID, sessionID, exerciseID, domain.FeedbackPatch{Completed: &completed})
}

// toggleAttempts bounds the read-then-flip retries of ToggleExerciseCompleted.
const toggleAttempts = 3

// ToggleExerciseCompleted flips the stored completed flag; a missing record counts as not completed.
// The flip is conditional on the value read, so two concurrent toggles apply one after the other.
// SetExerciseCompleted is the idempotent way to set the flag.
func (s *sessionService) ToggleExerciseCompleted(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseFeedback, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.activeExercise(ctx, clientID, sessionID, exerciseID); err != nil {
		return nil, err
	}
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		was := false
		current, err := s.feedbackRepo.Get(ctx, sessionID, exerciseID)
		switch {
		case err == nil:
			was = current.Completed
		case !errors.Is(err, repository.ErrNotFound):
			return nil, storeFailure("get exercise feedback", err)
		}
		completed := !was
		fb, err := s.feedbackRepo.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Completed: &completed, IfCompleted: &was})
		if err == nil {
			return fb, nil
		}
		if !errors.Is(err, repository.ErrStatusMismatch) {
			return nil, storeFailure("save exercise feedback", err)
		}
	}
	log.WithFields(log.Fields{
		"session_id":  sessionID.Hex(),
		"exercise_id": exerciseID.Hex(),
	}).Warn("exercise toggle kept losing to concurrent writes")
	return nil, ErrFeedbackConflict
}

func (s *sessionService) SaveExerciseFeedback(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, text string) (*domain.ExerciseFeedback, error) {
	text = strings.TrimSpace(text)
	return s.patchFeedback(ctx, clientID, sessionID, exerciseID, domain.FeedbackPatch{Feedback: &text})
}

func (s *sessionService) LogExercisePerformance(ctx context.Context, clientID, sessionID, exerciseID primitive.ObjectID, perf Performance) (*domain.ExerciseFeedback, error) {
	if (perf.Sets != nil && *perf.Sets < 0) || (perf.Reps != nil && *perf.Reps < 0) || (perf.Weight != nil && *perf.Weight < 0) {
		return nil, invalid("performance", "negative values are not allowed")
	}
	patch := domain.FeedbackPatch{ActualSets: perf.Sets, ActualReps: perf.Reps, ActualWeight: perf.Weight}
	if patch.IsEmpty() {
		return nil, invalid("performance", "nothing to record")
	}
	return s.patchFeedback(ctx, clientID, sessionID, exerciseID, patch)
}

// GetSessionDetail returns a session with its plan lines and feedback. Clients see their own
// sessions, coaches the sessions of their plans.
func (s *sessionService) GetSessionDetail(ctx context.Context, actor Actor, sessionID primitive.ObjectID) (*SessionDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	ws, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeFailure("get session", err)
	}
	if actor.Role == domain.RoleClient && ws.ClientID != actor.UserID {
		return nil, ErrSessionAccessDenied
	}
	plan, err := loadPlanFor(ctx, s.planRepo, actor, ws.PlanID)
	if errors.Is(err, ErrPlanAccessDenied) {
		return nil, ErrSessionAccessDenied
	}
	if err != nil {
		return nil, err
	}

	items, err := s.planExerciseRepo.GetByPlanID(ctx, ws.PlanID)
	if err != nil {
		return nil, storeFailure("get plan exercises", err)
	}
	exercises, err := s.exerciseRepo.GetByIDs(ctx, domain.PlanExerciseIDs(items))
	if err != nil {
		return nil, storeFailure("get exercises", err)
	}
	feedback, err := s.feedbackRepo.GetBySessionID(ctx, ws.ID)
	if err != nil {
		return nil, storeFailure("get session feedback", err)
	}

	exByID := make(map[primitive.ObjectID]*domain.Exercise, len(exercises))
	for i := range exercises {
		exByID[exercises[i].ID] = &exercises[i]
	}
	fbByExercise := make(map[primitive.ObjectID]*domain.ExerciseFeedback, len(feedback))
	for i := range feedback {
		fbByExercise[feedback[i].ExerciseID] = &feedback[i]
	}

	detail := &SessionDetail{Session: ws, Plan: plan, Items: make([]SessionItem, 0, len(items))}
	for _, it := range items {
		detail.Items = append(detail.Items, SessionItem{
			PlanItem: PlanItem{PlanExercise: it, Exercise: exByID[it.ExerciseID]},
			Feedback: fbByExercise[it.ExerciseID],
		})
	}
	return detail, nil
}

// SessionHistory lists the client's completed sessions newest first with their feedback.
func (s *sessionService) SessionHistory(ctx context.Context, actor Actor, clientID primitive.ObjectID, limit int64) ([]HistoryEntry, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	switch actor.Role {
	case domain.RoleClient:
		if actor.UserID != clientID {
			return nil, ErrSessionAccessDenied
		}
	case domain.RoleCoach:
		if _, err := loadClientOf(ctx, s.userRepo, actor.UserID, clientID); err != nil {
			return nil, err
		}
	default:
		return nil, ErrSessionAccessDenied
	}

	sessions, err := s.sessionRepo.ListByClient(ctx, clientID, repository.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionCompleted},
		Limit:    limit,
	})
	if err != nil {
		return nil, storeFailure("list sessions", err)
	}
	if len(sessions) == 0 {
		return []HistoryEntry{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(sessions))
	planNames := make(map[primitive.ObjectID]string)
	for _, ws := range sessions {
		ids = append(ids, ws.ID)
		if _, ok := planNames[ws.PlanID]; ok {
			continue
		}
		plan, err := s.planRepo.GetByID(ctx, ws.PlanID)
		switch {
		case err == nil:
			planNames[ws.PlanID] = plan.Name
		case errors.Is(err, repository.ErrNotFound):
			planNames[ws.PlanID] = ""
		default:
			return nil, storeFailure("get plan", err)
		}
	}
	feedback, err := s.feedbackRepo.GetBySessionIDs(ctx, ids)
	if err != nil {
		return nil, storeFailure("get session feedback", err)
	}
	bySession := make(map[primitive.ObjectID][]domain.ExerciseFeedback)
	for _, fb := range feedback {
		bySession[fb.SessionID] = append(bySession[fb.SessionID], fb)
	}

	history := make([]HistoryEntry, 0, len(sessions))
	for _, ws := range sessions {
		history = append(history, HistoryEntry{
			Session:  ws,
			PlanName: planNames[ws.PlanID],
			Feedback: bySession[ws.ID],
		})
	}
	return history, nil
}

func (s *sessionService) SkipStaleSessions(ctx context.Context, asOf time.Time) (int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.sessionRepo.SkipStale(ctx, domain.NormalizeDate(asOf))
	if err != nil {
		return 0, storeFailure("skip stale sessions", err)
	}
	if n > 0 {
		s.opts.Metrics.CounterSessionsSkipped.Add(float64(n))
		log.WithFields(log.Fields{"count": n, "as_of": asOf.Format(domain.DateLayout)}).Info("skipped stale sessions")
	}
	return n, nil
}
