package service

import (
	"context"
	"sort"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProgressService interface {
	// ExerciseProgress compares first and latest logged performance per exercise across the
	// client's completed sessions. Cardio exercises are not scored and are left out.
	ExerciseProgress(ctx context.Context, actor Actor, clientID primitive.ObjectID) ([]domain.ExerciseProgress, error)
}

type progressService struct {
	base
	userRepo     repository.UserRepository
	exerciseRepo repository.ExerciseRepository
	sessionRepo  repository.SessionRepository
	feedbackRepo repository.FeedbackRepository
}

func NewProgressService(repos *repository.Repositories, opts Options) ProgressService {
	return &progressService{
		base:         newBase(opts),
		userRepo:     repos.Users,
		exerciseRepo: repos.Exercises,
		sessionRepo:  repos.Sessions,
		feedbackRepo: repos.Feedback,
	}
}

func (s *progressService) ExerciseProgress(ctx context.Context, actor Actor, clientID primitive.ObjectID) ([]domain.ExerciseProgress, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	switch actor.Role {
	case domain.RoleCoach:
		if _, err := loadClientOf(ctx, s.userRepo, actor.UserID, clientID); err != nil {
			return nil, err
		}
	case domain.RoleClient:
		if actor.UserID != clientID {
			return nil, ErrSessionAccessDenied
		}
	default:
		return nil, ErrSessionAccessDenied
	}

	sessions, err := s.sessionRepo.ListByClient(ctx, clientID, repository.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionCompleted},
	})
	if err != nil {
		return nil, storeFailure("list sessions", err)
	}
	if len(sessions) == 0 {
		return []domain.ExerciseProgress{}, nil
	}

	sessionIDs := make([]primitive.ObjectID, 0, len(sessions))
	byID := make(map[primitive.ObjectID]*domain.WorkoutSession, len(sessions))
	for i := range sessions {
		sessionIDs = append(sessionIDs, sessions[i].ID)
		byID[sessions[i].ID] = &sessions[i]
	}
	feedback, err := s.feedbackRepo.GetBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, storeFailure("get session feedback", err)
	}

	entries := make(map[primitive.ObjectID][]domain.PerformanceEntry)
	var exerciseIDs []primitive.ObjectID
	for _, fb := range feedback {
		if !fb.Completed || (fb.ActualReps == nil && fb.ActualWeight == nil) {
			continue
		}
		ws := byID[fb.SessionID]
		entry := domain.PerformanceEntry{SessionID: fb.SessionID, Date: ws.ScheduledDate}
		if ws.CompletedDate != nil {
			entry.Date = *ws.CompletedDate
		}
		if fb.ActualSets != nil {
			entry.Sets = *fb.ActualSets
		}
		if fb.ActualReps != nil {
			entry.Reps = *fb.ActualReps
		}
		if fb.ActualWeight != nil {
			entry.Weight = *fb.ActualWeight
		}
		if _, seen := entries[fb.ExerciseID]; !seen {
			exerciseIDs = append(exerciseIDs, fb.ExerciseID)
		}
		entries[fb.ExerciseID] = append(entries[fb.ExerciseID], entry)
	}

	exercises, err := s.exerciseRepo.GetByIDs(ctx, exerciseIDs)
	if err != nil {
		return nil, storeFailure("get exercises", err)
	}
	report := make([]domain.ExerciseProgress, 0, len(exercises))
	for i := range exercises {
		ex := &exercises[i]
		if ex.Type == domain.ExerciseCardio {
			continue
		}
		report = append(report, domain.BuildExerciseProgress(ex, entries[ex.ID]))
	}
	sort.SliceStable(report, func(i, j int) bool { return report[i].Name < report[j].Name })
	return report, nil
}
