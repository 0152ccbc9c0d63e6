package memory

import (
	"context"
	"sort"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type feedbackRepository struct {
	s *Store
}

func NewFeedbackRepository(s *Store) repository.FeedbackRepository {
	return &feedbackRepository{s: s}
}

func (r *feedbackRepository) Get(_ context.Context, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseFeedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.feedback[feedbackKey{sessionID: sessionID, exerciseID: exerciseID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *feedbackRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseFeedback, error) {
	return r.GetBySessionIDs(ctx, []primitive.ObjectID{sessionID})
}

func (r *feedbackRepository) GetBySessionIDs(_ context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseFeedback, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.ExerciseFeedback{}
	for k, f := range r.s.feedback {
		if containsID(sessionIDs, k.sessionID) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *feedbackRepository) Upsert(_ context.Context, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := feedbackKey{sessionID: sessionID, exerciseID: exerciseID}
	f, ok := r.s.feedback[key]
	ts := now()
	if !ok {
		f = domain.ExerciseFeedback{
			ID:         primitive.NewObjectID(),
			SessionID:  sessionID,
			ExerciseID: exerciseID,
			CreatedAt:  ts,
		}
	}
	if patch.IfCompleted != nil && f.Completed != *patch.IfCompleted {
		return nil, repository.ErrStatusMismatch
	}
	patch.Apply(&f)
	f.UpdatedAt = ts
	r.s.feedback[key] = f
	return &f, nil
}
