package memory

import (
	"context"
	"errors"
	"sort"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type exerciseRepository struct {
	s *Store
}

func NewExerciseRepository(s *Store) repository.ExerciseRepository {
	return &exerciseRepository{s: s}
}

func (r *exerciseRepository) Create(_ context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.CoachID == primitive.NilObjectID || exercise.Name == "" {
		return primitive.NilObjectID, errors.New("exercise requires coachId and name")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	exercise.ID = primitive.NewObjectID()
	exercise.CreatedAt = now()
	exercise.UpdatedAt = exercise.CreatedAt
	r.s.exercises[exercise.ID] = *exercise
	return exercise.ID, nil
}

func (r *exerciseRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ex, ok := r.s.exercises[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ex, nil
}

func (r *exerciseRepository) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Exercise, 0, len(ids))
	for _, id := range ids {
		if ex, ok := r.s.exercises[id]; ok {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (r *exerciseRepository) GetByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.Exercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Exercise{}
	for _, ex := range r.s.exercises {
		if ex.CoachID == coachID {
			out = append(out, ex)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *exerciseRepository) Update(_ context.Context, exercise *domain.Exercise) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.exercises[exercise.ID]
	if !ok {
		return repository.ErrNotFound
	}
	exercise.CoachID = existing.CoachID
	exercise.CreatedAt = existing.CreatedAt
	exercise.UpdatedAt = now()
	r.s.exercises[exercise.ID] = *exercise
	return nil
}

func (r *exerciseRepository) Delete(_ context.Context, id, coachID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ex, ok := r.s.exercises[id]
	if !ok || ex.CoachID != coachID {
		return repository.ErrNotFound
	}
	delete(r.s.exercises, id)
	return nil
}
