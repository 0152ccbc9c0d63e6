package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type trainingPlanRepository struct {
	s *Store
}

func NewTrainingPlanRepository(s *Store) repository.TrainingPlanRepository {
	return &trainingPlanRepository{s: s}
}

func (r *trainingPlanRepository) Create(_ context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.ClientID == primitive.NilObjectID || plan.CoachID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires clientId, coachId, and name")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan.ID = primitive.NewObjectID()
	plan.CreatedAt = now()
	plan.UpdatedAt = plan.CreatedAt
	r.s.plans[plan.ID] = *plan
	return plan.ID, nil
}

func (r *trainingPlanRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *trainingPlanRepository) GetByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return r.collect(func(p *domain.TrainingPlan) bool { return p.CoachID == coachID }, newestFirst), nil
}

func (r *trainingPlanRepository) GetByClientAndCoachID(_ context.Context, clientID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return r.collect(func(p *domain.TrainingPlan) bool {
		return p.CoachID == coachID && p.ClientID == clientID
	}, newestFirst), nil
}

func (r *trainingPlanRepository) ListForClient(_ context.Context, clientID primitive.ObjectID, filter repository.PlanFilter) ([]domain.TrainingPlan, error) {
	return r.collect(func(p *domain.TrainingPlan) bool {
		if p.ClientID != clientID {
			return false
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
			return false
		}
		if filter.StartOnOrBefore != nil && p.StartDate != nil && p.StartDate.After(*filter.StartOnOrBefore) {
			return false
		}
		return true
	}, domain.SortPlansByStart), nil
}

func (r *trainingPlanRepository) Update(_ context.Context, plan *domain.TrainingPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.plans[plan.ID]
	if !ok {
		return repository.ErrNotFound
	}
	plan.CoachID = existing.CoachID
	plan.ClientID = existing.ClientID
	plan.CreatedAt = existing.CreatedAt
	plan.UpdatedAt = now()
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r *trainingPlanRepository) Delete(_ context.Context, planID, coachID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[planID]
	if !ok || p.CoachID != coachID {
		return repository.ErrNotFound
	}
	delete(r.s.plans, planID)
	delete(r.s.planExercises, planID)
	return nil
}

func (r *trainingPlanRepository) CompleteExpired(_ context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.plans {
		if clientID != primitive.NilObjectID && p.ClientID != clientID {
			continue
		}
		if p.IsExpired(asOf) {
			p.Status = domain.PlanCompleted
			p.UpdatedAt = now()
			r.s.plans[id] = p
			n++
		}
	}
	return n, nil
}

func (r *trainingPlanRepository) collect(keep func(*domain.TrainingPlan) bool, order func([]domain.TrainingPlan)) []domain.TrainingPlan {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.TrainingPlan{}
	for _, p := range r.s.plans {
		if keep(&p) {
			out = append(out, p)
		}
	}
	order(out)
	return out
}

func newestFirst(plans []domain.TrainingPlan) {
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
}

func containsStatus[S comparable](list []S, s S) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type planExerciseRepository struct {
	s *Store
}

func NewPlanExerciseRepository(s *Store) repository.PlanExerciseRepository {
	return &planExerciseRepository{s: s}
}

func (r *planExerciseRepository) GetByPlanID(_ context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := append([]domain.PlanExercise{}, r.s.planExercises[planID]...)
	domain.SortPlanExercises(items)
	return items, nil
}

func (r *planExerciseRepository) ReplaceForPlan(_ context.Context, planID primitive.ObjectID, items []domain.PlanExercise) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.plans[planID]; !ok {
		return repository.ErrNotFound
	}
	stored := make([]domain.PlanExercise, len(items))
	ts := now()
	for i, it := range items {
		it.ID = primitive.NewObjectID()
		it.PlanID = planID
		it.CreatedAt = ts
		stored[i] = it
	}
	r.s.planExercises[planID] = stored
	return nil
}
