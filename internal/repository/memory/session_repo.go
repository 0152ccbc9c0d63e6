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

type sessionRepository struct {
	s *Store
}

func NewSessionRepository(s *Store) repository.SessionRepository {
	return &sessionRepository{s: s}
}

func (r *sessionRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ws, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ws, nil
}

func (r *sessionRepository) FindOutstanding(_ context.Context, clientID primitive.ObjectID, date time.Time, planIDs []primitive.ObjectID) ([]domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	date = domain.NormalizeDate(date)
	out := []domain.WorkoutSession{}
	for _, ws := range r.s.sessions {
		if ws.ClientID != clientID || !ws.ScheduledDate.Equal(date) || !ws.Status.IsOutstanding() {
			continue
		}
		if !containsID(planIDs, ws.PlanID) {
			continue
		}
		out = append(out, ws)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *sessionRepository) CreateIfAbsent(_ context.Context, session *domain.WorkoutSession) (*domain.WorkoutSession, bool, error) {
	if session.ClientID == primitive.NilObjectID || session.PlanID == primitive.NilObjectID {
		return nil, false, errors.New("session requires clientId and planId")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session.ScheduledDate = domain.NormalizeDate(session.ScheduledDate)
	key := sessionKey{clientID: session.ClientID, planID: session.PlanID, date: session.ScheduledDate}
	if id, ok := r.s.sessionKeys[key]; ok {
		existing := r.s.sessions[id]
		return &existing, false, nil
	}

	session.ID = primitive.NewObjectID()
	session.CreatedAt = now()
	session.UpdatedAt = session.CreatedAt
	r.s.sessions[session.ID] = *session
	r.s.sessionKeys[key] = session.ID
	stored := *session
	return &stored, true, nil
}

func (r *sessionRepository) Transition(_ context.Context, id primitive.ObjectID, from, to domain.SessionStatus, change domain.SessionChange) (*domain.WorkoutSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ws.Status != from {
		return nil, repository.ErrStatusMismatch
	}
	change.Apply(&ws, to)
	ws.UpdatedAt = now()
	r.s.sessions[id] = ws
	return &ws, nil
}

func (r *sessionRepository) ListByClient(_ context.Context, clientID primitive.ObjectID, filter repository.SessionFilter) ([]domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.WorkoutSession{}
	for _, ws := range r.s.sessions {
		if ws.ClientID != clientID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ws.Status) {
			continue
		}
		if filter.PlanID != nil && ws.PlanID != *filter.PlanID {
			continue
		}
		out = append(out, ws)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.After(out[j].ScheduledDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *sessionRepository) CountByPlan(_ context.Context, planID primitive.ObjectID, status domain.SessionStatus) (int64, error) {
	return r.count(func(ws *domain.WorkoutSession) bool { return ws.PlanID == planID && ws.Status == status }), nil
}

func (r *sessionRepository) CountByClient(_ context.Context, clientID primitive.ObjectID, status domain.SessionStatus) (int64, error) {
	return r.count(func(ws *domain.WorkoutSession) bool { return ws.ClientID == clientID && ws.Status == status }), nil
}

func (r *sessionRepository) ListUpcoming(_ context.Context, planIDs []primitive.ObjectID, from time.Time, limit int64) ([]domain.WorkoutSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	from = domain.NormalizeDate(from)
	plans := make(map[primitive.ObjectID]bool, len(planIDs))
	for _, id := range planIDs {
		plans[id] = true
	}
	out := []domain.WorkoutSession{}
	for _, ws := range r.s.sessions {
		if plans[ws.PlanID] && ws.Status.IsOutstanding() && !ws.ScheduledDate.Before(from) {
			out = append(out, ws)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.Before(out[j].ScheduledDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *sessionRepository) SkipStale(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	before = domain.NormalizeDate(before)
	var n int64
	for id, ws := range r.s.sessions {
		if ws.Status == domain.SessionScheduled && ws.ScheduledDate.Before(before) {
			ws.Status = domain.SessionSkipped
			ws.UpdatedAt = now()
			r.s.sessions[id] = ws
			n++
		}
	}
	return n, nil
}

func (r *sessionRepository) count(match func(*domain.WorkoutSession) bool) int64 {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, ws := range r.s.sessions {
		if match(&ws) {
			n++
		}
	}
	return n
}
