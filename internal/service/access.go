package service

import (
	"context"
	"errors"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated caller, taken from the token claims by the API layer.
type Actor struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

func CoachActor(id primitive.ObjectID) Actor  { return Actor{UserID: id, Role: domain.RoleCoach} }
func ClientActor(id primitive.ObjectID) Actor { return Actor{UserID: id, Role: domain.RoleClient} }

// loadClientOf returns the client if it is managed by coachID.
func loadClientOf(ctx context.Context, users repository.UserRepository, coachID, clientID primitive.ObjectID) (*domain.User, error) {
	client, err := users.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, storeFailure("get client", err)
	}
	if !client.IsClient() {
		return nil, ErrClientNotRole
	}
	if client.CoachID == nil || *client.CoachID != coachID {
		return nil, ErrClientNotManaged
	}
	return client, nil
}

// loadPlanFor returns the plan if actor is its coach or its client.
func loadPlanFor(ctx context.Context, plans repository.TrainingPlanRepository, actor Actor, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
	plan, err := plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, storeFailure("get plan", err)
	}
	switch actor.Role {
	case domain.RoleCoach:
		if plan.CoachID == actor.UserID {
			return plan, nil
		}
	case domain.RoleClient:
		if plan.ClientID == actor.UserID {
			return plan, nil
		}
	}
	return nil, ErrPlanAccessDenied
}

// loadOwnSession returns the session if it belongs to clientID.
func loadOwnSession(ctx context.Context, sessions repository.SessionRepository, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error) {
	ws, err := sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, storeFailure("get session", err)
	}
	if ws.ClientID != clientID {
		return nil, ErrSessionAccessDenied
	}
	return ws, nil
}

// listVisiblePlans returns the client's plans visible on asOf in start order.
func listVisiblePlans(ctx context.Context, plans repository.TrainingPlanRepository, clientID primitive.ObjectID, asOf time.Time) ([]domain.TrainingPlan, error) {
	horizon := domain.AddDays(asOf, domain.VisibilityWindow)
	list, err := plans.ListForClient(ctx, clientID, repository.PlanFilter{
		Statuses:        domain.ClientVisibleStatuses,
		StartOnOrBefore: &horizon,
	})
	if err != nil {
		return nil, storeFailure("list visible plans", err)
	}
	return domain.FilterVisible(list, asOf), nil
}

func loadUser(ctx context.Context, users repository.UserRepository, id primitive.ObjectID) (*domain.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeFailure("get user", err)
	}
	return u, nil
}
