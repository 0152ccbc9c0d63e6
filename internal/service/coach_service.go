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

// ClientDetail is what a coach sees on a client's page.
type ClientDetail struct {
	Profile           *Profile              `json:"profile"`
	Plans             []domain.TrainingPlan `json:"plans"`
	CurrentPlan       *domain.TrainingPlan  `json:"currentPlan,omitempty"`
	TimeRemaining     *domain.TimeRemaining `json:"timeRemaining,omitempty"`
	CompletedWorkouts int64                 `json:"completedWorkouts"`
}

type CoachService interface {
	AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, clientEmail string) (*domain.User, error)
	GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]Profile, error)
	GetClientDetail(ctx context.Context, coachID, clientID primitive.ObjectID, asOf time.Time) (*ClientDetail, error)
}

type coachService struct {
	base
	userRepo    repository.UserRepository
	planRepo    repository.TrainingPlanRepository
	sessionRepo repository.SessionRepository
}

func NewCoachService(repos *repository.Repositories, opts Options) CoachService {
	return &coachService{
		base:        newBase(opts),
		userRepo:    repos.Users,
		planRepo:    repos.Plans,
		sessionRepo: repos.Sessions,
	}
}

// AddClientByEmail links an unassigned client account to the coach. Adding a client the coach
// already manages is a no-op.
func (s *coachService) AddClientByEmail(ctx context.Context, coachID primitive.ObjectID, clientEmail string) (*domain.User, error) {
	clientEmail = strings.TrimSpace(clientEmail)
	if clientEmail == "" {
		return nil, invalid("email", "is required")
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	client, err := s.userRepo.GetByEmail(ctx, clientEmail)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, storeFailure("get user by email", err)
	}
	if !client.IsClient() {
		return nil, ErrClientNotRole
	}
	if client.CoachID != nil && *client.CoachID != primitive.NilObjectID {
		if *client.CoachID == coachID {
			client.PasswordHash = ""
			return client, nil
		}
		return nil, ErrClientAlreadyAssigned
	}

	if err := s.userRepo.AddClientIDToCoach(ctx, coachID, client.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeFailure("add client to coach", err)
	}
	if err := s.userRepo.SetCoachForClient(ctx, client.ID, coachID); err != nil {
		// the coach side is already written; the next add retries both idempotently
		log.WithError(err).WithFields(log.Fields{
			"coach_id":  coachID.Hex(),
			"client_id": client.ID.Hex(),
		}).Error("client linked on coach side only")
		return nil, storeFailure("set coach for client", err)
	}

	client.CoachID = &coachID
	client.PasswordHash = ""
	log.WithFields(log.Fields{"coach_id": coachID.Hex(), "client_id": client.ID.Hex()}).Info("client added")
	return client, nil
}

func (s *coachService) GetManagedClients(ctx context.Context, coachID primitive.ObjectID) ([]Profile, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	clients, err := s.userRepo.GetClientsByCoachID(ctx, coachID)
	if err != nil {
		return nil, storeFailure("list clients", err)
	}
	now := s.now()
	out := make([]Profile, 0, len(clients))
	for i := range clients {
		out = append(out, *summarize(&clients[i], now))
	}
	return out, nil
}

func (s *coachService) GetClientDetail(ctx context.Context, coachID, clientID primitive.ObjectID, asOf time.Time) (*ClientDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	client, err := loadClientOf(ctx, s.userRepo, coachID, clientID)
	if err != nil {
		return nil, err
	}
	plans, err := s.planRepo.GetByClientAndCoachID(ctx, clientID, coachID)
	if err != nil {
		return nil, storeFailure("list client plans", err)
	}
	completed, err := s.sessionRepo.CountByClient(ctx, clientID, domain.SessionCompleted)
	if err != nil {
		return nil, storeFailure("count sessions", err)
	}

	detail := &ClientDetail{
		Profile:           summarize(client, s.now()),
		Plans:             plans,
		CompletedWorkouts: completed,
	}
	visible := domain.FilterVisible(plans, asOf)
	if current := domain.CurrentPlan(visible, asOf); current != nil {
		detail.CurrentPlan = current
		detail.TimeRemaining = domain.PlanTimeRemaining(current, asOf)
	}
	return detail, nil
}
