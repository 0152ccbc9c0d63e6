package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type userRepository struct {
	s *Store
}

func NewUserRepository(s *Store) repository.UserRepository {
	return &userRepository{s: s}
}

func (r *userRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user requires email and role")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, u := range r.s.users {
		if u.Email == email {
			return primitive.NilObjectID, repository.ErrDuplicateEmail
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = email
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return user.ID, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepository) UpdateProfile(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Name = user.Name
	existing.Phone = user.Phone
	existing.Country = user.Country
	existing.Timezone = user.Timezone
	existing.DateOfBirth = user.DateOfBirth
	existing.HeightCM = user.HeightCM
	existing.WeightKG = user.WeightKG
	existing.FitnessGoal = user.FitnessGoal
	existing.WorkoutsPerWeek = user.WorkoutsPerWeek
	existing.EmergencyContact = user.EmergencyContact
	existing.EmergencyPhone = user.EmergencyPhone
	existing.ProfileImageKey = user.ProfileImageKey
	existing.UpdatedAt = now()
	r.s.users[user.ID] = existing
	return nil
}

func (r *userRepository) AddClientIDToCoach(_ context.Context, coachID, clientID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	coach, ok := r.s.users[coachID]
	if !ok || coach.Role != domain.RoleCoach {
		return repository.ErrNotFound
	}
	if !containsID(coach.ClientIDs, clientID) {
		coach.ClientIDs = append(coach.ClientIDs, clientID)
	}
	coach.UpdatedAt = now()
	r.s.users[coachID] = coach
	return nil
}

func (r *userRepository) GetClientsByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	coach, ok := r.s.users[coachID]
	if !ok {
		return []domain.User{}, nil
	}
	clients := make([]domain.User, 0, len(coach.ClientIDs))
	for _, id := range coach.ClientIDs {
		if u, ok := r.s.users[id]; ok && u.Role == domain.RoleClient {
			clients = append(clients, u)
		}
	}
	sort.SliceStable(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

func (r *userRepository) SetCoachForClient(_ context.Context, clientID, coachID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	client, ok := r.s.users[clientID]
	if !ok || client.Role != domain.RoleClient {
		return repository.ErrNotFound
	}
	id := coachID
	client.CoachID = &id
	client.UpdatedAt = now()
	r.s.users[clientID] = client
	return nil
}
