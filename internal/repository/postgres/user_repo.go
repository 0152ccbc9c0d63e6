package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const userColumns = `
	u.id, u.name, u.email, u.password_hash, u.role, u.phone, u.country, u.timezone,
	u.coach_id, u.date_of_birth, u.height_cm, u.weight_kg, u.fitness_goal, u.workouts_per_week,
	u.emergency_contact, u.emergency_phone, u.profile_image_key, u.created_at, u.updated_at,
	COALESCE((SELECT array_agg(cc.client_id ORDER BY cc.client_id) FROM coach_clients cc WHERE cc.coach_id = u.id), '{}')`

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}
	user.ID = primitive.NewObjectID()
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO users (
			id, name, email, password_hash, role, phone, country, timezone, coach_id, date_of_birth,
			height_cm, weight_kg, fitness_goal, workouts_per_week, emergency_contact, emergency_phone,
			profile_image_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19);`,
		user.ID.Hex(), user.Name, user.Email, user.PasswordHash, string(user.Role), user.Phone, user.Country,
		user.Timezone, optionalHex(user.CoachID), user.DateOfBirth, user.HeightCM, user.WeightKG,
		user.FitnessGoal, user.WorkoutsPerWeek, user.EmergencyContact, user.EmergencyPhone,
		user.ProfileImageKey, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolationError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateEmail
		}
		return primitive.NilObjectID, err
	}
	return user.ID, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1;`, strings.ToLower(email))
	return scanUser(row)
}

func (r *UserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1;`, id.Hex())
	return scanUser(row)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, user *domain.User) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE users SET
			name = $1, phone = $2, country = $3, timezone = $4, date_of_birth = $5, height_cm = $6,
			weight_kg = $7, fitness_goal = $8, workouts_per_week = $9, emergency_contact = $10,
			emergency_phone = $11, profile_image_key = $12, updated_at = $13
		WHERE id = $14;`,
		user.Name, user.Phone, user.Country, user.Timezone, user.DateOfBirth, user.HeightCM,
		user.WeightKG, user.FitnessGoal, user.WorkoutsPerWeek, user.EmergencyContact,
		user.EmergencyPhone, user.ProfileImageKey, now(), user.ID.Hex(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) AddClientIDToCoach(ctx context.Context, coachID, clientID primitive.ObjectID) error {
	tag, err := r.db.Exec(
		ctx,
		`INSERT INTO coach_clients (coach_id, client_id)
		SELECT id, $2 FROM users WHERE id = $1 AND role = $3
		ON CONFLICT DO NOTHING;`,
		coachID.Hex(), clientID.Hex(), string(domain.RoleCoach),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	// nothing inserted: either already linked or the coach does not exist
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND role = $2);`,
		coachID.Hex(), string(domain.RoleCoach)).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+userColumns+`
		FROM users u
		JOIN coach_clients link ON link.client_id = u.id
		WHERE link.coach_id = $1 AND u.role = $2
		ORDER BY u.name;`,
		coachID.Hex(), string(domain.RoleClient),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (domain.User, error) {
		u, err := scanUser(s)
		if err != nil {
			return domain.User{}, err
		}
		return *u, nil
	})
}

func (r *UserRepo) SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE users SET coach_id = $1, updated_at = $2 WHERE id = $3 AND role = $4;`,
		coachID.Hex(), now(), clientID.Hex(), string(domain.RoleClient),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanUser(s scanner) (*domain.User, error) {
	var (
		u         domain.User
		id, role  string
		coachID   *string
		dob       *time.Time
		clientIDs []string
	)
	err := s.Scan(
		&id, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Phone, &u.Country, &u.Timezone,
		&coachID, &dob, &u.HeightCM, &u.WeightKG, &u.FitnessGoal, &u.WorkoutsPerWeek,
		&u.EmergencyContact, &u.EmergencyPhone, &u.ProfileImageKey, &u.CreatedAt, &u.UpdatedAt,
		&clientIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if u.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if u.CoachID, err = parseOptionalID(coachID); err != nil {
		return nil, err
	}
	for _, hex := range clientIDs {
		clientID, err := parseID(hex)
		if err != nil {
			return nil, err
		}
		u.ClientIDs = append(u.ClientIDs, clientID)
	}
	u.Role = domain.Role(role)
	u.DateOfBirth = dob
	return &u, nil
}
