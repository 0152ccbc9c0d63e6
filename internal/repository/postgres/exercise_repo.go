package postgres

import (
	"context"
	"errors"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const exerciseColumns = `id, coach_id, name, category, type, description, image_key, video_key, video_url, created_at, updated_at`

type ExerciseRepo struct {
	db *pgxpool.Pool
}

func NewExerciseRepo(db *pgxpool.Pool) *ExerciseRepo {
	return &ExerciseRepo{
		db: db,
	}
}

func (r *ExerciseRepo) Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error) {
	if exercise.Name == "" || exercise.CoachID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("exercise name and coach ID are required")
	}
	exercise.ID = primitive.NewObjectID()
	exercise.CreatedAt = now()
	exercise.UpdatedAt = exercise.CreatedAt

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO exercises (`+exerciseColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		exercise.ID.Hex(), exercise.CoachID.Hex(), exercise.Name, exercise.Category, string(exercise.Type),
		exercise.Description, exercise.ImageKey, exercise.VideoKey, exercise.VideoURL,
		exercise.CreatedAt, exercise.UpdatedAt,
	)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return exercise.ID, nil
}

func (r *ExerciseRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error) {
	row := r.db.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1;`, id.Hex())
	e, err := scanExercise(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *ExerciseRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error) {
	if len(ids) == 0 {
		return []domain.Exercise{}, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = ANY($1);`, hexes(ids))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanExercise)
}

func (r *ExerciseRepo) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Exercise, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+exerciseColumns+` FROM exercises WHERE coach_id = $1 ORDER BY name;`,
		coachID.Hex(),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanExercise)
}

func (r *ExerciseRepo) Update(ctx context.Context, exercise *domain.Exercise) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE exercises SET
			name = $1, category = $2, type = $3, description = $4, image_key = $5,
			video_key = $6, video_url = $7, updated_at = $8
		WHERE id = $9;`,
		exercise.Name, exercise.Category, string(exercise.Type), exercise.Description,
		exercise.ImageKey, exercise.VideoKey, exercise.VideoURL, now(), exercise.ID.Hex(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ExerciseRepo) Delete(ctx context.Context, id, coachID primitive.ObjectID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM exercises WHERE id = $1 AND coach_id = $2;`, id.Hex(), coachID.Hex())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanExercise(s scanner) (domain.Exercise, error) {
	var (
		e                domain.Exercise
		id, coachID, typ string
	)
	err := s.Scan(&id, &coachID, &e.Name, &e.Category, &typ, &e.Description, &e.ImageKey,
		&e.VideoKey, &e.VideoURL, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.Exercise{}, err
	}
	if e.ID, err = parseID(id); err != nil {
		return domain.Exercise{}, err
	}
	if e.CoachID, err = parseID(coachID); err != nil {
		return domain.Exercise{}, err
	}
	e.Type = domain.ExerciseType(typ)
	return e, nil
}
