package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const planColumns = `id, coach_id, client_id, name, description, duration, status, difficulty,
	estimated_duration, start_date, end_date, created_at, updated_at`

type TrainingPlanRepo struct {
	db *pgxpool.Pool
}

func NewTrainingPlanRepo(db *pgxpool.Pool) *TrainingPlanRepo {
	return &TrainingPlanRepo{
		db: db,
	}
}

func (r *TrainingPlanRepo) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.ClientID == primitive.NilObjectID || plan.CoachID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires clientId, coachId, and name")
	}
	plan.ID = primitive.NewObjectID()
	plan.CreatedAt = now()
	plan.UpdatedAt = plan.CreatedAt

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO training_plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`,
		plan.ID.Hex(), plan.CoachID.Hex(), plan.ClientID.Hex(), plan.Name, plan.Description,
		plan.Duration, string(plan.Status), string(plan.Difficulty), plan.EstimatedDuration,
		plan.StartDate, plan.EndDate, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return plan.ID, nil
}

func (r *TrainingPlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	row := r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM training_plans WHERE id = $1;`, id.Hex())
	p, err := scanPlan(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *TrainingPlanRepo) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return r.list(ctx, `WHERE coach_id = $1 ORDER BY created_at DESC`, coachID.Hex())
}

func (r *TrainingPlanRepo) GetByClientAndCoachID(ctx context.Context, clientID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return r.list(ctx, `WHERE client_id = $1 AND coach_id = $2 ORDER BY created_at DESC`, clientID.Hex(), coachID.Hex())
}

func (r *TrainingPlanRepo) ListForClient(ctx context.Context, clientID primitive.ObjectID, filter repository.PlanFilter) ([]domain.TrainingPlan, error) {
	conds := []string{"client_id = $1"}
	args := []any{clientID.Hex()}
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.StartOnOrBefore != nil {
		args = append(args, domain.NormalizeDate(*filter.StartOnOrBefore))
		conds = append(conds, fmt.Sprintf("(start_date IS NULL OR start_date <= $%d)", len(args)))
	}
	where := "WHERE " + strings.Join(conds, " AND ") + " ORDER BY start_date ASC NULLS FIRST, created_at ASC, id ASC"
	return r.list(ctx, where, args...)
}

func (r *TrainingPlanRepo) list(ctx context.Context, clause string, args ...any) ([]domain.TrainingPlan, error) {
	rows, err := r.db.Query(ctx, `SELECT `+planColumns+` FROM training_plans `+clause+`;`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPlan)
}

func (r *TrainingPlanRepo) Update(ctx context.Context, plan *domain.TrainingPlan) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE training_plans SET
			name = $1, description = $2, duration = $3, status = $4, difficulty = $5,
			estimated_duration = $6, start_date = $7, end_date = $8, updated_at = $9
		WHERE id = $10;`,
		plan.Name, plan.Description, plan.Duration, string(plan.Status), string(plan.Difficulty),
		plan.EstimatedDuration, plan.StartDate, plan.EndDate, now(), plan.ID.Hex(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TrainingPlanRepo) Delete(ctx context.Context, planID, coachID primitive.ObjectID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM training_plans WHERE id = $1 AND coach_id = $2;`, planID.Hex(), coachID.Hex())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TrainingPlanRepo) CompleteExpired(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error) {
	query := `UPDATE training_plans SET status = $1, updated_at = $2
		WHERE status = $3 AND end_date IS NOT NULL AND end_date < $4`
	args := []any{string(domain.PlanCompleted), now(), string(domain.PlanActive), domain.NormalizeDate(asOf)}
	if clientID != primitive.NilObjectID {
		query += ` AND client_id = $5`
		args = append(args, clientID.Hex())
	}
	tag, err := r.db.Exec(ctx, query+";", args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPlan(s scanner) (domain.TrainingPlan, error) {
	var (
		p                                  domain.TrainingPlan
		id, coachID, clientID, status, dif string
	)
	err := s.Scan(&id, &coachID, &clientID, &p.Name, &p.Description, &p.Duration, &status, &dif,
		&p.EstimatedDuration, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.TrainingPlan{}, err
	}
	if p.ID, err = parseID(id); err != nil {
		return domain.TrainingPlan{}, err
	}
	if p.CoachID, err = parseID(coachID); err != nil {
		return domain.TrainingPlan{}, err
	}
	if p.ClientID, err = parseID(clientID); err != nil {
		return domain.TrainingPlan{}, err
	}
	p.Status = domain.PlanStatus(status)
	p.Difficulty = domain.Difficulty(dif)
	return p, nil
}

const planExerciseColumns = `id, plan_id, exercise_id, sets, reps, weight, time_minutes, rest_seconds,
	tempo, notes, order_index, created_at`

type PlanExerciseRepo struct {
	db *pgxpool.Pool
}

func NewPlanExerciseRepo(db *pgxpool.Pool) *PlanExerciseRepo {
	return &PlanExerciseRepo{
		db: db,
	}
}

func (r *PlanExerciseRepo) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT `+planExerciseColumns+` FROM plan_exercises WHERE plan_id = $1 ORDER BY order_index, created_at;`,
		planID.Hex(),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPlanExercise)
}

// ReplaceForPlan swaps the plan's items inside one transaction holding the plan row lock.
func (r *PlanExerciseRepo) ReplaceForPlan(ctx context.Context, planID primitive.ObjectID, items []domain.PlanExercise) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var locked string
	if err = tx.QueryRow(ctx, `SELECT id FROM training_plans WHERE id = $1 FOR UPDATE;`, planID.Hex()).Scan(&locked); err != nil {
		return notFound(err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM plan_exercises WHERE plan_id = $1;`, planID.Hex()); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	ts := now()
	for i := range items {
		items[i].ID = primitive.NewObjectID()
		items[i].PlanID = planID
		items[i].CreatedAt = ts
		it := items[i]
		batch.Queue(
			`INSERT INTO plan_exercises (`+planExerciseColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`,
			it.ID.Hex(), planID.Hex(), it.ExerciseID.Hex(), it.Sets, it.Reps, it.Weight,
			it.TimeMinutes, it.RestSeconds, it.Tempo, it.Notes, it.OrderIndex, it.CreatedAt,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	err = tx.SendBatch(ctx, batch).Close()
	return err
}

func scanPlanExercise(s scanner) (domain.PlanExercise, error) {
	var (
		pe                     domain.PlanExercise
		id, planID, exerciseID string
	)
	err := s.Scan(&id, &planID, &exerciseID, &pe.Sets, &pe.Reps, &pe.Weight, &pe.TimeMinutes,
		&pe.RestSeconds, &pe.Tempo, &pe.Notes, &pe.OrderIndex, &pe.CreatedAt)
	if err != nil {
		return domain.PlanExercise{}, err
	}
	if pe.ID, err = parseID(id); err != nil {
		return domain.PlanExercise{}, err
	}
	if pe.PlanID, err = parseID(planID); err != nil {
		return domain.PlanExercise{}, err
	}
	if pe.ExerciseID, err = parseID(exerciseID); err != nil {
		return domain.PlanExercise{}, err
	}
	return pe, nil
}
