package postgres

import (
	"context"
	"errors"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const feedbackColumns = `id, session_id, exercise_id, completed, feedback, actual_sets, actual_reps,
	actual_weight, created_at, updated_at`

type FeedbackRepo struct {
	db *pgxpool.Pool
}

func NewFeedbackRepo(db *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{
		db: db,
	}
}

func (r *FeedbackRepo) Get(ctx context.Context, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseFeedback, error) {
	row := r.db.QueryRow(
		ctx,
		`SELECT `+feedbackColumns+` FROM exercise_feedback WHERE session_id = $1 AND exercise_id = $2;`,
		sessionID.Hex(), exerciseID.Hex(),
	)
	f, err := scanFeedback(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (r *FeedbackRepo) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseFeedback, error) {
	return r.GetBySessionIDs(ctx, []primitive.ObjectID{sessionID})
}

func (r *FeedbackRepo) GetBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseFeedback, error) {
	if len(sessionIDs) == 0 {
		return []domain.ExerciseFeedback{}, nil
	}
	rows, err := r.db.Query(
		ctx,
		`SELECT `+feedbackColumns+` FROM exercise_feedback WHERE session_id = ANY($1) ORDER BY created_at;`,
		hexes(sessionIDs),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFeedback)
}

// Upsert inserts the record or updates only the fields present in patch. With
// patch.IfCompleted set the update only applies while the stored flag matches.
func (r *FeedbackRepo) Upsert(ctx context.Context, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error) {
	if patch.IfCompleted != nil && *patch.IfCompleted {
		return r.updateCompleted(ctx, sessionID, exerciseID, patch)
	}
	ts := now()
	completed := false
	if patch.Completed != nil {
		completed = *patch.Completed
	}
	text := ""
	if patch.Feedback != nil {
		text = *patch.Feedback
	}
	row := r.db.QueryRow(
		ctx,
		`INSERT INTO exercise_feedback (`+feedbackColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (session_id, exercise_id) DO UPDATE SET
			completed = CASE WHEN $10 THEN EXCLUDED.completed ELSE exercise_feedback.completed END,
			feedback = CASE WHEN $11 THEN EXCLUDED.feedback ELSE exercise_feedback.feedback END,
			actual_sets = COALESCE(EXCLUDED.actual_sets, exercise_feedback.actual_sets),
			actual_reps = COALESCE(EXCLUDED.actual_reps, exercise_feedback.actual_reps),
			actual_weight = COALESCE(EXCLUDED.actual_weight, exercise_feedback.actual_weight),
			updated_at = EXCLUDED.updated_at
		WHERE NOT $12 OR exercise_feedback.completed = FALSE
		RETURNING `+feedbackColumns+`;`,
		primitive.NewObjectID().Hex(), sessionID.Hex(), exerciseID.Hex(), completed, text,
		patch.ActualSets, patch.ActualReps, patch.ActualWeight, ts,
		patch.Completed != nil, patch.Feedback != nil, patch.IfCompleted != nil,
	)
	f, err := scanFeedback(row)
	if errors.Is(err, pgx.ErrNoRows) && patch.IfCompleted != nil {
		return nil, repository.ErrStatusMismatch
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// updateCompleted applies patch to a record that must exist with completed set.
func (r *FeedbackRepo) updateCompleted(ctx context.Context, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error) {
	row := r.db.QueryRow(
		ctx,
		`UPDATE exercise_feedback SET
			completed = COALESCE($3, completed),
			feedback = COALESCE($4, feedback),
			actual_sets = COALESCE($5, actual_sets),
			actual_reps = COALESCE($6, actual_reps),
			actual_weight = COALESCE($7, actual_weight),
			updated_at = $8
		WHERE session_id = $1 AND exercise_id = $2 AND completed = TRUE
		RETURNING `+feedbackColumns+`;`,
		sessionID.Hex(), exerciseID.Hex(), patch.Completed, patch.Feedback,
		patch.ActualSets, patch.ActualReps, patch.ActualWeight, now(),
	)
	f, err := scanFeedback(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrStatusMismatch
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanFeedback(s scanner) (domain.ExerciseFeedback, error) {
	var (
		f                         domain.ExerciseFeedback
		id, sessionID, exerciseID string
	)
	err := s.Scan(&id, &sessionID, &exerciseID, &f.Completed, &f.Feedback, &f.ActualSets, &f.ActualReps,
		&f.ActualWeight, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return domain.ExerciseFeedback{}, err
	}
	if f.ID, err = parseID(id); err != nil {
		return domain.ExerciseFeedback{}, err
	}
	if f.SessionID, err = parseID(sessionID); err != nil {
		return domain.ExerciseFeedback{}, err
	}
	if f.ExerciseID, err = parseID(exerciseID); err != nil {
		return domain.ExerciseFeedback{}, err
	}
	return f, nil
}
