package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"fittrainer/pro/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

//go:embed schema.sql
var schema string

type NewDBPoolParams struct {
	ConnString string
	MaxConns   int32
}

func NewDBPool(ctx context.Context, params NewDBPoolParams) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(params.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	if params.MaxConns > 0 {
		poolConfig.MaxConns = params.MaxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// NewRepositories wires every Postgres repository to the pool.
func NewRepositories(db *pgxpool.Pool) *repository.Repositories {
	return &repository.Repositories{
		Users:         NewUserRepo(db),
		Exercises:     NewExerciseRepo(db),
		Plans:         NewTrainingPlanRepo(db),
		PlanExercises: NewPlanExerciseRepo(db),
		Sessions:      NewSessionRepo(db),
		Feedback:      NewFeedbackRepo(db),
		Invoices:      NewInvoiceRepo(db),
	}
}

// https://www.postgresql.org/docs/current/errcodes-appendix.html

// IsUniqueViolationError checks if the error is a unique violation error
func IsUniqueViolationError(err error) bool {
	var pqErr *pgconn.PgError
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func parseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("stored id %q: %w", hex, err)
	}
	return id, nil
}

func parseOptionalID(hex *string) (*primitive.ObjectID, error) {
	if hex == nil {
		return nil, nil
	}
	id, err := parseID(*hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optionalHex(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	hex := id.Hex()
	return &hex
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

func now() time.Time {
	return time.Now().UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

// collect drains rows through scan, closing them afterwards.
func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ExerciseRepository     = (*ExerciseRepo)(nil)
	_ repository.TrainingPlanRepository = (*TrainingPlanRepo)(nil)
	_ repository.PlanExerciseRepository = (*PlanExerciseRepo)(nil)
	_ repository.SessionRepository      = (*SessionRepo)(nil)
	_ repository.FeedbackRepository     = (*FeedbackRepo)(nil)
	_ repository.InvoiceRepository      = (*InvoiceRepo)(nil)
)
