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

const sessionColumns = `id, client_id, plan_id, scheduled_date, status, started_at, completed_date,
	duration_minutes, created_at, updated_at`

type SessionRepo struct {
	db *pgxpool.Pool
}

func NewSessionRepo(db *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{
		db: db,
	}
}

func (r *SessionRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	row := r.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1;`, id.Hex())
	ws, err := scanSession(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &ws, nil
}

func (r *SessionRepo) FindOutstanding(ctx context.Context, clientID primitive.ObjectID, date time.Time, planIDs []primitive.ObjectID) ([]domain.WorkoutSession, error) {
	if len(planIDs) == 0 {
		return []domain.WorkoutSession{}, nil
	}
	rows, err := r.db.Query(
		ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		WHERE client_id = $1 AND scheduled_date = $2 AND status = ANY($3) AND plan_id = ANY($4)
		ORDER BY created_at;`,
		clientID.Hex(), domain.NormalizeDate(date), statusStrings(domain.OutstandingStatuses), hexes(planIDs),
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSession)
}

// CreateIfAbsent relies on the unique (client_id, plan_id, scheduled_date) constraint.
func (r *SessionRepo) CreateIfAbsent(ctx context.Context, session *domain.WorkoutSession) (*domain.WorkoutSession, bool, error) {
	if session.ClientID == primitive.NilObjectID || session.PlanID == primitive.NilObjectID {
		return nil, false, errors.New("session requires clientId and planId")
	}
	session.ID = primitive.NewObjectID()
	session.ScheduledDate = domain.NormalizeDate(session.ScheduledDate)
	session.CreatedAt = now()
	session.UpdatedAt = session.CreatedAt

	row := r.db.QueryRow(
		ctx,
		`INSERT INTO workout_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (client_id, plan_id, scheduled_date) DO NOTHING
		RETURNING `+sessionColumns+`;`,
		session.ID.Hex(), session.ClientID.Hex(), session.PlanID.Hex(), session.ScheduledDate,
		string(session.Status), session.StartedAt, session.CompletedDate, session.DurationMinutes,
		session.CreatedAt, session.UpdatedAt,
	)
	ws, err := scanSession(row)
	if err == nil {
		return &ws, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	row = r.db.QueryRow(
		ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions
		WHERE client_id = $1 AND plan_id = $2 AND scheduled_date = $3;`,
		session.ClientID.Hex(), session.PlanID.Hex(), session.ScheduledDate,
	)
	if ws, err = scanSession(row); err != nil {
		return nil, false, err
	}
	return &ws, false, nil
}

func (r *SessionRepo) Transition(ctx context.Context, id primitive.ObjectID, from, to domain.SessionStatus, change domain.SessionChange) (*domain.WorkoutSession, error) {
	row := r.db.QueryRow(
		ctx,
		`UPDATE workout_sessions SET
			status = $1,
			started_at = COALESCE($2, started_at),
			completed_date = COALESCE($3, completed_date),
			duration_minutes = COALESCE($4, duration_minutes),
			updated_at = $5
		WHERE id = $6 AND status = $7
		RETURNING `+sessionColumns+`;`,
		string(to), change.StartedAt, change.CompletedDate, change.DurationMinutes, now(), id.Hex(), string(from),
	)
	ws, err := scanSession(row)
	if err == nil {
		return &ws, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrStatusMismatch
}

func (r *SessionRepo) ListByClient(ctx context.Context, clientID primitive.ObjectID, filter repository.SessionFilter) ([]domain.WorkoutSession, error) {
	conds := []string{"client_id = $1"}
	args := []any{clientID.Hex()}
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.PlanID != nil {
		args = append(args, filter.PlanID.Hex())
		conds = append(conds, fmt.Sprintf("plan_id = $%d", len(args)))
	}
	query := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY scheduled_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.db.Query(ctx, query+";", args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSession)
}

func (r *SessionRepo) CountByPlan(ctx context.Context, planID primitive.ObjectID, status domain.SessionStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM workout_sessions WHERE plan_id = $1 AND status = $2;`,
		planID.Hex(), string(status)).Scan(&n)
	return n, err
}

func (r *SessionRepo) CountByClient(ctx context.Context, clientID primitive.ObjectID, status domain.SessionStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM workout_sessions WHERE client_id = $1 AND status = $2;`,
		clientID.Hex(), string(status)).Scan(&n)
	return n, err
}

func (r *SessionRepo) ListUpcoming(ctx context.Context, planIDs []primitive.ObjectID, from time.Time, limit int64) ([]domain.WorkoutSession, error) {
	if len(planIDs) == 0 {
		return []domain.WorkoutSession{}, nil
	}
	query := `SELECT ` + sessionColumns + ` FROM workout_sessions
		WHERE plan_id = ANY($1) AND status = ANY($2) AND scheduled_date >= $3
		ORDER BY scheduled_date, created_at`
	args := []any{hexes(planIDs), statusStrings(domain.OutstandingStatuses), domain.NormalizeDate(from)}
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $4`
	}
	rows, err := r.db.Query(ctx, query+";", args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSession)
}

func (r *SessionRepo) SkipStale(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout_sessions SET status = $1, updated_at = $2 WHERE status = $3 AND scheduled_date < $4;`,
		string(domain.SessionSkipped), now(), string(domain.SessionScheduled), domain.NormalizeDate(before),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func scanSession(s scanner) (domain.WorkoutSession, error) {
	var (
		ws                         domain.WorkoutSession
		id, clientID, planID, stat string
	)
	err := s.Scan(&id, &clientID, &planID, &ws.ScheduledDate, &stat, &ws.StartedAt, &ws.CompletedDate,
		&ws.DurationMinutes, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return domain.WorkoutSession{}, err
	}
	if ws.ID, err = parseID(id); err != nil {
		return domain.WorkoutSession{}, err
	}
	if ws.ClientID, err = parseID(clientID); err != nil {
		return domain.WorkoutSession{}, err
	}
	if ws.PlanID, err = parseID(planID); err != nil {
		return domain.WorkoutSession{}, err
	}
	ws.Status = domain.SessionStatus(stat)
	return ws, nil
}
