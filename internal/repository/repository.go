package repository

import (
	"context"
	"time"

	"fittrainer/pro/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound       = RepositoryError("not found")
	ErrUpdateFailed   = RepositoryError("update failed")
	ErrDeleteFailed   = RepositoryError("delete failed")
	ErrDuplicateEmail = RepositoryError("email already registered")
	// ErrStatusMismatch is returned by conditional updates whose expected current status
	// no longer holds.
	ErrStatusMismatch = RepositoryError("status mismatch")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
	AddClientIDToCoach(ctx context.Context, coachID, clientID primitive.ObjectID) error
	GetClientsByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
	SetCoachForClient(ctx context.Context, clientID, coachID primitive.ObjectID) error
}

// ExerciseRepository defines the interface for interacting with exercise data.
type ExerciseRepository interface {
	Create(ctx context.Context, exercise *domain.Exercise) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Exercise, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.Exercise, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Exercise, error)
	Update(ctx context.Context, exercise *domain.Exercise) error
	Delete(ctx context.Context, id primitive.ObjectID, coachID primitive.ObjectID) error // coach must own it
}

// PlanFilter narrows a client's plan listing. Zero values do not filter.
type PlanFilter struct {
	Statuses []domain.PlanStatus
	// StartOnOrBefore keeps plans whose start date is unset or on/before this date.
	StartOnOrBefore *time.Time
}

// TrainingPlanRepository defines the interface for interacting with training plan data.
// Client listings are ordered by start date ascending, unset start dates first,
// then by creation time.
type TrainingPlanRepository interface {
	Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.TrainingPlan, error)
	GetByClientAndCoachID(ctx context.Context, clientID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error)
	ListForClient(ctx context.Context, clientID primitive.ObjectID, filter PlanFilter) ([]domain.TrainingPlan, error)
	Update(ctx context.Context, plan *domain.TrainingPlan) error
	Delete(ctx context.Context, planID, coachID primitive.ObjectID) error
	// CompleteExpired moves Active plans whose end date is before asOf to Completed.
	// primitive.NilObjectID as clientID applies to every client.
	CompleteExpired(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error)
}

// PlanExerciseRepository stores the ordered line items of plans.
type PlanExerciseRepository interface {
	// GetByPlanID returns items sorted by order index.
	GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error)
	// ReplaceForPlan atomically swaps the whole item set of a plan.
	ReplaceForPlan(ctx context.Context, planID primitive.ObjectID, items []domain.PlanExercise) error
}

// SessionFilter narrows a client's session listing. Zero values do not filter.
type SessionFilter struct {
	Statuses []domain.SessionStatus
	PlanID   *primitive.ObjectID
	Limit    int64
}

// SessionRepository defines the interface for interacting with workout sessions.
// At most one session exists per (client, plan, scheduled date).
type SessionRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error)
	// FindOutstanding returns Scheduled and In Progress sessions of the client on the date,
	// restricted to planIDs.
	FindOutstanding(ctx context.Context, clientID primitive.ObjectID, date time.Time, planIDs []primitive.ObjectID) ([]domain.WorkoutSession, error)
	// CreateIfAbsent inserts the session unless one already exists for its
	// (client, plan, scheduled date). It returns the stored row and whether it was created.
	CreateIfAbsent(ctx context.Context, session *domain.WorkoutSession) (*domain.WorkoutSession, bool, error)
	// Transition moves a session from one status to another and writes change alongside.
	// It returns ErrStatusMismatch when the stored status is not from.
	Transition(ctx context.Context, id primitive.ObjectID, from, to domain.SessionStatus, change domain.SessionChange) (*domain.WorkoutSession, error)
	// ListByClient returns sessions newest first by scheduled date.
	ListByClient(ctx context.Context, clientID primitive.ObjectID, filter SessionFilter) ([]domain.WorkoutSession, error)
	CountByPlan(ctx context.Context, planID primitive.ObjectID, status domain.SessionStatus) (int64, error)
	CountByClient(ctx context.Context, clientID primitive.ObjectID, status domain.SessionStatus) (int64, error)
	// ListUpcoming returns Scheduled and In Progress sessions of the given plans dated on or
	// after from, soonest first.
	ListUpcoming(ctx context.Context, planIDs []primitive.ObjectID, from time.Time, limit int64) ([]domain.WorkoutSession, error)
	// SkipStale marks Scheduled sessions dated before the given date as Skipped.
	SkipStale(ctx context.Context, before time.Time) (int64, error)
}

// FeedbackRepository stores per-session, per-exercise feedback. At most one record exists per
// (session, exercise).
type FeedbackRepository interface {
	Get(ctx context.Context, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseFeedback, error)
	GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseFeedback, error)
	GetBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseFeedback, error)
	// Upsert applies patch to the record, creating it on first write. It returns
	// ErrStatusMismatch when patch.IfCompleted does not match the stored flag.
	Upsert(ctx context.Context, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error)
}

// InvoiceRepository defines the interface for interacting with invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *domain.Invoice) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Invoice, error)
	GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Invoice, error)
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Invoice, error)
	Update(ctx context.Context, invoice *domain.Invoice) error
	Delete(ctx context.Context, id, coachID primitive.ObjectID) error
	CountByCoach(ctx context.Context, coachID primitive.ObjectID, status domain.InvoiceStatus) (int64, error)
	// MarkOverdue moves Pending invoices due before asOf to Overdue.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// Repositories bundles one implementation of every repository.
type Repositories struct {
	Users         UserRepository
	Exercises     ExerciseRepository
	Plans         TrainingPlanRepository
	PlanExercises PlanExerciseRepository
	Sessions      SessionRepository
	Feedback      FeedbackRepository
	Invoices      InvoiceRepository
}
