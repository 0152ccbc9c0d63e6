// Package memory keeps every repository in process memory. It backs the test suites and
// the "memory" database driver used for local runs.
package memory

import (
	"sync"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sessionKey struct {
	clientID primitive.ObjectID
	planID   primitive.ObjectID
	date     time.Time
}

type feedbackKey struct {
	sessionID  primitive.ObjectID
	exerciseID primitive.ObjectID
}

// Store holds all collections behind one lock so multi-record operations stay atomic.
type Store struct {
	mu sync.RWMutex

	users         map[primitive.ObjectID]domain.User
	exercises     map[primitive.ObjectID]domain.Exercise
	plans         map[primitive.ObjectID]domain.TrainingPlan
	planExercises map[primitive.ObjectID][]domain.PlanExercise // by plan id
	sessions      map[primitive.ObjectID]domain.WorkoutSession
	sessionKeys   map[sessionKey]primitive.ObjectID
	feedback      map[feedbackKey]domain.ExerciseFeedback
	invoices      map[primitive.ObjectID]domain.Invoice
}

func NewStore() *Store {
	return &Store{
		users:         make(map[primitive.ObjectID]domain.User),
		exercises:     make(map[primitive.ObjectID]domain.Exercise),
		plans:         make(map[primitive.ObjectID]domain.TrainingPlan),
		planExercises: make(map[primitive.ObjectID][]domain.PlanExercise),
		sessions:      make(map[primitive.ObjectID]domain.WorkoutSession),
		sessionKeys:   make(map[sessionKey]primitive.ObjectID),
		feedback:      make(map[feedbackKey]domain.ExerciseFeedback),
		invoices:      make(map[primitive.ObjectID]domain.Invoice),
	}
}

// NewRepositories wires every memory repository to a fresh store.
func NewRepositories() *repository.Repositories {
	s := NewStore()
	return &repository.Repositories{
		Users:         NewUserRepository(s),
		Exercises:     NewExerciseRepository(s),
		Plans:         NewTrainingPlanRepository(s),
		PlanExercises: NewPlanExerciseRepository(s),
		Sessions:      NewSessionRepository(s),
		Feedback:      NewFeedbackRepository(s),
		Invoices:      NewInvoiceRepository(s),
	}
}

func now() time.Time {
	return time.Now().UTC()
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
