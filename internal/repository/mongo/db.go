package mongo

import (
	"context"
	"fmt"
	"time"

	"fittrainer/pro/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI and pings the primary.
func ConnectDB(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. The unique indexes on sessions and
// feedback back the idempotent upserts, so a failure here is returned rather than logged.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Collection) error
	}{
		{userCollectionName, EnsureUserIndexes},
		{exerciseCollectionName, EnsureExerciseIndexes},
		{trainingPlanCollectionName, EnsureTrainingPlanIndexes},
		{planExerciseCollectionName, EnsurePlanExerciseIndexes},
		{sessionCollectionName, EnsureSessionIndexes},
		{feedbackCollectionName, EnsureFeedbackIndexes},
		{invoiceCollectionName, EnsureInvoiceIndexes},
	}
	for _, step := range steps {
		if err := step.fn(ctx, db.Collection(step.name)); err != nil {
			return fmt.Errorf("indexes for %s: %w", step.name, err)
		}
		log.Debugf("indexes ensured for collection %s", step.name)
	}
	return nil
}

// NewRepositories wires every MongoDB repository to the database.
func NewRepositories(client *mongo.Client, db *mongo.Database) *repository.Repositories {
	return &repository.Repositories{
		Users:         NewMongoUserRepository(db),
		Exercises:     NewMongoExerciseRepository(db),
		Plans:         NewMongoTrainingPlanRepository(db),
		PlanExercises: NewMongoPlanExerciseRepository(client, db),
		Sessions:      NewMongoSessionRepository(db),
		Feedback:      NewMongoFeedbackRepository(db),
		Invoices:      NewMongoInvoiceRepository(db),
	}
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor) ([]T, error) {
	defer cursor.Close(ctx)
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
