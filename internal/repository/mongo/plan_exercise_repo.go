package mongo

import (
	"context"
	"errors"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planExerciseCollectionName = "plan_exercises"

// mongoPlanExerciseRepository implements repository.PlanExerciseRepository. Replacing a
// plan's items runs in a transaction, which needs a replica set.
type mongoPlanExerciseRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	plans      *mongo.Collection
}

// NewMongoPlanExerciseRepository creates a new plan exercise repository.
func NewMongoPlanExerciseRepository(client *mongo.Client, db *mongo.Database) repository.PlanExerciseRepository {
	return &mongoPlanExerciseRepository{
		client:     client,
		collection: db.Collection(planExerciseCollectionName),
		plans:      db.Collection(trainingPlanCollectionName),
	}
}

// GetByPlanID retrieves the items of a plan in order.
func (r *mongoPlanExerciseRepository) GetByPlanID(ctx context.Context, planID primitive.ObjectID) ([]domain.PlanExercise, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}, {Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"planId": planID}, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.PlanExercise](ctx, cursor)
}

// ReplaceForPlan deletes the plan's items and inserts the new set in one transaction.
func (r *mongoPlanExerciseRepository) ReplaceForPlan(ctx context.Context, planID primitive.ObjectID, items []domain.PlanExercise) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := r.plans.FindOne(sc, bson.M{"_id": planID}).Err(); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, repository.ErrNotFound
			}
			return nil, err
		}
		if _, err := r.collection.DeleteMany(sc, bson.M{"planId": planID}); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		now := time.Now().UTC()
		docs := make([]interface{}, 0, len(items))
		for i := range items {
			items[i].ID = primitive.NewObjectID()
			items[i].PlanID = planID
			items[i].CreatedAt = now
			docs = append(docs, items[i])
		}
		_, err := r.collection.InsertMany(sc, docs)
		return nil, err
	})
	return err
}

// EnsurePlanExerciseIndexes creates necessary indexes for plan items.
func EnsurePlanExerciseIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "planId", Value: 1}, {Key: "orderIndex", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
