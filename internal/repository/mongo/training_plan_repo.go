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

const trainingPlanCollectionName = "training_plans"

// mongoTrainingPlanRepository implements repository.TrainingPlanRepository
type mongoTrainingPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoTrainingPlanRepository creates a new TrainingPlan repository.
func NewMongoTrainingPlanRepository(db *mongo.Database) repository.TrainingPlanRepository {
	return &mongoTrainingPlanRepository{
		collection: db.Collection(trainingPlanCollectionName),
	}
}

// Create inserts a new training plan.
func (r *mongoTrainingPlanRepository) Create(ctx context.Context, plan *domain.TrainingPlan) (primitive.ObjectID, error) {
	if plan.ClientID == primitive.NilObjectID || plan.CoachID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires clientId, coachId, and name")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, plan); err != nil {
		return primitive.NilObjectID, err
	}
	return plan.ID, nil
}

// GetByID retrieves a single training plan by its ID.
func (r *mongoTrainingPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.TrainingPlan, error) {
	var plan domain.TrainingPlan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// GetByCoachID retrieves every plan authored by a coach, newest first.
func (r *mongoTrainingPlanRepository) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	return r.find(ctx, bson.M{"coachId": coachID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// GetByClientAndCoachID retrieves all plans for a specific client created by a specific coach.
func (r *mongoTrainingPlanRepository) GetByClientAndCoachID(ctx context.Context, clientID, coachID primitive.ObjectID) ([]domain.TrainingPlan, error) {
	filter := bson.M{
		"clientId": clientID,
		"coachId":  coachID,
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListForClient lists a client's plans by start date. MongoDB sorts missing fields before
// any date, which gives the unset-first order directly.
func (r *mongoTrainingPlanRepository) ListForClient(ctx context.Context, clientID primitive.ObjectID, filter repository.PlanFilter) ([]domain.TrainingPlan, error) {
	query := bson.M{"clientId": clientID}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.StartOnOrBefore != nil {
		query["$or"] = bson.A{
			bson.M{"startDate": bson.M{"$exists": false}},
			bson.M{"startDate": nil},
			bson.M{"startDate": bson.M{"$lte": *filter.StartOnOrBefore}},
		}
	}
	sort := bson.D{{Key: "startDate", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	return r.find(ctx, query, options.Find().SetSort(sort))
}

func (r *mongoTrainingPlanRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.TrainingPlan, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.TrainingPlan](ctx, cursor)
}

// Update overwrites the coach-editable fields. Owner and client cannot be changed.
func (r *mongoTrainingPlanRepository) Update(ctx context.Context, plan *domain.TrainingPlan) error {
	if plan.ID == primitive.NilObjectID {
		return errors.New("training plan ID is required for update")
	}

	set := bson.M{
		"name":              plan.Name,
		"description":       plan.Description,
		"duration":          plan.Duration,
		"status":            plan.Status,
		"difficulty":        plan.Difficulty,
		"estimatedDuration": plan.EstimatedDuration,
		"updatedAt":         time.Now().UTC(),
	}
	unset := bson.M{}
	if plan.StartDate != nil {
		set["startDate"] = *plan.StartDate
	} else {
		unset["startDate"] = ""
	}
	if plan.EndDate != nil {
		set["endDate"] = *plan.EndDate
	} else {
		unset["endDate"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": plan.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a plan, provided coachID owns it.
func (r *mongoTrainingPlanRepository) Delete(ctx context.Context, planID, coachID primitive.ObjectID) error {
	if planID == primitive.NilObjectID || coachID == primitive.NilObjectID {
		return errors.New("plan ID and coach ID are required for deletion")
	}
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": planID, "coachId": coachID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound // missing or owned by another coach
	}
	return nil
}

// CompleteExpired flips Active plans whose end date passed to Completed.
func (r *mongoTrainingPlanRepository) CompleteExpired(ctx context.Context, clientID primitive.ObjectID, asOf time.Time) (int64, error) {
	filter := bson.M{
		"status":  domain.PlanActive,
		"endDate": bson.M{"$ne": nil, "$lt": domain.NormalizeDate(asOf)},
	}
	if clientID != primitive.NilObjectID {
		filter["clientId"] = clientID
	}
	update := bson.M{"$set": bson.M{"status": domain.PlanCompleted, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// EnsureTrainingPlanIndexes creates necessary indexes.
func EnsureTrainingPlanIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "coachId", Value: 1}, {Key: "clientId", Value: 1}},
			Options: options.Index(),
		},
		{
			// visibility listing
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "status", Value: 1}, {Key: "startDate", Value: 1}},
			Options: options.Index(),
		},
		{
			// expiry sweep
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "endDate", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
