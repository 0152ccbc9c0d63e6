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

const feedbackCollectionName = "exercise_feedback"

// mongoFeedbackRepository implements repository.FeedbackRepository
type mongoFeedbackRepository struct {
	collection *mongo.Collection
}

// NewMongoFeedbackRepository creates a new exercise feedback repository.
func NewMongoFeedbackRepository(db *mongo.Database) repository.FeedbackRepository {
	return &mongoFeedbackRepository{
		collection: db.Collection(feedbackCollectionName),
	}
}

func (r *mongoFeedbackRepository) Get(ctx context.Context, sessionID, exerciseID primitive.ObjectID) (*domain.ExerciseFeedback, error) {
	var f domain.ExerciseFeedback
	err := r.collection.FindOne(ctx, bson.M{"sessionId": sessionID, "exerciseId": exerciseID}).Decode(&f)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *mongoFeedbackRepository) GetBySessionID(ctx context.Context, sessionID primitive.ObjectID) ([]domain.ExerciseFeedback, error) {
	return r.GetBySessionIDs(ctx, []primitive.ObjectID{sessionID})
}

func (r *mongoFeedbackRepository) GetBySessionIDs(ctx context.Context, sessionIDs []primitive.ObjectID) ([]domain.ExerciseFeedback, error) {
	if len(sessionIDs) == 0 {
		return []domain.ExerciseFeedback{}, nil
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": bson.M{"$in": sessionIDs}}, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.ExerciseFeedback](ctx, cursor)
}

// Upsert writes only the fields present in patch. The unique (sessionId, exerciseId)
// index keeps a single record per pair.
func (r *mongoFeedbackRepository) Upsert(ctx context.Context, sessionID, exerciseID primitive.ObjectID, patch domain.FeedbackPatch) (*domain.ExerciseFeedback, error) {
	now := time.Now().UTC()
	set := bson.M{"updatedAt": now}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}
	if patch.Feedback != nil {
		set["feedback"] = *patch.Feedback
	}
	if patch.ActualSets != nil {
		set["actualSets"] = *patch.ActualSets
	}
	if patch.ActualReps != nil {
		set["actualReps"] = *patch.ActualReps
	}
	if patch.ActualWeight != nil {
		set["actualWeight"] = *patch.ActualWeight
	}
	setOnInsert := bson.M{
		"_id":       primitive.NewObjectID(),
		"createdAt": now,
	}
	if patch.Completed == nil {
		setOnInsert["completed"] = false
	}

	filter := bson.M{"sessionId": sessionID, "exerciseId": exerciseID}
	update := bson.M{"$set": set, "$setOnInsert": setOnInsert}
	// only an expected "not completed" may create the record
	upsert := patch.IfCompleted == nil || !*patch.IfCompleted
	if patch.IfCompleted != nil {
		filter["completed"] = *patch.IfCompleted
	}
	opts := options.FindOneAndUpdate().SetUpsert(upsert).SetReturnDocument(options.After)

	var f domain.ExerciseFeedback
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&f)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		if patch.IfCompleted != nil {
			// the record exists with the other flag
			return nil, repository.ErrStatusMismatch
		}
		// lost an insert race; the record exists now so retry as a plain update
		err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&f)
	}
	if errors.Is(err, mongo.ErrNoDocuments) && patch.IfCompleted != nil {
		return nil, repository.ErrStatusMismatch
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// EnsureFeedbackIndexes creates necessary indexes for exercise feedback.
func EnsureFeedbackIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "exerciseId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
