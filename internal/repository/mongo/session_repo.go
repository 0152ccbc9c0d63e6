// internal/repository/mongo/session_repo.go
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

const sessionCollectionName = "workout_sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new workout session repository.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

// GetByID retrieves a single session by its ID.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error) {
	var ws domain.WorkoutSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ws)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

// FindOutstanding returns the client's Scheduled and In Progress sessions on date.
func (r *mongoSessionRepository) FindOutstanding(ctx context.Context, clientID primitive.ObjectID, date time.Time, planIDs []primitive.ObjectID) ([]domain.WorkoutSession, error) {
	if len(planIDs) == 0 {
		return []domain.WorkoutSession{}, nil
	}
	filter := bson.M{
		"clientId":      clientID,
		"scheduledDate": domain.NormalizeDate(date),
		"status":        bson.M{"$in": domain.OutstandingStatuses},
		"planId":        bson.M{"$in": planIDs},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.WorkoutSession](ctx, cursor)
}

// CreateIfAbsent upserts on the unique (clientId, planId, scheduledDate) index. Only
// $setOnInsert is used, so an existing row is returned untouched.
func (r *mongoSessionRepository) CreateIfAbsent(ctx context.Context, session *domain.WorkoutSession) (*domain.WorkoutSession, bool, error) {
	if session.ClientID == primitive.NilObjectID || session.PlanID == primitive.NilObjectID {
		return nil, false, errors.New("session requires clientId and planId")
	}
	session.ScheduledDate = domain.NormalizeDate(session.ScheduledDate)
	session.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	filter := bson.M{
		"clientId":      session.ClientID,
		"planId":        session.PlanID,
		"scheduledDate": session.ScheduledDate,
	}
	update := bson.M{"$setOnInsert": session}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored domain.WorkoutSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		// two concurrent upserts raced on the unique index; the loser reads the winner
		err = r.collection.FindOne(ctx, filter).Decode(&stored)
	}
	if err != nil {
		return nil, false, err
	}
	return &stored, stored.ID == session.ID, nil
}

// Transition updates the session only while its status still equals from.
func (r *mongoSessionRepository) Transition(ctx context.Context, id primitive.ObjectID, from, to domain.SessionStatus, change domain.SessionChange) (*domain.WorkoutSession, error) {
	set := bson.M{
		"status":    to,
		"updatedAt": time.Now().UTC(),
	}
	if change.StartedAt != nil {
		set["startedAt"] = *change.StartedAt
	}
	if change.CompletedDate != nil {
		set["completedDate"] = *change.CompletedDate
	}
	if change.DurationMinutes != nil {
		set["durationMinutes"] = *change.DurationMinutes
	}

	var ws domain.WorkoutSession
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set}, opts).Decode(&ws)
	if err == nil {
		return &ws, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	// distinguish a missing session from a lost race
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrStatusMismatch
}

// ListByClient retrieves a client's sessions, newest scheduled date first.
func (r *mongoSessionRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID, filter repository.SessionFilter) ([]domain.WorkoutSession, error) {
	query := bson.M{"clientId": clientID}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.PlanID != nil {
		query["planId"] = *filter.PlanID
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: -1}, {Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		findOptions.SetLimit(filter.Limit)
	}
	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.WorkoutSession](ctx, cursor)
}

func (r *mongoSessionRepository) CountByPlan(ctx context.Context, planID primitive.ObjectID, status domain.SessionStatus) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"planId": planID, "status": status})
}

func (r *mongoSessionRepository) CountByClient(ctx context.Context, clientID primitive.ObjectID, status domain.SessionStatus) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"clientId": clientID, "status": status})
}

// ListUpcoming retrieves open sessions of the plans from the given day on, soonest first.
func (r *mongoSessionRepository) ListUpcoming(ctx context.Context, planIDs []primitive.ObjectID, from time.Time, limit int64) ([]domain.WorkoutSession, error) {
	if len(planIDs) == 0 {
		return []domain.WorkoutSession{}, nil
	}
	filter := bson.M{
		"planId":        bson.M{"$in": planIDs},
		"status":        bson.M{"$in": domain.OutstandingStatuses},
		"scheduledDate": bson.M{"$gte": domain.NormalizeDate(from)},
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "scheduledDate", Value: 1}, {Key: "createdAt", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.WorkoutSession](ctx, cursor)
}

// SkipStale marks Scheduled sessions dated before the given day as Skipped.
func (r *mongoSessionRepository) SkipStale(ctx context.Context, before time.Time) (int64, error) {
	filter := bson.M{
		"status":        domain.SessionScheduled,
		"scheduledDate": bson.M{"$lt": domain.NormalizeDate(before)},
	}
	update := bson.M{"$set": bson.M{"status": domain.SessionSkipped, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// EnsureSessionIndexes creates necessary indexes for workout sessions.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "planId", Value: 1}, {Key: "scheduledDate", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "scheduledDate", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "scheduledDate", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
