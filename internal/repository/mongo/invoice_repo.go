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

const invoiceCollectionName = "invoices"

// mongoInvoiceRepository implements repository.InvoiceRepository
type mongoInvoiceRepository struct {
	collection *mongo.Collection
}

// NewMongoInvoiceRepository creates a new invoice repository.
func NewMongoInvoiceRepository(db *mongo.Database) repository.InvoiceRepository {
	return &mongoInvoiceRepository{
		collection: db.Collection(invoiceCollectionName),
	}
}

// Create inserts a new invoice.
func (r *mongoInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) (primitive.ObjectID, error) {
	if invoice.CoachID == primitive.NilObjectID || invoice.ClientID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("invoice requires coachId and clientId")
	}
	invoice.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, invoice); err != nil {
		return primitive.NilObjectID, err
	}
	return invoice.ID, nil
}

func (r *mongoInvoiceRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&invoice)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *mongoInvoiceRepository) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Invoice, error) {
	return r.find(ctx, bson.M{"coachId": coachID})
}

func (r *mongoInvoiceRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Invoice, error) {
	return r.find(ctx, bson.M{"clientId": clientID})
}

func (r *mongoInvoiceRepository) find(ctx context.Context, filter bson.M) ([]domain.Invoice, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "dueDate", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Invoice](ctx, cursor)
}

// Update overwrites the mutable invoice fields.
func (r *mongoInvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	set := bson.M{
		"amount":        invoice.Amount,
		"sessionsCount": invoice.SessionsCount,
		"description":   invoice.Description,
		"status":        invoice.Status,
		"dueDate":       invoice.DueDate,
		"updatedAt":     time.Now().UTC(),
	}
	unset := bson.M{}
	if invoice.PaidDate != nil {
		set["paidDate"] = *invoice.PaidDate
	} else {
		unset["paidDate"] = ""
	}
	if invoice.PlanID != nil {
		set["planId"] = *invoice.PlanID
	} else {
		unset["planId"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": invoice.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an invoice, provided coachID issued it.
func (r *mongoInvoiceRepository) Delete(ctx context.Context, id, coachID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "coachId": coachID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoInvoiceRepository) CountByCoach(ctx context.Context, coachID primitive.ObjectID, status domain.InvoiceStatus) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"coachId": coachID, "status": status})
}

// MarkOverdue moves Pending invoices due before asOf to Overdue.
func (r *mongoInvoiceRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	filter := bson.M{
		"status":  domain.InvoicePending,
		"dueDate": bson.M{"$lt": domain.NormalizeDate(asOf)},
	}
	update := bson.M{"$set": bson.M{"status": domain.InvoiceOverdue, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// EnsureInvoiceIndexes creates necessary indexes for invoices.
func EnsureInvoiceIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "coachId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "dueDate", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
