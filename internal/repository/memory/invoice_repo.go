package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type invoiceRepository struct {
	s *Store
}

func NewInvoiceRepository(s *Store) repository.InvoiceRepository {
	return &invoiceRepository{s: s}
}

func (r *invoiceRepository) Create(_ context.Context, invoice *domain.Invoice) (primitive.ObjectID, error) {
	if invoice.CoachID == primitive.NilObjectID || invoice.ClientID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("invoice requires coachId and clientId")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	invoice.ID = primitive.NewObjectID()
	invoice.DueDate = domain.NormalizeDate(invoice.DueDate)
	invoice.CreatedAt = now()
	invoice.UpdatedAt = invoice.CreatedAt
	r.s.invoices[invoice.ID] = *invoice
	return invoice.ID, nil
}

func (r *invoiceRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (r *invoiceRepository) GetByCoachID(_ context.Context, coachID primitive.ObjectID) ([]domain.Invoice, error) {
	return r.list(func(inv *domain.Invoice) bool { return inv.CoachID == coachID }), nil
}

func (r *invoiceRepository) GetByClientID(_ context.Context, clientID primitive.ObjectID) ([]domain.Invoice, error) {
	return r.list(func(inv *domain.Invoice) bool { return inv.ClientID == clientID }), nil
}

func (r *invoiceRepository) Update(_ context.Context, invoice *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.invoices[invoice.ID]
	if !ok {
		return repository.ErrNotFound
	}
	invoice.CoachID = existing.CoachID
	invoice.ClientID = existing.ClientID
	invoice.CreatedAt = existing.CreatedAt
	invoice.UpdatedAt = now()
	r.s.invoices[invoice.ID] = *invoice
	return nil
}

func (r *invoiceRepository) Delete(_ context.Context, id, coachID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok || inv.CoachID != coachID {
		return repository.ErrNotFound
	}
	delete(r.s.invoices, id)
	return nil
}

func (r *invoiceRepository) CountByCoach(_ context.Context, coachID primitive.ObjectID, status domain.InvoiceStatus) (int64, error) {
	return int64(len(r.list(func(inv *domain.Invoice) bool {
		return inv.CoachID == coachID && inv.Status == status
	}))), nil
}

func (r *invoiceRepository) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	asOf = domain.NormalizeDate(asOf)
	var n int64
	for id, inv := range r.s.invoices {
		if inv.Status == domain.InvoicePending && inv.DueDate.Before(asOf) {
			inv.Status = domain.InvoiceOverdue
			inv.UpdatedAt = now()
			r.s.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (r *invoiceRepository) list(keep func(*domain.Invoice) bool) []domain.Invoice {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Invoice{}
	for _, inv := range r.s.invoices {
		if keep(&inv) {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DueDate.After(out[j].DueDate) })
	return out
}
