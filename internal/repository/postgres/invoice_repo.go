package postgres

import (
	"context"
	"errors"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const invoiceColumns = `id, coach_id, client_id, plan_id, amount, sessions_count, description, status,
	due_date, paid_date, created_at, updated_at`

type InvoiceRepo struct {
	db *pgxpool.Pool
}

func NewInvoiceRepo(db *pgxpool.Pool) *InvoiceRepo {
	return &InvoiceRepo{
		db: db,
	}
}

func (r *InvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice) (primitive.ObjectID, error) {
	if invoice.CoachID == primitive.NilObjectID || invoice.ClientID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("invoice requires coachId and clientId")
	}
	invoice.ID = primitive.NewObjectID()
	invoice.CreatedAt = now()
	invoice.UpdatedAt = invoice.CreatedAt

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`,
		invoice.ID.Hex(), invoice.CoachID.Hex(), invoice.ClientID.Hex(), optionalHex(invoice.PlanID),
		invoice.Amount, invoice.SessionsCount, invoice.Description, string(invoice.Status),
		invoice.DueDate, invoice.PaidDate, invoice.CreatedAt, invoice.UpdatedAt,
	)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return invoice.ID, nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1;`, id.Hex())
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

func (r *InvoiceRepo) GetByCoachID(ctx context.Context, coachID primitive.ObjectID) ([]domain.Invoice, error) {
	return r.list(ctx, `WHERE coach_id = $1`, coachID.Hex())
}

func (r *InvoiceRepo) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.Invoice, error) {
	return r.list(ctx, `WHERE client_id = $1`, clientID.Hex())
}

func (r *InvoiceRepo) list(ctx context.Context, where string, args ...any) ([]domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices `+where+` ORDER BY due_date DESC;`, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInvoice)
}

func (r *InvoiceRepo) Update(ctx context.Context, invoice *domain.Invoice) error {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE invoices SET
			amount = $1, sessions_count = $2, description = $3, status = $4, due_date = $5,
			paid_date = $6, plan_id = $7, updated_at = $8
		WHERE id = $9;`,
		invoice.Amount, invoice.SessionsCount, invoice.Description, string(invoice.Status),
		invoice.DueDate, invoice.PaidDate, optionalHex(invoice.PlanID), now(), invoice.ID.Hex(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *InvoiceRepo) Delete(ctx context.Context, id, coachID primitive.ObjectID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND coach_id = $2;`, id.Hex(), coachID.Hex())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *InvoiceRepo) CountByCoach(ctx context.Context, coachID primitive.ObjectID, status domain.InvoiceStatus) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE coach_id = $1 AND status = $2;`,
		coachID.Hex(), string(status)).Scan(&n)
	return n, err
}

func (r *InvoiceRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.db.Exec(
		ctx,
		`UPDATE invoices SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4;`,
		string(domain.InvoiceOverdue), now(), string(domain.InvoicePending), domain.NormalizeDate(asOf),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanInvoice(s scanner) (domain.Invoice, error) {
	var (
		inv                           domain.Invoice
		id, coachID, clientID, status string
		planID                        *string
	)
	err := s.Scan(&id, &coachID, &clientID, &planID, &inv.Amount, &inv.SessionsCount, &inv.Description,
		&status, &inv.DueDate, &inv.PaidDate, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, err
	}
	if inv.ID, err = parseID(id); err != nil {
		return domain.Invoice{}, err
	}
	if inv.CoachID, err = parseID(coachID); err != nil {
		return domain.Invoice{}, err
	}
	if inv.ClientID, err = parseID(clientID); err != nil {
		return domain.Invoice{}, err
	}
	if inv.PlanID, err = parseOptionalID(planID); err != nil {
		return domain.Invoice{}, err
	}
	inv.Status = domain.InvoiceStatus(status)
	return inv, nil
}
