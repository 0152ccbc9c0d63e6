package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InvoiceInput struct {
	ClientID      primitive.ObjectID
	PlanID        *primitive.ObjectID
	Amount        float64
	SessionsCount int
	Description   string
	DueDate       time.Time
}

type InvoiceService interface {
	CreateInvoice(ctx context.Context, coachID primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, actor Actor, invoiceID primitive.ObjectID) (*domain.Invoice, error)
	// ListInvoices returns the coach's issued or the client's received invoices, latest due first.
	ListInvoices(ctx context.Context, actor Actor) ([]domain.Invoice, error)
	UpdateInvoice(ctx context.Context, coachID, invoiceID primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, coachID, invoiceID primitive.ObjectID, paidOn time.Time) (*domain.Invoice, error)
	CancelInvoice(ctx context.Context, coachID, invoiceID primitive.ObjectID) (*domain.Invoice, error)
	DeleteInvoice(ctx context.Context, coachID, invoiceID primitive.ObjectID) error
	// MarkOverdue moves Pending invoices due before asOf to Overdue.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type invoiceService struct {
	base
	userRepo    repository.UserRepository
	planRepo    repository.TrainingPlanRepository
	invoiceRepo repository.InvoiceRepository
}

func NewInvoiceService(repos *repository.Repositories, opts Options) InvoiceService {
	return &invoiceService{
		base:        newBase(opts),
		userRepo:    repos.Users,
		planRepo:    repos.Plans,
		invoiceRepo: repos.Invoices,
	}
}

func validateInvoice(in *InvoiceInput) error {
	in.Description = strings.TrimSpace(in.Description)
	if in.ClientID == primitive.NilObjectID {
		return invalid("clientId", "is required")
	}
	if in.Amount <= 0 {
		return invalid("amount", "must be positive")
	}
	if in.SessionsCount < 0 {
		return invalid("sessionsCount", "must not be negative")
	}
	if in.DueDate.IsZero() {
		return invalid("dueDate", "is required")
	}
	in.DueDate = domain.NormalizeDate(in.DueDate)
	return nil
}

// checkRefs verifies the client is managed by the coach and the plan, when given, belongs to both.
func (s *invoiceService) checkRefs(ctx context.Context, coachID primitive.ObjectID, in InvoiceInput) error {
	if _, err := loadClientOf(ctx, s.userRepo, coachID, in.ClientID); err != nil {
		return err
	}
	if in.PlanID == nil {
		return nil
	}
	plan, err := loadPlanFor(ctx, s.planRepo, CoachActor(coachID), *in.PlanID)
	if err != nil {
		return err
	}
	if plan.ClientID != in.ClientID {
		return invalid("planId", "belongs to another client")
	}
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, coachID primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error) {
	if err := validateInvoice(&in); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.checkRefs(ctx, coachID, in); err != nil {
		return nil, err
	}
	invoice := &domain.Invoice{
		CoachID:       coachID,
		ClientID:      in.ClientID,
		PlanID:        in.PlanID,
		Amount:        in.Amount,
		SessionsCount: in.SessionsCount,
		Description:   in.Description,
		Status:        domain.InvoicePending,
		DueDate:       in.DueDate,
	}
	if _, err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return nil, storeFailure("create invoice", err)
	}
	return invoice, nil
}

func (s *invoiceService) load(ctx context.Context, actor Actor, invoiceID primitive.ObjectID) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, storeFailure("get invoice", err)
	}
	switch {
	case actor.Role == domain.RoleCoach && invoice.CoachID == actor.UserID:
		return invoice, nil
	case actor.Role == domain.RoleClient && invoice.ClientID == actor.UserID:
		return invoice, nil
	}
	return nil, ErrInvoiceAccessDenied
}

func (s *invoiceService) GetInvoice(ctx context.Context, actor Actor, invoiceID primitive.ObjectID) (*domain.Invoice, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.load(ctx, actor, invoiceID)
}

func (s *invoiceService) ListInvoices(ctx context.Context, actor Actor) ([]domain.Invoice, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var (
		invoices []domain.Invoice
		err      error
	)
	if actor.Role == domain.RoleCoach {
		invoices, err = s.invoiceRepo.GetByCoachID(ctx, actor.UserID)
	} else {
		invoices, err = s.invoiceRepo.GetByClientID(ctx, actor.UserID)
	}
	if err != nil {
		return nil, storeFailure("list invoices", err)
	}
	return invoices, nil
}

// UpdateInvoice edits an open invoice. The client cannot be changed.
func (s *invoiceService) UpdateInvoice(ctx context.Context, coachID, invoiceID primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	invoice, err := s.load(ctx, CoachActor(coachID), invoiceID)
	if err != nil {
		return nil, err
	}
	if isClosed(invoice.Status) {
		return nil, ErrInvoiceClosed
	}
	in.ClientID = invoice.ClientID
	if err := validateInvoice(&in); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, coachID, in); err != nil {
		return nil, err
	}

	invoice.PlanID = in.PlanID
	invoice.Amount = in.Amount
	invoice.SessionsCount = in.SessionsCount
	invoice.Description = in.Description
	invoice.DueDate = in.DueDate
	// a new due date may lift an Overdue invoice back to Pending
	if invoice.Status == domain.InvoiceOverdue && !invoice.DueDate.Before(domain.NormalizeDate(s.now())) {
		invoice.Status = domain.InvoicePending
	}
	return invoice, s.save(ctx, invoice)
}

func (s *invoiceService) MarkPaid(ctx context.Context, coachID, invoiceID primitive.ObjectID, paidOn time.Time) (*domain.Invoice, error) {
	if paidOn.IsZero() {
		paidOn = s.now()
	}
	return s.close(ctx, coachID, invoiceID, domain.InvoicePaid, domain.DatePtr(paidOn))
}

func (s *invoiceService) CancelInvoice(ctx context.Context, coachID, invoiceID primitive.ObjectID) (*domain.Invoice, error) {
	return s.close(ctx, coachID, invoiceID, domain.InvoiceCancelled, nil)
}

func (s *invoiceService) close(ctx context.Context, coachID, invoiceID primitive.ObjectID, status domain.InvoiceStatus, paidDate *time.Time) (*domain.Invoice, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	invoice, err := s.load(ctx, CoachActor(coachID), invoiceID)
	if err != nil {
		return nil, err
	}
	if isClosed(invoice.Status) {
		return nil, ErrInvoiceClosed
	}
	invoice.Status = status
	invoice.PaidDate = paidDate
	if err := s.save(ctx, invoice); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"invoice_id": invoiceID.Hex(), "status": status}).Info("invoice closed")
	return invoice, nil
}

func (s *invoiceService) save(ctx context.Context, invoice *domain.Invoice) error {
	if err := s.invoiceRepo.Update(ctx, invoice); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvoiceNotFound
		}
		return storeFailure("update invoice", err)
	}
	return nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, coachID, invoiceID primitive.ObjectID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.load(ctx, CoachActor(coachID), invoiceID); err != nil {
		return err
	}
	if err := s.invoiceRepo.Delete(ctx, invoiceID, coachID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvoiceNotFound
		}
		return storeFailure("delete invoice", err)
	}
	return nil
}

func (s *invoiceService) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.invoiceRepo.MarkOverdue(ctx, domain.NormalizeDate(asOf))
	if err != nil {
		return 0, storeFailure("mark invoices overdue", err)
	}
	if n > 0 {
		log.WithFields(log.Fields{"count": n, "as_of": asOf.Format(domain.DateLayout)}).Info("invoices marked overdue")
	}
	return n, nil
}

func isClosed(status domain.InvoiceStatus) bool {
	return status == domain.InvoicePaid || status == domain.InvoiceCancelled
}
