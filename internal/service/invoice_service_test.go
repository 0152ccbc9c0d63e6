package service

import (
	"context"
	"testing"

	"fittrainer/pro/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestInvoiceService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	svc := NewInvoiceService(f.repos, f.opts)
	ctx := context.Background()

	plan := f.addPlan(t, domain.PlanActive, days(0), "4 weeks")
	inv, err := svc.CreateInvoice(ctx, f.coach.ID, InvoiceInput{
		ClientID:      f.client.ID,
		PlanID:        &plan.ID,
		Amount:        240,
		SessionsCount: 12,
		Description:   " March block ",
		DueDate:       *f.day(14),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, inv.Status)
	assert.Equal(t, "March block", inv.Description)
	assert.Equal(t, *f.day(14), inv.DueDate)

	got, err := svc.GetInvoice(ctx, ClientActor(f.client.ID), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)

	_, err = svc.GetInvoice(ctx, ClientActor(primitive.NewObjectID()), inv.ID)
	assert.ErrorIs(t, err, ErrInvoiceAccessDenied)

	updated, err := svc.UpdateInvoice(ctx, f.coach.ID, inv.ID, InvoiceInput{Amount: 300, SessionsCount: 12, DueDate: *f.day(21)})
	require.NoError(t, err)
	assert.Equal(t, 300.0, updated.Amount)
	assert.Nil(t, updated.PlanID)
	assert.Equal(t, f.client.ID, updated.ClientID)

	paid, err := svc.MarkPaid(ctx, f.coach.ID, inv.ID, *f.day(2))
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePaid, paid.Status)
	require.NotNil(t, paid.PaidDate)
	assert.Equal(t, *f.day(2), *paid.PaidDate)

	_, err = svc.CancelInvoice(ctx, f.coach.ID, inv.ID)
	assert.ErrorIs(t, err, ErrInvoiceClosed)
	_, err = svc.UpdateInvoice(ctx, f.coach.ID, inv.ID, InvoiceInput{Amount: 1, DueDate: f.today()})
	assert.ErrorIs(t, err, ErrInvoiceClosed)

	list, err := svc.ListInvoices(ctx, CoachActor(f.coach.ID))
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.DeleteInvoice(ctx, f.coach.ID, inv.ID))
	_, err = svc.GetInvoice(ctx, CoachActor(f.coach.ID), inv.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestInvoiceService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	svc := NewInvoiceService(f.repos, f.opts)
	ctx := context.Background()

	otherClient := f.addClientOf(t, f.addUser(t, domain.RoleCoach))
	otherPlan := &domain.TrainingPlan{CoachID: f.coach.ID, ClientID: otherClient.ID, Name: "x", Duration: "1 week", Status: domain.PlanActive}
	_, err := f.repos.Plans.Create(ctx, otherPlan)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   InvoiceInput
		want error
	}{
		{"zero amount", InvoiceInput{ClientID: f.client.ID, DueDate: f.today()}, ErrValidationFailed},
		{"missing due date", InvoiceInput{ClientID: f.client.ID, Amount: 10}, ErrValidationFailed},
		{"unknown client", InvoiceInput{ClientID: primitive.NewObjectID(), Amount: 10, DueDate: f.today()}, ErrClientNotFound},
		{"client of another coach", InvoiceInput{ClientID: otherClient.ID, Amount: 10, DueDate: f.today()}, ErrClientNotManaged},
		{"plan of another client", InvoiceInput{ClientID: f.client.ID, PlanID: &otherPlan.ID, Amount: 10, DueDate: f.today()}, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateInvoice(ctx, f.coach.ID, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvoiceService_MarkOverdue(t *testing.T) {
	f := newFixture(t)
	svc := NewInvoiceService(f.repos, f.opts)
	ctx := context.Background()

	late, err := svc.CreateInvoice(ctx, f.coach.ID, InvoiceInput{ClientID: f.client.ID, Amount: 50, DueDate: *f.day(-1)})
	require.NoError(t, err)
	dueToday, err := svc.CreateInvoice(ctx, f.coach.ID, InvoiceInput{ClientID: f.client.ID, Amount: 50, DueDate: f.today()})
	require.NoError(t, err)

	n, err := svc.MarkOverdue(ctx, f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.GetInvoice(ctx, CoachActor(f.coach.ID), late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceOverdue, got.Status)
	got, err = svc.GetInvoice(ctx, CoachActor(f.coach.ID), dueToday.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, got.Status)

	// pushing the due date out reopens it
	reopened, err := svc.UpdateInvoice(ctx, f.coach.ID, late.ID, InvoiceInput{Amount: 50, DueDate: *f.day(7)})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoicePending, reopened.Status)
}
