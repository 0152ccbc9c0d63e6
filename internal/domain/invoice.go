package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "Pending"
	InvoicePaid      InvoiceStatus = "Paid"
	InvoiceOverdue   InvoiceStatus = "Overdue"
	InvoiceCancelled InvoiceStatus = "Cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// DefaultInvoiceTerm is the due period of a plan invoice whose plan has no end date.
const DefaultInvoiceTerm = 30

// Invoice is a billing record between a coach and a client.
type Invoice struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CoachID       primitive.ObjectID  `bson:"coachId" json:"coachId"`
	ClientID      primitive.ObjectID  `bson:"clientId" json:"clientId"`
	PlanID        *primitive.ObjectID `bson:"planId,omitempty" json:"planId,omitempty"`
	Amount        float64             `bson:"amount" json:"amount"`
	SessionsCount int                 `bson:"sessionsCount" json:"sessionsCount"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	Status        InvoiceStatus       `bson:"status" json:"status"`
	DueDate       time.Time           `bson:"dueDate" json:"dueDate"`
	PaidDate      *time.Time          `bson:"paidDate,omitempty" json:"paidDate,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// PlanInvoiceDueDate is the plan's end date, or DefaultInvoiceTerm days after its start
// (or after asOf when the plan has no start date).
func PlanInvoiceDueDate(plan *TrainingPlan, asOf time.Time) time.Time {
	if plan.EndDate != nil {
		return NormalizeDate(*plan.EndDate)
	}
	start := asOf
	if plan.StartDate != nil {
		start = *plan.StartDate
	}
	return AddDays(start, DefaultInvoiceTerm)
}
