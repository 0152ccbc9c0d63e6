package api

import (
	"net/http"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvoiceHandler serves coaches (full access to what they issued) and clients (read-only).
type InvoiceHandler struct {
	invoiceService service.InvoiceService
	profileService service.ProfileService
}

func NewInvoiceHandler(invoiceService service.InvoiceService, profileService service.ProfileService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, profileService: profileService}
}

type InvoiceRequest struct {
	ClientID      string  `json:"clientId" binding:"required"`
	PlanID        string  `json:"planId"`
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	SessionsCount int     `json:"sessionsCount" binding:"min=0"`
	Description   string  `json:"description"`
	DueDate       string  `json:"dueDate" binding:"required"` // YYYY-MM-DD
}

type MarkPaidRequest struct {
	PaidDate string `json:"paidDate"` // YYYY-MM-DD, defaults to today
}

func (r *InvoiceRequest) input(c *gin.Context) (service.InvoiceInput, bool) {
	clientID, err := primitive.ObjectIDFromHex(r.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
		return service.InvoiceInput{}, false
	}
	var planID *primitive.ObjectID
	if r.PlanID != "" {
		id, err := primitive.ObjectIDFromHex(r.PlanID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid planId format")
			return service.InvoiceInput{}, false
		}
		planID = &id
	}
	due, err := domain.ParseDate(r.DueDate)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid dueDate: "+err.Error())
		return service.InvoiceInput{}, false
	}
	return service.InvoiceInput{
		ClientID:      clientID,
		PlanID:        planID,
		Amount:        r.Amount,
		SessionsCount: r.SessionsCount,
		Description:   r.Description,
		DueDate:       due,
	}, true
}

// CreateInvoice godoc
// @Summary Issue an invoice to a managed client
// @Tags Invoices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param invoice body InvoiceRequest true "Invoice details"
// @Success 201 {object} domain.Invoice
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Client not managed by this coach"
// @Router /coach/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	inv, err := h.invoiceService.CreateInvoice(c.Request.Context(), actor.UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// ListInvoices returns what the caller issued (coach) or received (client).
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	invoices, err := h.invoiceService.ListInvoices(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "invoiceId")
	if !ok {
		return
	}
	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), actor, invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "invoiceId")
	if !ok {
		return
	}
	var req InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	inv, err := h.invoiceService.UpdateInvoice(c.Request.Context(), actor.UserID, invoiceID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "invoiceId")
	if !ok {
		return
	}
	var req MarkPaidRequest
	// An empty body is allowed.
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	paidOn, ok := optionalDate(c, "paidDate", req.PaidDate)
	if !ok {
		return
	}
	if paidOn == nil {
		today, ok := asOfDate(c, h.profileService, actor.UserID)
		if !ok {
			return
		}
		paidOn = &today
	}
	inv, err := h.invoiceService.MarkPaid(c.Request.Context(), actor.UserID, invoiceID, *paidOn)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "invoiceId")
	if !ok {
		return
	}
	inv, err := h.invoiceService.CancelInvoice(c.Request.Context(), actor.UserID, invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	invoiceID, ok := pathID(c, "invoiceId")
	if !ok {
		return
	}
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), actor.UserID, invoiceID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
