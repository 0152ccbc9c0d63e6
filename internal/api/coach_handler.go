package api

import (
	"net/http"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CoachHandler struct {
	coachService     service.CoachService
	planService      service.PlanService
	sessionService   service.SessionService
	progressService  service.ProgressService
	dashboardService service.DashboardService
	profileService   service.ProfileService
}

func NewCoachHandler(svc *Services) *CoachHandler {
	return &CoachHandler{
		coachService:     svc.Coach,
		planService:      svc.Plans,
		sessionService:   svc.Sessions,
		progressService:  svc.Progress,
		dashboardService: svc.Dashboard,
		profileService:   svc.Profiles,
	}
}

// --- DTOs for Client Management ---

type AddClientRequest struct {
	ClientEmail string `json:"clientEmail" binding:"required,email"`
}

// --- DTOs for Plans ---

// PlanRequest is the body for creating and updating a plan. Dates are YYYY-MM-DD.
type PlanRequest struct {
	ClientID          string            `json:"clientId" binding:"required"`
	Name              string            `json:"name" binding:"required"`
	Description       string            `json:"description"`
	Duration          string            `json:"duration"`
	Status            domain.PlanStatus `json:"status"`
	Difficulty        domain.Difficulty `json:"difficulty"`
	EstimatedDuration int               `json:"estimatedDuration" binding:"min=0"`
	StartDate         string            `json:"startDate"`
	EndDate           string            `json:"endDate"`
	InvoiceAmount     float64           `json:"invoiceAmount" binding:"min=0"`
	SessionsCount     int               `json:"sessionsCount" binding:"min=0"`
}

type PlanItemRequest struct {
	ExerciseID  string  `json:"exerciseId" binding:"required"`
	Sets        int     `json:"sets" binding:"min=0"`
	Reps        int     `json:"reps" binding:"min=0"`
	Weight      float64 `json:"weight" binding:"min=0"`
	TimeMinutes int     `json:"timeMinutes" binding:"min=0"`
	RestSeconds int     `json:"restSeconds" binding:"min=0"`
	Tempo       string  `json:"tempo"`
	Notes       string  `json:"notes"`
}

// BuilderRequest replaces a plan's details and its whole exercise list.
type BuilderRequest struct {
	Name              string            `json:"name" binding:"required"`
	Description       string            `json:"description"`
	Duration          string            `json:"duration" binding:"required"`
	Difficulty        domain.Difficulty `json:"difficulty"`
	EstimatedDuration int               `json:"estimatedDuration" binding:"min=0"`
	StartDate         string            `json:"startDate"`
	Items             []PlanItemRequest `json:"items" binding:"dive"`
}

func (r *PlanRequest) input(c *gin.Context) (service.PlanInput, bool) {
	clientID, err := primitive.ObjectIDFromHex(r.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
		return service.PlanInput{}, false
	}
	start, ok := optionalDate(c, "startDate", r.StartDate)
	if !ok {
		return service.PlanInput{}, false
	}
	end, ok := optionalDate(c, "endDate", r.EndDate)
	if !ok {
		return service.PlanInput{}, false
	}
	return service.PlanInput{
		ClientID:          clientID,
		Name:              r.Name,
		Description:       r.Description,
		Duration:          r.Duration,
		Status:            r.Status,
		Difficulty:        r.Difficulty,
		EstimatedDuration: r.EstimatedDuration,
		StartDate:         start,
		EndDate:           end,
		InvoiceAmount:     r.InvoiceAmount,
		SessionsCount:     r.SessionsCount,
	}, true
}

func (r *BuilderRequest) input(c *gin.Context) (service.BuilderInput, bool) {
	start, ok := optionalDate(c, "startDate", r.StartDate)
	if !ok {
		return service.BuilderInput{}, false
	}
	items := make([]service.PlanItemInput, len(r.Items))
	for i, it := range r.Items {
		exerciseID, err := primitive.ObjectIDFromHex(it.ExerciseID)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid exerciseId format in items")
			return service.BuilderInput{}, false
		}
		items[i] = service.PlanItemInput{
			ExerciseID:  exerciseID,
			Sets:        it.Sets,
			Reps:        it.Reps,
			Weight:      it.Weight,
			TimeMinutes: it.TimeMinutes,
			RestSeconds: it.RestSeconds,
			Tempo:       it.Tempo,
			Notes:       it.Notes,
		}
	}
	return service.BuilderInput{
		Name:              r.Name,
		Description:       r.Description,
		Duration:          r.Duration,
		Difficulty:        r.Difficulty,
		EstimatedDuration: r.EstimatedDuration,
		StartDate:         start,
		Items:             items,
	}, true
}

// --- Handler Methods for Client Management ---

// AddClientByEmail godoc
// @Summary Add a client to the coach's roster by email
// @Description Associates an existing client user with the authenticated coach.
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param clientRequest body AddClientRequest true "Client's email"
// @Success 200 {object} UserResponse "Client successfully added"
// @Failure 400 {object} gin.H "Invalid input, or user is not a client"
// @Failure 404 {object} gin.H "Client not found"
// @Failure 409 {object} gin.H "Client already has a coach"
// @Router /coach/clients [post]
func (h *CoachHandler) AddClientByEmail(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req AddClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := h.coachService.AddClientByEmail(c.Request.Context(), actor.UserID, req.ClientEmail)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(client))
}

// GetManagedClients godoc
// @Summary Get clients managed by the coach
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ProfileResponse "List of managed clients"
// @Router /coach/clients [get]
func (h *CoachHandler) GetManagedClients(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clients, err := h.coachService.GetManagedClients(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProfilesToResponse(clients))
}

// ClientDetailResponse is a client's page as the coach sees it.
type ClientDetailResponse struct {
	Profile           ProfileResponse       `json:"profile"`
	Plans             []domain.TrainingPlan `json:"plans"`
	CurrentPlan       *domain.TrainingPlan  `json:"currentPlan,omitempty"`
	TimeRemaining     *domain.TimeRemaining `json:"timeRemaining,omitempty"`
	CompletedWorkouts int64                 `json:"completedWorkouts"`
}

func (h *CoachHandler) GetClientDetail(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	// Dates on a client's page follow the client's calendar.
	asOf, ok := asOfDate(c, h.profileService, clientID)
	if !ok {
		return
	}
	detail, err := h.coachService.GetClientDetail(c.Request.Context(), actor.UserID, clientID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	plans := detail.Plans
	if plans == nil {
		plans = []domain.TrainingPlan{}
	}
	c.JSON(http.StatusOK, ClientDetailResponse{
		Profile:           MapProfileToResponse(detail.Profile),
		Plans:             plans,
		CurrentPlan:       detail.CurrentPlan,
		TimeRemaining:     detail.TimeRemaining,
		CompletedWorkouts: detail.CompletedWorkouts,
	})
}

func (h *CoachHandler) GetClientProgress(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	progress, err := h.progressService.ExerciseProgress(c.Request.Context(), actor, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	if progress == nil {
		progress = []domain.ExerciseProgress{}
	}
	c.JSON(http.StatusOK, progress)
}

func (h *CoachHandler) GetClientHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	history, err := h.sessionService.SessionHistory(c.Request.Context(), actor, clientID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if history == nil {
		history = []service.HistoryEntry{}
	}
	c.JSON(http.StatusOK, history)
}

// --- Handler Methods for Plans ---

// CreatePlan godoc
// @Summary Create a training plan for a client
// @Description A positive invoiceAmount also issues an invoice for the plan.
// @Tags Coach Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planRequest body PlanRequest true "Training plan details"
// @Success 201 {object} service.PlanCreated "Training plan created successfully"
// @Failure 400 {object} gin.H "Invalid input"
// @Failure 403 {object} gin.H "Client not managed by this coach"
// @Failure 404 {object} gin.H "Client not found"
// @Router /coach/plans [post]
func (h *CoachHandler) CreatePlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	created, err := h.planService.CreatePlan(c.Request.Context(), actor.UserID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetPlans lists the coach's plans, optionally for one client (?clientId=).
func (h *CoachHandler) GetPlans(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var clientID *primitive.ObjectID
	if raw := c.Query("clientId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid clientId format")
			return
		}
		clientID = &id
	}
	plans, err := h.planService.GetPlansByCoach(c.Request.Context(), actor.UserID, clientID)
	if err != nil {
		respondError(c, err)
		return
	}
	if plans == nil {
		plans = []domain.TrainingPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

func (h *CoachHandler) GetPlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	detail, err := h.planService.GetPlan(c.Request.Context(), actor, planID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CoachHandler) UpdatePlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	plan, err := h.planService.UpdatePlan(c.Request.Context(), actor.UserID, planID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// SavePlanBuilder godoc
// @Summary Save a plan from the plan builder
// @Description Replaces the plan details and its ordered exercise list in one step. The end date is recomputed from the duration.
// @Tags Coach Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Param builder body BuilderRequest true "Plan details and items"
// @Success 200 {object} service.PlanDetail
// @Failure 400 {object} gin.H "Invalid input or duration"
// @Router /coach/plans/{planId}/builder [put]
func (h *CoachHandler) SavePlanBuilder(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	var req BuilderRequest
	if !bindJSON(c, &req) {
		return
	}
	in, ok := req.input(c)
	if !ok {
		return
	}
	detail, err := h.planService.SavePlanBuilder(c.Request.Context(), actor.UserID, planID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CoachHandler) DeletePlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	if err := h.planService.DeletePlan(c.Request.Context(), actor.UserID, planID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CoachHandler) GetPlanProgress(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, ok := pathID(c, "planId")
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	report, err := h.planService.PlanProgress(c.Request.Context(), actor, planID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- Sessions and dashboard ---

func (h *CoachHandler) GetSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	detail, err := h.sessionService.GetSessionDetail(c.Request.Context(), actor, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CoachHandler) GetDashboard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	dash, err := h.dashboardService.CoachDashboard(c.Request.Context(), actor.UserID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
