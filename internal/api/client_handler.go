package api

import (
	"context"
	"net/http"
	"strconv"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultHistoryLimit = 20

type ClientHandler struct {
	planService      service.PlanService
	sessionService   service.SessionService
	progressService  service.ProgressService
	dashboardService service.DashboardService
	profileService   service.ProfileService
}

func NewClientHandler(svc *Services) *ClientHandler {
	return &ClientHandler{
		planService:      svc.Plans,
		sessionService:   svc.Sessions,
		progressService:  svc.Progress,
		dashboardService: svc.Dashboard,
		profileService:   svc.Profiles,
	}
}

// --- DTOs ---

type SetCompletedRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

type PerformanceRequest struct {
	Sets   *int     `json:"sets" binding:"omitempty,min=0"`
	Reps   *int     `json:"reps" binding:"omitempty,min=0"`
	Weight *float64 `json:"weight" binding:"omitempty,min=0"`
}

// --- Plans ---

// GetMyPlans godoc
// @Summary Get my visible training plans
// @Description Active and Completed plans starting no later than a week from the given date, earliest first.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Param date query string false "Calendar date YYYY-MM-DD, defaults to today in the client's timezone"
// @Success 200 {array} domain.TrainingPlan
// @Router /client/plans [get]
func (h *ClientHandler) GetMyPlans(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	plans, err := h.planService.VisiblePlans(c.Request.Context(), actor.UserID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	if plans == nil {
		plans = []domain.TrainingPlan{}
	}
	c.JSON(http.StatusOK, plans)
}

// GetCurrentPlan answers 204 when no plan is visible.
func (h *ClientHandler) GetCurrentPlan(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	plan, err := h.planService.CurrentPlan(c.Request.Context(), actor.UserID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	if plan == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *ClientHandler) GetPlan(c *gin.Context) {
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

func (h *ClientHandler) GetPlanProgress(c *gin.Context) {
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

// --- Sessions ---

// EnsureTodaysSession godoc
// @Summary Get or open today's workout session
// @Description Returns today's session, creating it from the current Active plan when none exists yet.
// @Tags Client Sessions
// @Produce json
// @Security BearerAuth
// @Param date query string false "Calendar date YYYY-MM-DD, defaults to today in the client's timezone"
// @Success 200 {object} domain.WorkoutSession
// @Success 204 "No active plan applies to the date"
// @Failure 503 {object} gin.H "Store unavailable"
// @Router /client/sessions/today [post]
func (h *ClientHandler) EnsureTodaysSession(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	session, err := h.sessionService.EnsureTodaysSession(c.Request.Context(), actor.UserID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	if session == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *ClientHandler) GetSession(c *gin.Context) {
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

func (h *ClientHandler) StartSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.StartSession)
}

// CompleteSession godoc
// @Summary Complete a workout session
// @Description Every exercise of the plan must be marked completed first.
// @Tags Client Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} domain.WorkoutSession
// @Failure 409 {object} gin.H "Exercises still missing, or session not in progress"
// @Router /client/sessions/{sessionId}/complete [post]
func (h *ClientHandler) CompleteSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.CompleteSession)
}

func (h *ClientHandler) SkipSession(c *gin.Context) {
	h.sessionAction(c, h.sessionService.SkipSession)
}

type sessionTransitionFunc func(ctx context.Context, clientID, sessionID primitive.ObjectID) (*domain.WorkoutSession, error)

func (h *ClientHandler) sessionAction(c *gin.Context, action sessionTransitionFunc) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return
	}
	session, err := action(c.Request.Context(), actor.UserID, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// --- Exercise feedback ---

// exercisePath returns the caller and the session and exercise IDs of a feedback route.
func exercisePath(c *gin.Context) (service.Actor, primitive.ObjectID, primitive.ObjectID, bool) {
	actor, ok := mustActor(c)
	if !ok {
		return actor, primitive.NilObjectID, primitive.NilObjectID, false
	}
	sessionID, ok := pathID(c, "sessionId")
	if !ok {
		return actor, primitive.NilObjectID, primitive.NilObjectID, false
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return actor, primitive.NilObjectID, primitive.NilObjectID, false
	}
	return actor, sessionID, exerciseID, true
}

func (h *ClientHandler) SetExerciseCompleted(c *gin.Context) {
	actor, sessionID, exerciseID, ok := exercisePath(c)
	if !ok {
		return
	}
	var req SetCompletedRequest
	if !bindJSON(c, &req) {
		return
	}
	fb, err := h.sessionService.SetExerciseCompleted(c.Request.Context(), actor.UserID, sessionID, exerciseID, *req.Completed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *ClientHandler) ToggleExerciseCompleted(c *gin.Context) {
	actor, sessionID, exerciseID, ok := exercisePath(c)
	if !ok {
		return
	}
	fb, err := h.sessionService.ToggleExerciseCompleted(c.Request.Context(), actor.UserID, sessionID, exerciseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *ClientHandler) SaveExerciseFeedback(c *gin.Context) {
	actor, sessionID, exerciseID, ok := exercisePath(c)
	if !ok {
		return
	}
	var req FeedbackRequest
	if !bindJSON(c, &req) {
		return
	}
	fb, err := h.sessionService.SaveExerciseFeedback(c.Request.Context(), actor.UserID, sessionID, exerciseID, req.Feedback)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (h *ClientHandler) LogExercisePerformance(c *gin.Context) {
	actor, sessionID, exerciseID, ok := exercisePath(c)
	if !ok {
		return
	}
	var req PerformanceRequest
	if !bindJSON(c, &req) {
		return
	}
	fb, err := h.sessionService.LogExercisePerformance(c.Request.Context(), actor.UserID, sessionID, exerciseID,
		service.Performance{Sets: req.Sets, Reps: req.Reps, Weight: req.Weight})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fb)
}

// --- History, progress and dashboard ---

// historyLimit reads ?limit=, defaulting to defaultHistoryLimit.
func historyLimit(c *gin.Context) (int64, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid limit: must be a positive integer")
		return 0, false
	}
	return n, true
}

func (h *ClientHandler) GetHistory(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	limit, ok := historyLimit(c)
	if !ok {
		return
	}
	history, err := h.sessionService.SessionHistory(c.Request.Context(), actor, actor.UserID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if history == nil {
		history = []service.HistoryEntry{}
	}
	c.JSON(http.StatusOK, history)
}

func (h *ClientHandler) GetProgress(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	progress, err := h.progressService.ExerciseProgress(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if progress == nil {
		progress = []domain.ExerciseProgress{}
	}
	c.JSON(http.StatusOK, progress)
}

// GetDashboard godoc
// @Summary Client dashboard
// @Description Expires overdue plans, then summarises the current plan and recent sessions.
// @Tags Client
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.ClientDashboard
// @Router /client/dashboard [get]
func (h *ClientHandler) GetDashboard(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	asOf, ok := asOfDate(c, h.profileService, actor.UserID)
	if !ok {
		return
	}
	dash, err := h.dashboardService.ClientDashboard(c.Request.Context(), actor.UserID, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
