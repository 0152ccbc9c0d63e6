package api

import (
	"net/http"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/service"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler holds the exercise service dependency.
type ExerciseHandler struct {
	exerciseService service.ExerciseService
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exerciseService service.ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{exerciseService: exerciseService}
}

// --- DTOs for API (Data Transfer Objects) ---

// ExerciseRequest is the body for creating and updating an exercise.
type ExerciseRequest struct {
	Name        string              `json:"name" binding:"required"`
	Category    string              `json:"category"`
	Type        domain.ExerciseType `json:"type" binding:"omitempty,oneof=Weighted Bodyweight Cardio"`
	Description string              `json:"description"`
	VideoURL    string              `json:"videoUrl" binding:"omitempty,url"`
}

func (r ExerciseRequest) input() service.ExerciseInput {
	return service.ExerciseInput{
		Name:        r.Name,
		Category:    r.Category,
		Type:        r.Type,
		Description: r.Description,
		VideoURL:    r.VideoURL,
	}
}

// ExerciseResponse is the DTO for returning exercise details.
type ExerciseResponse struct {
	ID          string              `json:"id"`
	CoachID     string              `json:"coachId"`
	Name        string              `json:"name"`
	Category    string              `json:"category,omitempty"`
	Type        domain.ExerciseType `json:"type"`
	Description string              `json:"description,omitempty"`
	VideoURL    string              `json:"videoUrl,omitempty"`
	HasImage    bool                `json:"hasImage"`
	HasVideo    bool                `json:"hasVideo"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// MapExerciseToResponse converts a domain.Exercise to ExerciseResponse DTO.
func MapExerciseToResponse(ex *domain.Exercise) ExerciseResponse {
	if ex == nil {
		return ExerciseResponse{}
	}
	return ExerciseResponse{
		ID:          ex.ID.Hex(),
		CoachID:     ex.CoachID.Hex(),
		Name:        ex.Name,
		Category:    ex.Category,
		Type:        ex.Type,
		Description: ex.Description,
		VideoURL:    ex.VideoURL,
		HasImage:    ex.ImageKey != "",
		HasVideo:    ex.VideoKey != "",
		CreatedAt:   ex.CreatedAt,
		UpdatedAt:   ex.UpdatedAt,
	}
}

// MapExercisesToResponse converts a slice of domain.Exercise to a slice of ExerciseResponse DTO.
func MapExercisesToResponse(exercises []domain.Exercise) []ExerciseResponse {
	responses := make([]ExerciseResponse, len(exercises))
	for i := range exercises {
		responses[i] = MapExerciseToResponse(&exercises[i])
	}
	return responses
}

// --- Handler Methods ---

// CreateExercise godoc
// @Summary Create a new exercise
// @Description Creates a new exercise in the authenticated coach's library.
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exercise body ExerciseRequest true "Exercise details"
// @Success 201 {object} ExerciseResponse "Exercise created successfully"
// @Failure 400 {object} gin.H "Invalid input (validation error)"
// @Failure 403 {object} gin.H "Forbidden (not a coach)"
// @Router /exercises [post]
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req ExerciseRequest
	if !bindJSON(c, &req) {
		return
	}
	exercise, err := h.exerciseService.CreateExercise(c.Request.Context(), actor.UserID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapExerciseToResponse(exercise))
}

// GetCoachExercises godoc
// @Summary Get exercises for the authenticated coach
// @Tags Exercises
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ExerciseResponse "List of exercises"
// @Router /exercises [get]
func (h *ExerciseHandler) GetCoachExercises(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exercises, err := h.exerciseService.GetExercisesByCoach(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExercisesToResponse(exercises))
}

// GetExercise is open to the owning coach and that coach's clients.
func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	exercise, err := h.exerciseService.GetExerciseByID(c.Request.Context(), actor, exerciseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	var req ExerciseRequest
	if !bindJSON(c, &req) {
		return
	}
	exercise, err := h.exerciseService.UpdateExercise(c.Request.Context(), actor.UserID, exerciseID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

func (h *ExerciseHandler) DeleteExercise(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	if err := h.exerciseService.DeleteExercise(c.Request.Context(), actor.UserID, exerciseID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestMediaUploadURL godoc
// @Summary Get a pre-signed URL to upload exercise media
// @Description The client uploads straight to object storage, then calls the confirm endpoint with the returned key.
// @Tags Exercises
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param exerciseId path string true "Exercise ID"
// @Param kind path string true "image or video"
// @Param request body UploadURLRequest true "File details"
// @Success 200 {object} service.UploadURLResponse
// @Failure 503 {object} gin.H "Object storage not configured"
// @Router /exercises/{exerciseId}/media/{kind}/upload-url [post]
func (h *ExerciseHandler) RequestMediaUploadURL(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	var req UploadURLRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.exerciseService.RequestMediaUploadURL(c.Request.Context(), actor.UserID, exerciseID,
		service.MediaKind(c.Param("kind")), req.FileName, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ExerciseHandler) ConfirmMedia(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if !bindJSON(c, &req) {
		return
	}
	exercise, err := h.exerciseService.ConfirmMedia(c.Request.Context(), actor.UserID, exerciseID,
		service.MediaKind(c.Param("kind")), req.ObjectKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapExerciseToResponse(exercise))
}

type DownloadURLResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

func (h *ExerciseHandler) GetMediaDownloadURL(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	exerciseID, ok := pathID(c, "exerciseId")
	if !ok {
		return
	}
	url, err := h.exerciseService.MediaDownloadURL(c.Request.Context(), actor, exerciseID, service.MediaKind(c.Param("kind")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DownloadURLResponse{DownloadURL: url})
}
