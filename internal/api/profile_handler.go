package api

import (
	"net/http"
	"time"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProfileHandler struct {
	profileService service.ProfileService
}

func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type UpdateProfileRequest struct {
	Name             string  `json:"name" binding:"required"`
	Phone            string  `json:"phone"`
	Country          string  `json:"country"`
	Timezone         string  `json:"timezone"`
	DateOfBirth      string  `json:"dateOfBirth"` // YYYY-MM-DD
	HeightCM         float64 `json:"heightCm"`
	WeightKG         float64 `json:"weightKg"`
	FitnessGoal      string  `json:"fitnessGoal"`
	WorkoutsPerWeek  int     `json:"workoutsPerWeek"`
	EmergencyContact string  `json:"emergencyContact"`
	EmergencyPhone   string  `json:"emergencyPhone"`
}

type UploadURLRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

type ConfirmUploadRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type ProfileResponse struct {
	User         UserResponse `json:"user"`
	Phone        string       `json:"phone,omitempty"`
	Country      string       `json:"country,omitempty"`
	DateOfBirth  *time.Time   `json:"dateOfBirth,omitempty"`
	HeightCM     float64      `json:"heightCm,omitempty"`
	WeightKG     float64      `json:"weightKg,omitempty"`
	FitnessGoal  string       `json:"fitnessGoal,omitempty"`
	Age          *int         `json:"age,omitempty"`
	BMI          *float64     `json:"bmi,omitempty"`
	WeeklyTarget int          `json:"weeklyTarget,omitempty"`
	AvatarURL    string       `json:"avatarUrl,omitempty"`
}

func MapProfileToResponse(p *service.Profile) ProfileResponse {
	if p == nil || p.User == nil {
		return ProfileResponse{}
	}
	return ProfileResponse{
		User:         MapUserToResponse(p.User),
		Phone:        p.User.Phone,
		Country:      p.User.Country,
		DateOfBirth:  p.User.DateOfBirth,
		HeightCM:     p.User.HeightCM,
		WeightKG:     p.User.WeightKG,
		FitnessGoal:  p.User.FitnessGoal,
		Age:          p.Age,
		BMI:          p.BMI,
		WeeklyTarget: p.WeeklyTarget,
		AvatarURL:    p.AvatarURL,
	}
}

func MapProfilesToResponse(profiles []service.Profile) []ProfileResponse {
	out := make([]ProfileResponse, len(profiles))
	for i := range profiles {
		out[i] = MapProfileToResponse(&profiles[i])
	}
	return out
}

// GetMe godoc
// @Summary Get my profile
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ProfileResponse
// @Router /me [get]
func (h *ProfileHandler) GetMe(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	p, err := h.profileService.GetProfile(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProfileToResponse(p))
}

// UpdateMe godoc
// @Summary Update my profile
// @Description Body measurements and goals are only stored for clients.
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param profile body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} ProfileResponse
// @Failure 400 {object} gin.H "Invalid input"
// @Router /me [put]
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	dob, ok := optionalDate(c, "dateOfBirth", req.DateOfBirth)
	if !ok {
		return
	}

	p, err := h.profileService.UpdateProfile(c.Request.Context(), actor.UserID, service.ProfileInput{
		Name:             req.Name,
		Phone:            req.Phone,
		Country:          req.Country,
		Timezone:         req.Timezone,
		DateOfBirth:      dob,
		HeightCM:         req.HeightCM,
		WeightKG:         req.WeightKG,
		FitnessGoal:      req.FitnessGoal,
		WorkoutsPerWeek:  req.WorkoutsPerWeek,
		EmergencyContact: req.EmergencyContact,
		EmergencyPhone:   req.EmergencyPhone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProfileToResponse(p))
}

// GetToday returns the caller's calendar date in their timezone.
func (h *ProfileHandler) GetToday(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	today, err := h.profileService.Today(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": today.Format(domain.DateLayout)})
}

func (h *ProfileHandler) RequestAvatarUploadURL(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.profileService.RequestAvatarUploadURL(c.Request.Context(), actor.UserID, req.FileName, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProfileHandler) ConfirmAvatar(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	var req ConfirmUploadRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.profileService.ConfirmAvatar(c.Request.Context(), actor.UserID, req.ObjectKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapProfileToResponse(p))
}

// optionalDate parses a YYYY-MM-DD body field. Empty means unset.
func optionalDate(c *gin.Context, field, value string) (*time.Time, bool) {
	if value == "" {
		return nil, true
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+field+": "+err.Error())
		return nil, false
	}
	return &d, true
}

// asOfDate is the ?date= query parameter when given, otherwise the user's today.
func asOfDate(c *gin.Context, profiles service.ProfileService, userID primitive.ObjectID) (time.Time, bool) {
	if q := c.Query("date"); q != "" {
		d, err := domain.ParseDate(q)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid date: "+err.Error())
			return time.Time{}, false
		}
		return d, true
	}
	today, err := profiles.Today(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	return today, true
}
