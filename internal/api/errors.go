package api

import (
	"errors"
	"net/http"

	"fittrainer/pro/internal/service"
	"fittrainer/pro/internal/storage"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errorStatus = []struct {
	err  error
	code int
}{
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrClientNotFound, http.StatusNotFound},
	{service.ErrExerciseNotFound, http.StatusNotFound},
	{service.ErrPlanNotFound, http.StatusNotFound},
	{service.ErrSessionNotFound, http.StatusNotFound},
	{service.ErrInvoiceNotFound, http.StatusNotFound},
	{service.ErrNoMedia, http.StatusNotFound},

	{service.ErrValidationFailed, http.StatusBadRequest},
	{service.ErrInvalidDuration, http.StatusBadRequest},
	{service.ErrClientNotRole, http.StatusBadRequest},
	{service.ErrExerciseNotInPlan, http.StatusBadRequest},
	{service.ErrMediaKeyMismatch, http.StatusBadRequest},

	{service.ErrAuthenticationFailed, http.StatusUnauthorized},

	{service.ErrClientNotManaged, http.StatusForbidden},
	{service.ErrExerciseAccessDenied, http.StatusForbidden},
	{service.ErrPlanAccessDenied, http.StatusForbidden},
	{service.ErrSessionAccessDenied, http.StatusForbidden},
	{service.ErrInvoiceAccessDenied, http.StatusForbidden},

	{service.ErrUserAlreadyExists, http.StatusConflict},
	{service.ErrClientAlreadyAssigned, http.StatusConflict},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrFeedbackConflict, http.StatusConflict},
	{service.ErrCompletionGate, http.StatusConflict},
	{service.ErrSessionNotActive, http.StatusConflict},
	{service.ErrInvoiceClosed, http.StatusConflict},

	{service.ErrUploadURLError, http.StatusBadGateway},
	{service.ErrStoreUnavailable, http.StatusServiceUnavailable},
	{storage.ErrStorageDisabled, http.StatusServiceUnavailable},
}

// respondError maps a service error to its status. Unknown errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	var gate *service.CompletionGateError
	if errors.As(err, &gate) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":   service.ErrCompletionGate.Error(),
			"missing": gate.Missing,
		})
		return
	}
	var invalid *service.ValidationError
	if errors.As(err, &invalid) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": invalid.Error(), "field": invalid.Field})
		return
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.code == http.StatusBadRequest {
				msg = err.Error()
			}
			abortWithError(c, e.code, msg)
			return
		}
	}
	log.WithError(err).WithField("path", c.FullPath()).Error("unhandled error")
	abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
}

// pathID parses an ObjectID route parameter and answers 400 when it is malformed.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return primitive.NilObjectID, false
	}
	return id, true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return false
	}
	return true
}
