package memory

import (
	"context"
	"testing"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFeedbackRepository_UpsertIfCompleted(t *testing.T) {
	repo := NewFeedbackRepository(NewStore())
	ctx := context.Background()
	sessionID, exerciseID := primitive.NewObjectID(), primitive.NewObjectID()
	yes, no := true, false

	_, err := repo.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Completed: &no, IfCompleted: &yes})
	assert.ErrorIs(t, err, repository.ErrStatusMismatch, "missing record is not completed")
	_, err = repo.Get(ctx, sessionID, exerciseID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	fb, err := repo.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Completed: &yes, IfCompleted: &no})
	require.NoError(t, err)
	assert.True(t, fb.Completed)

	// a second writer that read the old value loses
	_, err = repo.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Completed: &yes, IfCompleted: &no})
	assert.ErrorIs(t, err, repository.ErrStatusMismatch)

	fb, err = repo.Upsert(ctx, sessionID, exerciseID, domain.FeedbackPatch{Completed: &no, IfCompleted: &yes})
	require.NoError(t, err)
	assert.False(t, fb.Completed)
}
