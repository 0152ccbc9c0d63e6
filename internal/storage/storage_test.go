package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"fittrainer/pro/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewObjectKey(t *testing.T) {
	owner := primitive.NewObjectID()

	key := NewObjectKey(KindExerciseVideo, owner, `C:\clips\Squat.MP4`)
	assert.True(t, strings.HasPrefix(key, KindExerciseVideo+"/"+owner.Hex()+"/"))
	assert.True(t, strings.HasSuffix(key, ".mp4"))
	assert.True(t, KeyBelongsTo(key, KindExerciseVideo, owner))
	assert.False(t, KeyBelongsTo(key, KindExerciseImage, owner))
	assert.False(t, KeyBelongsTo(key, KindExerciseVideo, primitive.NewObjectID()))

	assert.NotEqual(t, key, NewObjectKey(KindExerciseVideo, owner, "squat.mp4"))
	assert.NotContains(t, NewObjectKey(KindAvatar, owner, "../../etc/passwd"), "..")
}

func TestNewS3Storage_DisabledWithoutBucket(t *testing.T) {
	fs, err := NewS3Storage(context.Background(), config.S3Config{})
	require.NoError(t, err)

	_, err = fs.GeneratePresignedUploadURL(context.Background(), "k", "image/png", time.Minute)
	assert.ErrorIs(t, err, ErrStorageDisabled)
	_, err = fs.GeneratePresignedDownloadURL(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, ErrStorageDisabled)
}

func TestS3Storage_PresignUpload(t *testing.T) {
	fs, err := NewS3Storage(context.Background(), config.S3Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		BucketName:      "media",
	})
	require.NoError(t, err)

	url, err := fs.GeneratePresignedUploadURL(context.Background(), "avatars/abc/1.png", "image/png", 0)
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/media/avatars/abc/1.png")
	assert.Contains(t, url, "X-Amz-Signature=")
}
