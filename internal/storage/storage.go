package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// Media kinds double as the first key segment.
const (
	KindExerciseImage = "exercise-images"
	KindExerciseVideo = "exercise-videos"
	KindAvatar        = "avatars"
)

// ErrStorageDisabled is returned when no bucket is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// FileStorage defines the interface for object storage operations.
type FileStorage interface {
	// GeneratePresignedUploadURL creates a temporary URL that allows PUT requests
	// for uploading an object directly to the storage provider.
	GeneratePresignedUploadURL(ctx context.Context, objectKey string, contentType string, expires time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)

	// DeleteObject removes an object from the storage provider.
	DeleteObject(ctx context.Context, objectKey string) error
}

// NewObjectKey builds "<kind>/<owner hex>/<uuid><ext>". Only the extension of fileName is kept.
func NewObjectKey(kind string, ownerID primitive.ObjectID, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, `\`, "/"))))
	return fmt.Sprintf("%s/%s/%s%s", kind, ownerID.Hex(), uuid.NewString(), ext)
}

// KeyBelongsTo reports whether key was issued by NewObjectKey for kind and ownerID.
func KeyBelongsTo(key, kind string, ownerID primitive.ObjectID) bool {
	return strings.HasPrefix(key, kind+"/"+ownerID.Hex()+"/")
}

// disabledStorage is used when no bucket is configured.
type disabledStorage struct{}

func NewDisabledStorage() FileStorage {
	return disabledStorage{}
}

func (disabledStorage) GeneratePresignedUploadURL(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}

func (disabledStorage) GeneratePresignedDownloadURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrStorageDisabled
}

func (disabledStorage) DeleteObject(context.Context, string) error {
	return ErrStorageDisabled
}
