package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fittrainer/pro/internal/domain"
	"fittrainer/pro/internal/repository"
	"fittrainer/pro/internal/storage"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrUploadURLError   = errors.New("failed to generate upload URL")
	ErrDownloadURLError = errors.New("failed to generate download URL")
	ErrNoMedia          = errors.New("no media uploaded for this exercise")
)

// MediaKind selects which demo file of an exercise is addressed.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// UploadURLResponse structure for returning URL and object key
type UploadURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"` // reported back on confirm
}

type ExerciseInput struct {
	Name        string
	Category    string
	Type        domain.ExerciseType
	Description string
	VideoURL    string
}

type ExerciseService interface {
	CreateExercise(ctx context.Context, coachID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	// GetExerciseByID is open to the owning coach and that coach's clients.
	GetExerciseByID(ctx context.Context, actor Actor, exerciseID primitive.ObjectID) (*domain.Exercise, error)
	GetExercisesByCoach(ctx context.Context, coachID primitive.ObjectID) ([]domain.Exercise, error)
	UpdateExercise(ctx context.Context, coachID, exerciseID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error)
	DeleteExercise(ctx context.Context, coachID, exerciseID primitive.ObjectID) error

	RequestMediaUploadURL(ctx context.Context, coachID, exerciseID primitive.ObjectID, kind MediaKind, fileName, contentType string) (*UploadURLResponse, error)
	ConfirmMedia(ctx context.Context, coachID, exerciseID primitive.ObjectID, kind MediaKind, objectKey string) (*domain.Exercise, error)
	MediaDownloadURL(ctx context.Context, actor Actor, exerciseID primitive.ObjectID, kind MediaKind) (string, error)
}

type exerciseService struct {
	base
	exerciseRepo repository.ExerciseRepository
	userRepo     repository.UserRepository
	fileStorage  storage.FileStorage
}

func NewExerciseService(exerciseRepo repository.ExerciseRepository, userRepo repository.UserRepository, fileStorage storage.FileStorage, opts Options) ExerciseService {
	return &exerciseService{
		base:         newBase(opts),
		exerciseRepo: exerciseRepo,
		userRepo:     userRepo,
		fileStorage:  fileStorage,
	}
}

func validateExercise(in *ExerciseInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.Type == "" {
		in.Type = domain.ExerciseWeighted
	}
	if !in.Type.Valid() {
		return invalid("type", "unknown value "+string(in.Type))
	}
	return nil
}

func (s *exerciseService) CreateExercise(ctx context.Context, coachID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	if err := validateExercise(&in); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exercise := &domain.Exercise{
		CoachID:     coachID,
		Name:        in.Name,
		Category:    in.Category,
		Type:        in.Type,
		Description: in.Description,
		VideoURL:    in.VideoURL,
	}
	if _, err := s.exerciseRepo.Create(ctx, exercise); err != nil {
		return nil, storeFailure("create exercise", err)
	}
	return exercise, nil
}

func (s *exerciseService) GetExerciseByID(ctx context.Context, actor Actor, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.readable(ctx, actor, exerciseID)
}

// readable loads an exercise the actor may look at.
func (s *exerciseService) readable(ctx context.Context, actor Actor, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.load(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case domain.RoleCoach:
		if exercise.CoachID == actor.UserID {
			return exercise, nil
		}
	case domain.RoleClient:
		client, err := loadUser(ctx, s.userRepo, actor.UserID)
		if err != nil {
			return nil, err
		}
		if client.CoachID != nil && *client.CoachID == exercise.CoachID {
			return exercise, nil
		}
	}
	return nil, ErrExerciseAccessDenied
}

func (s *exerciseService) load(ctx context.Context, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.exerciseRepo.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, storeFailure("get exercise", err)
	}
	return exercise, nil
}

func (s *exerciseService) owned(ctx context.Context, coachID, exerciseID primitive.ObjectID) (*domain.Exercise, error) {
	exercise, err := s.load(ctx, exerciseID)
	if err != nil {
		return nil, err
	}
	if exercise.CoachID != coachID {
		return nil, ErrExerciseAccessDenied
	}
	return exercise, nil
}

func (s *exerciseService) GetExercisesByCoach(ctx context.Context, coachID primitive.ObjectID) ([]domain.Exercise, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exercises, err := s.exerciseRepo.GetByCoachID(ctx, coachID)
	if err != nil {
		return nil, storeFailure("list exercises", err)
	}
	return exercises, nil
}

func (s *exerciseService) UpdateExercise(ctx context.Context, coachID, exerciseID primitive.ObjectID, in ExerciseInput) (*domain.Exercise, error) {
	if err := validateExercise(&in); err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exercise, err := s.owned(ctx, coachID, exerciseID)
	if err != nil {
		return nil, err
	}
	exercise.Name = in.Name
	exercise.Category = in.Category
	exercise.Type = in.Type
	exercise.Description = in.Description
	exercise.VideoURL = in.VideoURL

	if err := s.exerciseRepo.Update(ctx, exercise); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, storeFailure("update exercise", err)
	}
	return exercise, nil
}

// DeleteExercise removes the exercise and its media. Plan lines that reference it stay and
// render without exercise details.
func (s *exerciseService) DeleteExercise(ctx context.Context, coachID, exerciseID primitive.ObjectID) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exercise, err := s.owned(ctx, coachID, exerciseID)
	if err != nil {
		return err
	}
	if err := s.exerciseRepo.Delete(ctx, exerciseID, coachID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrExerciseNotFound
		}
		return storeFailure("delete exercise", err)
	}
	for _, key := range []string{exercise.ImageKey, exercise.VideoKey} {
		if key != "" {
			dropObject(ctx, s.fileStorage, key)
		}
	}
	return nil
}

func mediaStorageKind(kind MediaKind) (string, string, error) {
	switch kind {
	case MediaImage:
		return storage.KindExerciseImage, "image/", nil
	case MediaVideo:
		return storage.KindExerciseVideo, "video/", nil
	}
	return "", "", invalid("kind", "must be image or video")
}

func (s *exerciseService) RequestMediaUploadURL(ctx context.Context, coachID, exerciseID primitive.ObjectID, kind MediaKind, fileName, contentType string) (*UploadURLResponse, error) {
	storageKind, prefix, err := mediaStorageKind(kind)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(strings.ToLower(contentType), prefix) {
		return nil, invalid("contentType", fmt.Sprintf("must start with %q", prefix))
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.owned(ctx, coachID, exerciseID); err != nil {
		return nil, err
	}
	key := storage.NewObjectKey(storageKind, exerciseID, fileName)
	url, err := s.fileStorage.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, mediaFailure("exercise upload url", err)
	}
	return &UploadURLResponse{UploadURL: url, ObjectKey: key}, nil
}

// ConfirmMedia records a finished upload on the exercise and drops the file it replaces.
func (s *exerciseService) ConfirmMedia(ctx context.Context, coachID, exerciseID primitive.ObjectID, kind MediaKind, objectKey string) (*domain.Exercise, error) {
	storageKind, _, err := mediaStorageKind(kind)
	if err != nil {
		return nil, err
	}
	if !storage.KeyBelongsTo(objectKey, storageKind, exerciseID) {
		return nil, ErrMediaKeyMismatch
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exercise, err := s.owned(ctx, coachID, exerciseID)
	if err != nil {
		return nil, err
	}
	var previous string
	if kind == MediaImage {
		previous, exercise.ImageKey = exercise.ImageKey, objectKey
	} else {
		previous, exercise.VideoKey = exercise.VideoKey, objectKey
	}
	if err := s.exerciseRepo.Update(ctx, exercise); err != nil {
		return nil, storeFailure("update exercise media", err)
	}
	if previous != "" && previous != objectKey {
		dropObject(ctx, s.fileStorage, previous)
	}
	return exercise, nil
}

func (s *exerciseService) MediaDownloadURL(ctx context.Context, actor Actor, exerciseID primitive.ObjectID, kind MediaKind) (string, error) {
	if _, _, err := mediaStorageKind(kind); err != nil {
		return "", err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exercise, err := s.readable(ctx, actor, exerciseID)
	if err != nil {
		return "", err
	}
	key := exercise.ImageKey
	if kind == MediaVideo {
		key = exercise.VideoKey
	}
	if key == "" {
		return "", ErrNoMedia
	}
	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, key, storage.DefaultPresignedURLExpiry)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			return "", err
		}
		log.WithError(err).WithField("key", key).Error("presign download")
		return "", ErrDownloadURLError
	}
	return url, nil
}

// mediaFailure keeps ErrStorageDisabled visible and hides provider errors behind ErrUploadURLError.
func mediaFailure(op string, err error) error {
	if errors.Is(err, storage.ErrStorageDisabled) {
		return err
	}
	log.WithError(err).WithField("op", op).Error("object storage call failed")
	return ErrUploadURLError
}

// dropObject deletes a replaced object. Failures only leave an orphan behind, so they are logged.
func dropObject(ctx context.Context, fs storage.FileStorage, key string) {
	if err := fs.DeleteObject(ctx, key); err != nil && !errors.Is(err, storage.ErrStorageDisabled) {
		log.WithError(err).WithField("key", key).Warn("delete replaced object")
	}
}
